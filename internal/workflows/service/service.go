// Package service implements the callback resumption protocol and the
// update-ingestion path around it: external systems report upload, indexing
// and conflict-resolution outcomes here, and the matching halted workflow
// resumes or terminally fails. Every state mutation commits atomically with
// the ledger and identifier writes it depends on.
package service

import (
	"log/slog"

	"bibflow/pkg/platform/audit"
	txcontext "bibflow/pkg/platform/tx"

	"bibflow/internal/pidstore/minter"
	"bibflow/internal/platform/config"
	recstore "bibflow/internal/records/store"
	"bibflow/internal/records/validator"
	"bibflow/internal/workflows/engine"
	"bibflow/internal/workflows/metrics"
	"bibflow/internal/workflows/pending"
	"bibflow/internal/workflows/sources"
)

// Service coordinates workflow state with the ledger, stores, and the
// identifier reconciler.
type Service struct {
	cfg       *config.Config
	engine    engine.Engine
	ledger    pending.Ledger
	snapshots sources.Store
	records   recstore.Store
	minter    *minter.Minter
	validator validator.Validator
	audit     audit.Recorder
	runner    *txcontext.Runner
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(
	cfg *config.Config,
	eng engine.Engine,
	ledger pending.Ledger,
	snapshots sources.Store,
	records recstore.Store,
	m *minter.Minter,
	v validator.Validator,
	recorder audit.Recorder,
	runner *txcontext.Runner,
	logger *slog.Logger,
	met *metrics.Metrics,
) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		cfg:       cfg,
		engine:    eng,
		ledger:    ledger,
		snapshots: snapshots,
		records:   records,
		minter:    m,
		validator: v,
		audit:     recorder,
		runner:    runner,
		logger:    logger,
		metrics:   met,
	}
}

// Outcome is the per-reference result of a batch callback.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
