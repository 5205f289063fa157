// Package minter reconciles a record's declared identifiers with the
// identifier store. Each identifier type carries its own policy: control
// numbers are minted once, arXiv identifiers only accumulate, ISBNs track the
// document, and texkeys evolve with the cited authorship.
package minter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	dErrors "bibflow/pkg/domain-errors"
	"bibflow/pkg/platform/audit"
	"bibflow/pkg/platform/sentinel"

	"bibflow/internal/pidstore/metrics"
	"bibflow/internal/pidstore/models"
	"bibflow/internal/pidstore/store"
	"bibflow/internal/pidstore/texkey"
	recmodels "bibflow/internal/records/models"
	recstore "bibflow/internal/records/store"
)

// Minter applies the per-type identifier policies for one record version.
type Minter struct {
	pids    store.Store
	records recstore.Store
	audit   audit.Recorder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(pids store.Store, records recstore.Store, recorder audit.Recorder, logger *slog.Logger, m *metrics.Metrics) *Minter {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Minter{
		pids:    pids,
		records: records,
		audit:   recorder,
		logger:  logger,
		metrics: m,
	}
}

// Reconcile runs every identifier policy against the record and commits the
// fields the policies rewrote (control_number, texkeys). Callers run it inside
// a transaction: a control-number conflict fails it and rolls everything back,
// while collisions on the other types are skipped without poisoning the
// transaction.
func (m *Minter) Reconcile(ctx context.Context, recordID uuid.UUID, record *recmodels.Record) error {
	if err := m.MintRecordID(ctx, recordID, record); err != nil {
		return err
	}
	if err := m.MintArxiv(ctx, recordID, record); err != nil {
		return err
	}
	if err := m.MintISBNs(ctx, recordID, record); err != nil {
		return err
	}
	if err := m.MintTexkey(ctx, recordID, record); err != nil {
		return err
	}
	return m.records.Commit(ctx, recordID, record)
}

// MintRecordID assigns the record its control number on first mint and binds
// it as a recid identifier. A value already owned by another record is a
// collision and is reported, not retried.
func (m *Minter) MintRecordID(ctx context.Context, recordID uuid.UUID, record *recmodels.Record) error {
	if record.ControlNumber == 0 {
		next, err := m.pids.NextControlNumber(ctx)
		if err != nil {
			return fmt.Errorf("allocating control number: %w", err)
		}
		record.ControlNumber = next
	}

	value := strconv.FormatInt(record.ControlNumber, 10)
	err := m.create(ctx, recordID, models.TypeRecID, value)
	if errors.Is(err, sentinel.ErrConflict) {
		m.metrics.IncCollision(string(models.TypeRecID))
		m.logger.ErrorContext(ctx, "control number already bound to another record",
			slog.String("record_id", recordID.String()),
			slog.String("pid_value", value))
		return dErrors.Newf(dErrors.CodeConflict, "control number %s already taken", value)
	}
	return err
}

// MintArxiv binds every declared arXiv eprint. The set only grows; a value
// owned by another record is logged and skipped so the rest of the
// reconciliation proceeds.
func (m *Minter) MintArxiv(ctx context.Context, recordID uuid.UUID, record *recmodels.Record) error {
	for _, value := range record.EprintValues() {
		err := m.create(ctx, recordID, models.TypeArxiv, value)
		if errors.Is(err, sentinel.ErrConflict) {
			m.metrics.IncCollision(string(models.TypeArxiv))
			m.logger.WarnContext(ctx, "arxiv identifier already bound to another record",
				slog.String("record_id", recordID.String()),
				slog.String("pid_value", value))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// MintISBNs replaces the stored ISBN set with the record's declared set:
// identifiers the record no longer lists are retired, new ones are minted.
func (m *Minter) MintISBNs(ctx context.Context, recordID uuid.UUID, record *recmodels.Record) error {
	current, err := m.pids.FindByRecord(ctx, recordID, models.TypeISBN)
	if err != nil {
		return err
	}
	stored := make([]string, 0, len(current))
	for _, pid := range current {
		stored = append(stored, pid.Value)
	}
	declared := record.ISBNValues()

	for _, value := range missingFrom(stored, declared) {
		if err := m.retire(ctx, recordID, models.TypeISBN, value); err != nil {
			return err
		}
	}
	for _, value := range missingFrom(declared, stored) {
		err := m.create(ctx, recordID, models.TypeISBN, value)
		if errors.Is(err, sentinel.ErrConflict) {
			m.metrics.IncCollision(string(models.TypeISBN))
			m.logger.WarnContext(ctx, "isbn already bound to another record",
				slog.String("record_id", recordID.String()),
				slog.String("pid_value", value))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// MintTexkey keeps the record citable under every key it ever carried. When
// the current key no longer reflects the record, a fresh one is generated and
// becomes the canonical (first) key; superseded keys stay bound. The record's
// texkeys field is refreshed from the store, newest first.
func (m *Minter) MintTexkey(ctx context.Context, recordID uuid.UUID, record *recmodels.Record) error {
	// Keys the record arrived with may predate this store; bind them before
	// any fresh mint so a generated key is always the newest on file.
	for _, key := range record.Texkeys {
		err := m.create(ctx, recordID, models.TypeTexkey, key)
		if errors.Is(err, sentinel.ErrConflict) {
			m.metrics.IncCollision(string(models.TypeTexkey))
			m.logger.WarnContext(ctx, "texkey already bound to another record",
				slog.String("record_id", recordID.String()),
				slog.String("pid_value", key))
			continue
		}
		if err != nil {
			return err
		}
	}

	if !texkey.IsValid(record, record.Texkeys) {
		key := texkey.Generate(record, true)
		if key != "" {
			err := m.create(ctx, recordID, models.TypeTexkey, key)
			switch {
			case errors.Is(err, sentinel.ErrConflict):
				m.metrics.IncCollision(string(models.TypeTexkey))
				m.logger.WarnContext(ctx, "generated texkey already bound to another record",
					slog.String("record_id", recordID.String()),
					slog.String("pid_value", key))
			case err != nil:
				return err
			}
		}
	}

	pids, err := m.pids.FindByRecord(ctx, recordID, models.TypeTexkey)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(pids))
	for _, pid := range pids {
		keys = append(keys, pid.Value)
	}
	record.Texkeys = keys
	return nil
}

func (m *Minter) create(ctx context.Context, recordID uuid.UUID, pidType models.Type, value string) error {
	err := m.pids.Create(ctx, models.Identifier{
		RecordID: recordID,
		Type:     pidType,
		Value:    value,
		Status:   models.StatusRegistered,
	})
	if err != nil {
		return err
	}
	m.metrics.IncMinted(string(pidType))
	return m.audit.Emit(ctx, audit.Event{
		ID:       uuid.New(),
		Action:   audit.ActionIdentifierMinted,
		RecordID: recordID.String(),
		Subject:  string(pidType) + ":" + value,
	})
}

func (m *Minter) retire(ctx context.Context, recordID uuid.UUID, pidType models.Type, value string) error {
	err := m.pids.Retire(ctx, recordID, pidType, value)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	m.metrics.IncRetired(string(pidType))
	return m.audit.Emit(ctx, audit.Event{
		ID:       uuid.New(),
		Action:   audit.ActionIdentifierRetired,
		RecordID: recordID.String(),
		Subject:  string(pidType) + ":" + value,
	})
}

// missingFrom returns the values of want absent from have, preserving order.
func missingFrom(want, have []string) []string {
	seen := make(map[string]struct{}, len(have))
	for _, v := range have {
		seen[v] = struct{}{}
	}
	var out []string
	for _, v := range want {
		if _, ok := seen[v]; ok {
			continue
		}
		out = append(out, v)
	}
	return out
}
