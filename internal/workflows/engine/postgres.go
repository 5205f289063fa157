package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bibflow/pkg/platform/sentinel"
	txcontext "bibflow/pkg/platform/tx"

	recmodels "bibflow/internal/records/models"
	"bibflow/internal/workflows/models"
)

// PostgresEngine persists workflow state in PostgreSQL and hands resumption to
// a dispatcher. Get and Save participate in an ambient transaction when one is
// on the context.
type PostgresEngine struct {
	db         *sql.DB
	dispatcher *Dispatcher
}

func NewPostgres(db *sql.DB, dispatcher *Dispatcher) *PostgresEngine {
	return &PostgresEngine{db: db, dispatcher: dispatcher}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (e *PostgresEngine) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return e.db
}

func (e *PostgresEngine) Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	var (
		workflow models.Workflow
		rawData  []byte
		rawExtra []byte
	)
	err := e.runner(ctx).QueryRowContext(ctx, `
		SELECT id, status, stage, data, extra_data
		FROM workflows
		WHERE id = $1
	`, id).Scan(&workflow.ID, &workflow.Status, &workflow.Stage, &rawData, &rawExtra)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading workflow: %w", err)
	}

	if len(rawData) > 0 && string(rawData) != "{}" {
		var record recmodels.Record
		if err := json.Unmarshal(rawData, &record); err != nil {
			return nil, fmt.Errorf("decoding workflow data: %w", err)
		}
		workflow.Data = &record
	}
	if err := json.Unmarshal(rawExtra, &workflow.Extra); err != nil {
		return nil, fmt.Errorf("decoding workflow extra data: %w", err)
	}
	return &workflow, nil
}

func (e *PostgresEngine) Save(ctx context.Context, workflow *models.Workflow) error {
	data := []byte("{}")
	if workflow.Data != nil {
		raw, err := json.Marshal(workflow.Data)
		if err != nil {
			return fmt.Errorf("encoding workflow data: %w", err)
		}
		data = raw
	}
	extra, err := json.Marshal(workflow.Extra)
	if err != nil {
		return fmt.Errorf("encoding workflow extra data: %w", err)
	}

	_, err = e.runner(ctx).ExecContext(ctx, `
		INSERT INTO workflows (id, status, stage, data, extra_data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status     = EXCLUDED.status,
			stage      = EXCLUDED.stage,
			data       = EXCLUDED.data,
			extra_data = EXCLUDED.extra_data,
			updated_at = now()
	`, workflow.ID, workflow.Status, workflow.Stage, data, extra)
	if err != nil {
		return fmt.Errorf("saving workflow: %w", err)
	}
	return nil
}

// ContinueAsync queues the workflow for resumption. The dispatcher runs it
// after the calling transaction has committed; a nil dispatcher makes this a
// recorded no-op for wiring without a step executor.
func (e *PostgresEngine) ContinueAsync(ctx context.Context, id uuid.UUID) error {
	if e.dispatcher == nil {
		return nil
	}
	return e.dispatcher.Enqueue(ctx, id)
}
