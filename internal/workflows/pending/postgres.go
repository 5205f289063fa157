package pending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"bibflow/pkg/platform/sentinel"
	txcontext "bibflow/pkg/platform/tx"
)

// PostgresLedger persists pending-completion entries. The primary key on
// record_id enforces the one-outstanding-entry invariant at commit time.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l *PostgresLedger) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return l.db
}

func (l *PostgresLedger) Add(ctx context.Context, entry Entry) error {
	_, err := l.runner(ctx).ExecContext(ctx, `
		INSERT INTO workflows_pending_records (record_id, workflow_id)
		VALUES ($1, $2)
	`, entry.RecordID, entry.WorkflowID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("adding pending entry: %w", err)
	}
	return nil
}

func (l *PostgresLedger) FindByRecord(ctx context.Context, recordID int64) (Entry, error) {
	var entry Entry
	err := l.runner(ctx).QueryRowContext(ctx, `
		SELECT record_id, workflow_id
		FROM workflows_pending_records
		WHERE record_id = $1
	`, recordID).Scan(&entry.RecordID, &entry.WorkflowID)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("finding pending entry: %w", err)
	}
	return entry, nil
}

func (l *PostgresLedger) Delete(ctx context.Context, recordID int64) error {
	res, err := l.runner(ctx).ExecContext(ctx, `
		DELETE FROM workflows_pending_records
		WHERE record_id = $1
	`, recordID)
	if err != nil {
		return fmt.Errorf("deleting pending entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting pending entry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
