package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bibflow/internal/pidstore/models"
	"bibflow/pkg/platform/sentinel"
	txcontext "bibflow/pkg/platform/tx"
)

// PostgresStore persists identifiers in PostgreSQL. Collisions are detected at
// commit time through the (pid_type, pid_value) uniqueness constraint, never
// pre-checked.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts the identifier and reports a collision without raising a
// database error, so the ambient transaction the reconciler runs in stays
// usable after a skipped mint.
func (s *PostgresStore) Create(ctx context.Context, pid models.Identifier) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO persistent_identifiers (record_id, pid_type, pid_value, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pid_type, pid_value) DO NOTHING
	`, pid.RecordID, pid.Type, pid.Value, pid.Status)
	if err != nil {
		return fmt.Errorf("create identifier: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create identifier: %w", err)
	}
	if affected == 1 {
		return nil
	}

	existing, err := s.FindByValue(ctx, pid.Type, pid.Value)
	if err == nil && existing.RecordID == pid.RecordID {
		return nil
	}
	return sentinel.ErrConflict
}

func (s *PostgresStore) FindByRecord(ctx context.Context, recordID uuid.UUID, pidType models.Type) ([]models.Identifier, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, `
		SELECT record_id, pid_type, pid_value, status, created_at, updated_at
		FROM persistent_identifiers
		WHERE record_id = $1 AND pid_type = $2 AND status <> $3
		ORDER BY created_at DESC, id DESC
	`, recordID, pidType, models.StatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("find identifiers: %w", err)
	}
	defer rows.Close()

	var out []models.Identifier
	for rows.Next() {
		var pid models.Identifier
		if err := rows.Scan(&pid.RecordID, &pid.Type, &pid.Value, &pid.Status, &pid.CreatedAt, &pid.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		out = append(out, pid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find identifiers: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByValue(ctx context.Context, pidType models.Type, value string) (models.Identifier, error) {
	var pid models.Identifier
	err := s.runner(ctx).QueryRowContext(ctx, `
		SELECT record_id, pid_type, pid_value, status, created_at, updated_at
		FROM persistent_identifiers
		WHERE pid_type = $1 AND pid_value = $2 AND status <> $3
	`, pidType, value, models.StatusDeleted).Scan(
		&pid.RecordID, &pid.Type, &pid.Value, &pid.Status, &pid.CreatedAt, &pid.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Identifier{}, sentinel.ErrNotFound
		}
		return models.Identifier{}, fmt.Errorf("find identifier by value: %w", err)
	}
	return pid, nil
}

func (s *PostgresStore) Retire(ctx context.Context, recordID uuid.UUID, pidType models.Type, value string) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		DELETE FROM persistent_identifiers
		WHERE record_id = $1 AND pid_type = $2 AND pid_value = $3
	`, recordID, pidType, value)
	if err != nil {
		return fmt.Errorf("retire identifier: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retire identifier: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) NextControlNumber(ctx context.Context) (int64, error) {
	var next int64
	if err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT nextval('control_number_seq')`).Scan(&next); err != nil {
		return 0, fmt.Errorf("next control number: %w", err)
	}
	return next, nil
}
