package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bibflow/pkg/platform/sentinel"
	txcontext "bibflow/pkg/platform/tx"
)

// PostgresStore persists snapshots under the (record_id, source) primary key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Write(ctx context.Context, snapshot Snapshot) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO workflows_record_sources (record_id, source, json)
		VALUES ($1, $2, $3)
		ON CONFLICT (record_id, source) DO UPDATE SET
			json       = EXCLUDED.json,
			updated_at = now()
	`, snapshot.RecordID, snapshot.Source, []byte(snapshot.JSON))
	if err != nil {
		return fmt.Errorf("writing source snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context, recordID uuid.UUID, source string) (Snapshot, error) {
	snapshot := Snapshot{RecordID: recordID, Source: source}
	var raw []byte
	err := s.runner(ctx).QueryRowContext(ctx, `
		SELECT json
		FROM workflows_record_sources
		WHERE record_id = $1 AND source = $2
	`, recordID, source).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading source snapshot: %w", err)
	}
	snapshot.JSON = raw
	return snapshot, nil
}
