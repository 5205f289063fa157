package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bibflow/internal/records/models"
	"bibflow/pkg/platform/sentinel"
	txcontext "bibflow/pkg/platform/tx"
)

// PostgresStore persists record documents as JSONB.
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

func (s *PostgresStore) Create(ctx context.Context, record *models.Record) (uuid.UUID, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal record: %w", err)
	}
	id := uuid.New()
	_, err = s.runner(ctx).ExecContext(ctx,
		`INSERT INTO records (id, json) VALUES ($1, $2)`, id, raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create record: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	var raw []byte
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT json FROM records WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	var record models.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &record, nil
}

func (s *PostgresStore) Commit(ctx context.Context, id uuid.UUID, record *models.Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	res, err := s.runner(ctx).ExecContext(ctx,
		`UPDATE records SET json = $2, updated_at = now() WHERE id = $1`, id, raw)
	if err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByControlNumber(ctx context.Context, controlNumber int64) (uuid.UUID, *models.Record, error) {
	var (
		id  uuid.UUID
		raw []byte
	)
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT id, json FROM records WHERE (json->>'control_number')::bigint = $1`,
		controlNumber).Scan(&id, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, nil, sentinel.ErrNotFound
		}
		return uuid.Nil, nil, fmt.Errorf("find record by control number: %w", err)
	}
	var record models.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return uuid.Nil, nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return id, &record, nil
}
