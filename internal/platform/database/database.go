// Package database opens the Postgres pool and owns the DDL for bibflow's
// durable tables. The uniqueness constraint on (pid_type, pid_value) is the
// commit-time collision detector for identifier minting; nothing pre-checks.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id         UUID PRIMARY KEY,
		json       JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE SEQUENCE IF NOT EXISTS control_number_seq START 1000000`,
	`CREATE TABLE IF NOT EXISTS persistent_identifiers (
		id         BIGSERIAL PRIMARY KEY,
		record_id  UUID NOT NULL REFERENCES records(id) ON DELETE CASCADE,
		pid_type   TEXT NOT NULL,
		pid_value  TEXT NOT NULL,
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_pid_type_value UNIQUE (pid_type, pid_value)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pids_record_type
		ON persistent_identifiers (record_id, pid_type)`,
	`CREATE TABLE IF NOT EXISTS workflows (
		id         UUID PRIMARY KEY,
		status     TEXT NOT NULL,
		stage      TEXT NOT NULL DEFAULT '',
		data       JSONB NOT NULL DEFAULT '{}',
		extra_data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS workflows_pending_records (
		record_id   BIGINT PRIMARY KEY,
		workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS workflows_record_sources (
		record_id  UUID NOT NULL REFERENCES records(id) ON DELETE CASCADE,
		source     TEXT NOT NULL,
		json       JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (record_id, source)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_outbox (
		id           UUID PRIMARY KEY,
		payload      JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ
	)`,
}

// EnsureSchema applies the table definitions. Statements are idempotent so
// repeated startup is safe.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
