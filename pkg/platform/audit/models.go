// Package audit records identifier and workflow lifecycle events through a
// transactional outbox. Events append in the same transaction as the state
// change they describe; a background worker drains the outbox to Kafka.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names an auditable lifecycle event.
type Action string

const (
	ActionIdentifierMinted  Action = "identifier.minted"
	ActionIdentifierRetired Action = "identifier.retired"
	ActionWorkflowResumed   Action = "workflow.resumed"
	ActionWorkflowHalted    Action = "workflow.halted"
	ActionWorkflowErrored   Action = "workflow.errored"
)

// Event is one audit trail entry.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Action     Action    `json:"action"`
	RecordID   string    `json:"record_id,omitempty"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store persists audit events. Postgres-backed stores write the outbox table;
// the memory store holds events directly for tests and single-process runs.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRecord(ctx context.Context, recordID string) ([]Event, error)
}

// Recorder is the narrow emit interface services depend on.
type Recorder interface {
	Emit(ctx context.Context, event Event) error
}

// Nop discards events; wiring for tests that don't assert on the trail.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
