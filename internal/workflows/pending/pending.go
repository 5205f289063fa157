// Package pending is the pending-completion ledger: one row per record whose
// workflow is waiting for an external index confirmation. At most one entry
// may be outstanding per record; an entry is consumed exactly once.
package pending

import (
	"context"

	"github.com/google/uuid"
)

// Entry correlates a record awaiting confirmation with its halted workflow.
type Entry struct {
	RecordID   int64
	WorkflowID uuid.UUID
}

// Ledger stores pending-completion entries. Add returns sentinel.ErrConflict
// when the record already has an outstanding entry; FindByRecord and Delete
// return sentinel.ErrNotFound when no entry exists.
type Ledger interface {
	Add(ctx context.Context, entry Entry) error
	FindByRecord(ctx context.Context, recordID int64) (Entry, error)
	Delete(ctx context.Context, recordID int64) error
}
