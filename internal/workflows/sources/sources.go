// Package sources stores per-source merge baselines: the last JSON a given
// feeder successfully merged for a record. Conflict detection diffs an
// incoming update against this snapshot; the snapshot only moves forward on a
// conflict-free (or resolved) merge.
package sources

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Snapshot is the last-merged document for one (record, source) pair.
type Snapshot struct {
	RecordID uuid.UUID
	Source   string
	JSON     json.RawMessage
}

// Store persists snapshots. Write upserts; Read returns sentinel.ErrNotFound
// when the source has never merged into the record.
type Store interface {
	Write(ctx context.Context, snapshot Snapshot) error
	Read(ctx context.Context, recordID uuid.UUID, source string) (Snapshot, error)
}
