package sources

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"bibflow/pkg/platform/sentinel"
)

// InMemory mirrors the Postgres snapshot store for tests.
type InMemory struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewInMemory() *InMemory {
	return &InMemory{snapshots: make(map[string]Snapshot)}
}

func key(recordID uuid.UUID, source string) string {
	return recordID.String() + "\x00" + source
}

func (s *InMemory) Write(_ context.Context, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key(snapshot.RecordID, snapshot.Source)] = snapshot
	return nil
}

func (s *InMemory) Read(_ context.Context, recordID uuid.UUID, source string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[key(recordID, source)]
	if !ok {
		return Snapshot{}, sentinel.ErrNotFound
	}
	return snapshot, nil
}
