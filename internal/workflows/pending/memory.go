package pending

import (
	"context"
	"sync"

	"bibflow/pkg/platform/sentinel"
)

// InMemory mirrors the Postgres ledger's primary-key semantics for tests.
type InMemory struct {
	mu      sync.RWMutex
	entries map[int64]Entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[int64]Entry)}
}

func (l *InMemory) Add(_ context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[entry.RecordID]; ok {
		return sentinel.ErrConflict
	}
	l.entries[entry.RecordID] = entry
	return nil
}

func (l *InMemory) FindByRecord(_ context.Context, recordID int64) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.entries[recordID]
	if !ok {
		return Entry{}, sentinel.ErrNotFound
	}
	return entry, nil
}

func (l *InMemory) Delete(_ context.Context, recordID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[recordID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(l.entries, recordID)
	return nil
}
