// Package memory provides an in-memory audit store for tests and
// single-process runs.
package memory

import (
	"context"
	"sync"

	audit "bibflow/pkg/platform/audit"
)

// InMemoryStore holds events in emission order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByRecord(_ context.Context, recordID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, event := range s.events {
		if event.RecordID == recordID {
			out = append(out, event)
		}
	}
	return out, nil
}

// ListAll returns every stored event, useful in assertions.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event(nil), s.events...), nil
}
