package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bibflow/internal/pidstore/models"
	"bibflow/pkg/platform/sentinel"
)

// InMemory mirrors the Postgres store's semantics, including the (type, value)
// uniqueness behavior, so services behave identically under test.
type InMemory struct {
	mu    sync.RWMutex
	pids  []models.Identifier // mint order; FindByRecord reverses
	index map[string]int      // key: type + "\x00" + value -> pids offset
	next  int64               // control number sequence
}

func NewInMemory() *InMemory {
	return &InMemory{index: make(map[string]int), next: 1000000}
}

func key(pidType models.Type, value string) string {
	return string(pidType) + "\x00" + value
}

func (s *InMemory) Create(_ context.Context, pid models.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.index[key(pid.Type, pid.Value)]; ok {
		if s.pids[at].RecordID == pid.RecordID {
			return nil
		}
		return sentinel.ErrConflict
	}
	pid.CreatedAt = time.Now()
	pid.UpdatedAt = pid.CreatedAt
	s.index[key(pid.Type, pid.Value)] = len(s.pids)
	s.pids = append(s.pids, pid)
	return nil
}

// FindByRecord returns the record's live identifiers of one type, most
// recently minted first, matching the Postgres ORDER BY created_at DESC.
func (s *InMemory) FindByRecord(_ context.Context, recordID uuid.UUID, pidType models.Type) ([]models.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Identifier
	for i := len(s.pids) - 1; i >= 0; i-- {
		pid := s.pids[i]
		if pid.RecordID == recordID && pid.Type == pidType && pid.Status != models.StatusDeleted {
			out = append(out, pid)
		}
	}
	return out, nil
}

func (s *InMemory) FindByValue(_ context.Context, pidType models.Type, value string) (models.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.index[key(pidType, value)]
	if !ok || s.pids[at].Status == models.StatusDeleted {
		return models.Identifier{}, sentinel.ErrNotFound
	}
	return s.pids[at], nil
}

func (s *InMemory) Retire(_ context.Context, recordID uuid.UUID, pidType models.Type, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.index[key(pidType, value)]
	if !ok || s.pids[at].RecordID != recordID {
		return sentinel.ErrNotFound
	}
	s.pids[at].Status = models.StatusDeleted
	delete(s.index, key(pidType, value))
	return nil
}

func (s *InMemory) NextControlNumber(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	return n, nil
}
