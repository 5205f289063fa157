package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"bibflow/internal/records/models"
	"bibflow/pkg/platform/sentinel"
)

// InMemory keeps records in a map. It deep-copies on the way in and out so
// tests cannot observe aliasing that Postgres would never produce.
type InMemory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[uuid.UUID]*models.Record)}
}

func (s *InMemory) Create(_ context.Context, record *models.Record) (uuid.UUID, error) {
	clone, err := record.Clone()
	if err != nil {
		return uuid.Nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.records[id] = clone
	return id, nil
}

func (s *InMemory) Get(_ context.Context, id uuid.UUID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone()
}

func (s *InMemory) Commit(_ context.Context, id uuid.UUID, record *models.Record) error {
	clone, err := record.Clone()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return sentinel.ErrNotFound
	}
	s.records[id] = clone
	return nil
}

func (s *InMemory) FindByControlNumber(_ context.Context, controlNumber int64) (uuid.UUID, *models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, record := range s.records {
		if record.ControlNumber == controlNumber {
			clone, err := record.Clone()
			if err != nil {
				return uuid.Nil, nil, err
			}
			return id, clone, nil
		}
	}
	return uuid.Nil, nil, sentinel.ErrNotFound
}
