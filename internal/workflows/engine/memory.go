package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"bibflow/pkg/platform/sentinel"

	"bibflow/internal/workflows/models"
)

// InMemory is the engine used by tests and single-process runs. ContinueAsync
// records the resumed IDs and optionally invokes a hook, so tests can assert
// on resumption without a real step executor.
type InMemory struct {
	mu        sync.RWMutex
	workflows map[uuid.UUID]*models.Workflow
	continued []uuid.UUID

	// ContinueFunc, when set, runs synchronously on ContinueAsync.
	ContinueFunc func(ctx context.Context, id uuid.UUID) error
}

func NewInMemory() *InMemory {
	return &InMemory{workflows: make(map[uuid.UUID]*models.Workflow)}
}

func (e *InMemory) Get(_ context.Context, id uuid.UUID) (*models.Workflow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	workflow, ok := e.workflows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneWorkflow(workflow)
}

func (e *InMemory) Save(_ context.Context, workflow *models.Workflow) error {
	clone, err := cloneWorkflow(workflow)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[workflow.ID] = clone
	return nil
}

func (e *InMemory) ContinueAsync(ctx context.Context, id uuid.UUID) error {
	e.mu.Lock()
	e.continued = append(e.continued, id)
	hook := e.ContinueFunc
	e.mu.Unlock()
	if hook != nil {
		return hook(ctx, id)
	}
	return nil
}

// Continued returns the IDs passed to ContinueAsync, in order.
func (e *InMemory) Continued() []uuid.UUID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]uuid.UUID(nil), e.continued...)
}

func cloneWorkflow(workflow *models.Workflow) (*models.Workflow, error) {
	raw, err := json.Marshal(workflow)
	if err != nil {
		return nil, err
	}
	var out models.Workflow
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
