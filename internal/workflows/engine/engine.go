// Package engine exposes the workflow engine collaborator: load and persist
// workflow state, and signal a halted workflow to continue asynchronously.
// Step execution itself lives outside this service; callbacks only need these
// three operations.
package engine

import (
	"context"

	"github.com/google/uuid"

	"bibflow/internal/workflows/models"
)

// Engine is the narrow surface callbacks drive.
type Engine interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	ContinueAsync(ctx context.Context, id uuid.UUID) error
}

// Continuer runs one resumed workflow to its next suspension point.
type Continuer interface {
	Continue(ctx context.Context, id uuid.UUID) error
}
