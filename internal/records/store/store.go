package store

import (
	"context"

	"github.com/google/uuid"

	"bibflow/internal/records/models"
)

// Store is the record store collaborator. Reconciliation only reads records
// and commits identifier-bearing field updates; versioning stays out of scope.
type Store interface {
	Create(ctx context.Context, record *models.Record) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)
	Commit(ctx context.Context, id uuid.UUID, record *models.Record) error
	FindByControlNumber(ctx context.Context, controlNumber int64) (uuid.UUID, *models.Record, error)
}
