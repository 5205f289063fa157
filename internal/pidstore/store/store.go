package store

import (
	"context"

	"github.com/google/uuid"

	"bibflow/internal/pidstore/models"
)

// Store is the durable identifier mapping. Create relies on the backing
// uniqueness constraint for collision detection: minting a value owned by a
// different record returns sentinel.ErrConflict, minting a value the same
// record already owns is a no-op.
type Store interface {
	Create(ctx context.Context, pid models.Identifier) error
	FindByRecord(ctx context.Context, recordID uuid.UUID, pidType models.Type) ([]models.Identifier, error)
	FindByValue(ctx context.Context, pidType models.Type, value string) (models.Identifier, error)
	Retire(ctx context.Context, recordID uuid.UUID, pidType models.Type, value string) error
	NextControlNumber(ctx context.Context) (int64, error)
}
