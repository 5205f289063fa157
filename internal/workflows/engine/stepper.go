package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"bibflow/internal/workflows/models"
)

// stateStore is the slice of the engine a Stepper needs.
type stateStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
}

// Stepper advances a resumed workflow to its next suspension point. The heavy
// pipeline steps (enrichment, upload, indexing) run in external systems and
// report back through callbacks, so advancing here means parking the workflow
// at the wait state its stage implies, or completing it when nothing is left.
type Stepper struct {
	store  stateStore
	logger *slog.Logger
}

func NewStepper(store stateStore, logger *slog.Logger) *Stepper {
	return &Stepper{store: store, logger: logger}
}

func (s *Stepper) Continue(ctx context.Context, id uuid.UUID) error {
	workflow, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if workflow.Status != models.StatusRunning {
		// Halted or errored between the signal and now; leave it alone.
		return nil
	}

	switch workflow.Stage {
	case models.StageUploadPending, models.StageIndexPending:
		workflow.Status = models.StatusWaiting
	default:
		workflow.Status = models.StatusCompleted
		workflow.Stage = ""
	}

	if err := s.store.Save(ctx, workflow); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "workflow advanced",
		slog.String("workflow_id", id.String()),
		slog.String("status", string(workflow.Status)),
		slog.String("stage", string(workflow.Stage)))
	return nil
}
