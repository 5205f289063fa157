package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Dispatcher runs workflow continuations asynchronously. Callbacks must
// acknowledge before the resumed workflow finishes, so Enqueue never blocks on
// the continuation itself; a bounded group caps concurrent resumptions.
type Dispatcher struct {
	continuer Continuer
	logger    *slog.Logger
	group     *errgroup.Group
	ctx       context.Context
}

// NewDispatcher builds a dispatcher running continuations on the given base
// context with at most limit in flight.
func NewDispatcher(ctx context.Context, continuer Continuer, logger *slog.Logger, limit int) *Dispatcher {
	group, groupCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}
	return &Dispatcher{
		continuer: continuer,
		logger:    logger,
		group:     group,
		ctx:       groupCtx,
	}
}

// Enqueue schedules one continuation. Failures are logged, not propagated;
// the workflow stays in its persisted state for operators to retry.
func (d *Dispatcher) Enqueue(_ context.Context, id uuid.UUID) error {
	d.group.Go(func() error {
		if err := d.continuer.Continue(d.ctx, id); err != nil {
			d.logger.ErrorContext(d.ctx, "workflow continuation failed",
				slog.String("workflow_id", id.String()),
				slog.String("error", err.Error()))
		}
		return nil
	})
	return nil
}

// Drain waits for in-flight continuations, used during shutdown.
func (d *Dispatcher) Drain() error {
	return d.group.Wait()
}
