// Package worker drains the audit outbox to Kafka.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bibflow/pkg/platform/audit/store/postgres"
)

const (
	defaultInterval  = 2 * time.Second
	defaultBatchSize = 100
)

// Producer publishes one serialized event.
type Producer interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Outbox fetches unpublished entries and marks them done.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Worker polls the outbox table and forwards entries to Kafka. Entries stay
// unpublished until the produce ack, so a crash between produce and mark can
// replay events; consumers must treat the event ID as the dedupe key.
type Worker struct {
	outbox   Outbox
	producer Producer
	logger   *slog.Logger

	interval  time.Duration
	batchSize int
}

func NewWorker(outbox Outbox, producer Producer, logger *slog.Logger) *Worker {
	return &Worker{
		outbox:    outbox,
		producer:  producer,
		logger:    logger,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.logger.Error("audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) error {
	entries, err := w.outbox.FetchUnpublished(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if err := w.producer.Publish(ctx, entry.ID.String(), entry.Payload); err != nil {
			// Stop at the first failure to preserve outbox order.
			w.logger.Error("audit event publish failed", "event_id", entry.ID, "error", err)
			break
		}
		published = append(published, entry.ID)
	}
	if len(published) == 0 {
		return nil
	}

	return w.outbox.MarkPublished(ctx, published)
}
