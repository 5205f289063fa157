// Package publisher emits audit events to a backing store, synchronously by
// default or through a bounded async buffer when losing an event under
// pressure is acceptable.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "bibflow/pkg/platform/audit"
)

var errBufferFull = errors.New("audit buffer full")

// Publisher writes events to an audit store.
type Publisher struct {
	store audit.Store

	buffer chan audit.Event
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission through a buffer of the given
// size. A full buffer drops the event rather than blocking the caller.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan audit.Event, size)
	}
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one event. Synchronous publishers block until the store write
// finishes; async publishers hand the event to the buffer.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errBufferFull
	}
}

// List returns the stored trail for one record.
func (p *Publisher) List(ctx context.Context, recordID string) ([]audit.Event, error) {
	return p.store.ListByRecord(ctx, recordID)
}

// Close stops the async drain after flushing buffered events. Safe to call on
// synchronous publishers and safe to call twice.
func (p *Publisher) Close() {
	p.once.Do(func() {
		close(p.done)
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		// Detached context: the emitting request may be long gone.
		_ = p.store.Append(context.Background(), event)
	}
}
