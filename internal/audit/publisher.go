package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"purchasegate/pkg/requestcontext"
)

// Publisher records purchase state transitions off the request path.
//
// Consent changes bypass it and append to a Store inside their own
// transaction: for consent the trail is part of the write, not a side effect.
type Publisher struct {
	store   Store
	queue   chan Event
	wg      sync.WaitGroup
	logger  *slog.Logger
	dropped atomic.Int64
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer queues up to size events for a background writer. Without
// it Emit appends synchronously.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan Event, size)
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.queue {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"action", event.Action,
				"subject_id", event.SubjectID,
				"request_id", event.RequestID,
			)
		}
	}
}

// Close stops accepting events and waits for the queue to empty.
func (p *Publisher) Close() {
	if p.queue != nil {
		close(p.queue)
		p.wg.Wait()
	}
}

// Emit records event. Missing timestamp, request ID and actor are filled from
// ctx (request time, request ID, authenticated parent). When the async queue
// is full the event is dropped and counted rather than stalling a purchase.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		if parent := requestcontext.ParentID(ctx); !parent.IsNil() {
			event.ActorID = parent.String()
		}
	}

	if p.queue == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
		p.logger.WarnContext(ctx, "audit queue full, event dropped",
			"action", event.Action,
			"subject_id", event.SubjectID,
		)
	}
	return nil
}

// Dropped is the number of events discarded because the queue was full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}
