package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"purchasegate/pkg/domain"
	"purchasegate/pkg/requestcontext"
)

// Sink delivers a single message. Implementations may block on I/O.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher is the Notifier handed to services. Notify never blocks the
// caller: messages are queued and delivered by a background worker. When the
// buffer is full the message is dropped and counted.
type Dispatcher struct {
	sink    Sink
	queue   chan Message
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBuffer sets the queue size when greater than zero.
func WithBuffer(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan Message, size)
		}
	}
}

// WithSendTimeout bounds each delivery attempt.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDispatcher(sink Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan Message, 256),
		timeout: 5 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Notify queues an event for the parent. It satisfies the notifier ports of
// the approval and purchase services.
func (d *Dispatcher) Notify(ctx context.Context, parentID domain.ParentID, event Event, payload Payload) {
	msg := Message{
		ParentID:   parentID,
		Event:      event,
		Payload:    payload,
		OccurredAt: requestcontext.Now(ctx),
		RequestID:  requestcontext.RequestID(ctx),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		dropped.WithLabelValues(string(event), "closed").Inc()
		return
	}
	select {
	case d.queue <- msg:
		queued.WithLabelValues(string(event)).Inc()
	default:
		dropped.WithLabelValues(string(event), "buffer_full").Inc()
		d.logger.WarnContext(ctx, "notification buffer full, message dropped",
			"event", event,
			"parent_id", parentID.String(),
		)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	start := time.Now()
	err := d.sink.Send(ctx, msg)
	observeDelivery(string(msg.Event), err, time.Since(start))
	if err != nil {
		d.logger.Error("notification delivery failed",
			"error", err,
			"event", msg.Event,
			"parent_id", msg.ParentID.String(),
			"request_id", msg.RequestID,
		)
	}
}

// Close stops accepting messages and drains the queue.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// Fanout delivers to every sink and joins their errors; one failing sink does
// not stop the others.
type Fanout []Sink

func (f Fanout) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes notifications to the structured log. It is the development
// default when no broker or email sender is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "parent notification",
		"event", msg.Event,
		"parent_id", msg.ParentID.String(),
		"purchase_id", msg.Payload.PurchaseID,
		"child_id", msg.Payload.ChildID,
		"amount", msg.Payload.Amount,
		"reason", msg.Payload.Reason,
	)
	return nil
}
