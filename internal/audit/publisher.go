package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher captures audit events. It is append-only and uses the storage
// layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store  Store
	events chan Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
	async  bool
	now    func() time.Time
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Events are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Go(p.processEvents)
	}
	return p
}

func (p *Publisher) processEvents() {
	for event := range p.events {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"action", event.Action,
				"tenant", event.Tenant,
			)
		}
	}
}

// Close shuts down the async publisher and waits for pending events to drain.
// Events emitted afterwards are dropped.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.async {
		close(p.events)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	if p.async {
		p.mu.RLock()
		defer p.mu.RUnlock()
		if p.closed {
			p.logger.WarnContext(ctx, "audit publisher closed, event dropped", "action", event.Action, "tenant", event.Tenant)
			return nil
		}
		// Non-blocking send; a full buffer drops the event.
		select {
		case p.events <- event:
			return nil
		default:
			p.logger.WarnContext(ctx, "audit buffer full, event dropped",
				"action", event.Action,
				"tenant", event.Tenant,
			)
			return nil
		}
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, tenant string, limit int) ([]Event, error) {
	return p.store.ListByTenant(ctx, tenant, limit)
}
