package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"tenantplane/contracts/tenant"
	"tenantplane/pkg/platform/validation"
	"tenantplane/pkg/requestcontext"
)

func validName(event string) bool {
	return event != "" && len(event) <= validation.MaxEventNameLength
}

type subscription struct {
	module  string
	handler Handler
}

// Bus validates publishers and subscribers against their contracts and fans
// deliveries out to registered handlers. Construct one per process and
// inject it; Bind it once module discovery has finished.
type Bus struct {
	transport      Transport
	logger         *slog.Logger
	metrics        *Metrics
	handlerTimeout time.Duration
	now            func() time.Time
	tenants        TenantLookup

	bindOnce sync.Once
	source   ContractSource

	subMu    sync.Mutex
	mu       sync.RWMutex
	handlers map[string][]subscription
	closed   bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithMetrics sets the bus metrics.
func WithMetrics(m *Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithHandlerTimeout bounds each handler invocation. Defaults to 30s.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) { b.handlerTimeout = d }
}

// TenantLookup loads the full view of a tenant named by an envelope,
// whatever its status, so deliveries reach that tenant's own store.
type TenantLookup interface {
	LookupTenant(ctx context.Context, slug string) (*tenant.ResolvedTenant, error)
}

// WithTenantLookup resolves envelope tenants before delivery. Without one,
// handlers see a tenant carrying only its slug.
func WithTenantLookup(l TenantLookup) Option {
	return func(b *Bus) { b.tenants = l }
}

// WithClock overrides the envelope timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// New returns an unbound bus over transport.
func New(transport Transport, opts ...Option) *Bus {
	b := &Bus{
		transport:      transport,
		logger:         slog.Default(),
		metrics:        NewMetrics(nil),
		handlerTimeout: 30 * time.Second,
		now:            time.Now,
		handlers:       make(map[string][]subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind sets the contract source. It succeeds exactly once.
func (b *Bus) Bind(source ContractSource) error {
	err := ErrAlreadyBound
	b.bindOnce.Do(func() {
		b.mu.Lock()
		b.source = source
		b.mu.Unlock()
		err = nil
	})
	return err
}

// authorize checks module against its contract. allowed picks the
// publish or subscribe side.
func (b *Bus) authorize(module, event string, allowed func(*Contract, string) bool) error {
	if module == CoreModule {
		return nil
	}
	b.mu.RLock()
	source := b.source
	b.mu.RUnlock()
	if source == nil {
		return ErrNotBound
	}
	contract, ok := source.Contract(module)
	if !ok {
		return ErrUnknownModule
	}
	if !allowed(contract, event) {
		return ErrUndeclaredEvent
	}
	return nil
}

// Publish wraps payload in an envelope and broadcasts it on the event's
// channel. Contract violations and transport failures are logged and
// returned; Publish never panics.
func (b *Bus) Publish(ctx context.Context, module, event string, payload any) error {
	if !validName(event) {
		return ErrInvalidEvent
	}
	if b.isClosed() {
		return ErrClosed
	}
	if err := b.authorize(module, event, (*Contract).CanPublish); err != nil {
		b.metrics.Published.WithLabelValues(event, "rejected").Inc()
		b.logger.WarnContext(ctx, "event publish rejected",
			"module", module,
			"event", event,
			"error", err,
		)
		return fmt.Errorf("publish %s from %s: %w", event, module, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		b.metrics.Published.WithLabelValues(event, "error").Inc()
		b.logger.ErrorContext(ctx, "event payload encoding failed", "module", module, "event", event, "error", err)
		return fmt.Errorf("encode %s payload: %w", event, err)
	}

	env := Envelope{
		ID:          uuid.NewString(),
		Event:       event,
		Source:      module,
		Tenant:      requestcontext.TenantSlug(ctx),
		PublishedAt: b.now().UTC(),
		Payload:     data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		b.metrics.Published.WithLabelValues(event, "error").Inc()
		return fmt.Errorf("encode %s envelope: %w", event, err)
	}

	if err := b.transport.Publish(ctx, Channel(event), raw); err != nil {
		b.metrics.Published.WithLabelValues(event, "error").Inc()
		b.logger.ErrorContext(ctx, "event transport publish failed",
			"module", module,
			"event", event,
			"event_id", env.ID,
			"error", err,
		)
		return fmt.Errorf("publish %s: %w", event, err)
	}

	b.metrics.Published.WithLabelValues(event, "ok").Inc()
	b.logger.DebugContext(ctx, "event published", "module", module, "event", event, "event_id", env.ID)
	return nil
}

// Subscribe registers handler for event on behalf of module. The first
// subscription to an event opens its transport channel.
func (b *Bus) Subscribe(ctx context.Context, module, event string, handler Handler) error {
	if !validName(event) || handler == nil {
		return ErrInvalidEvent
	}
	if err := b.authorize(module, event, (*Contract).CanSubscribe); err != nil {
		b.logger.WarnContext(ctx, "event subscription rejected",
			"module", module,
			"event", event,
			"error", err,
		)
		return fmt.Errorf("subscribe %s to %s: %w", module, event, err)
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	first := len(b.handlers[event]) == 0
	b.handlers[event] = append(b.handlers[event], subscription{module: module, handler: handler})
	b.mu.Unlock()

	if first {
		err := b.transport.Subscribe(ctx, Channel(event), func(data []byte) { b.dispatch(event, data) })
		if err != nil {
			b.mu.Lock()
			delete(b.handlers, event)
			b.mu.Unlock()
			b.logger.ErrorContext(ctx, "event transport subscribe failed", "event", event, "error", err)
			return fmt.Errorf("subscribe %s: %w", event, err)
		}
	}

	b.logger.InfoContext(ctx, "event subscription registered", "module", module, "event", event)
	return nil
}

// Subscriptions returns the number of handlers registered for event.
func (b *Bus) Subscriptions(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}

func (b *Bus) dispatch(event string, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.metrics.Delivered.WithLabelValues(event, "malformed").Inc()
		b.logger.Error("malformed event envelope", "event", event, "error", err)
		return
	}

	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[event]...)
	b.mu.RUnlock()

	ctx := requestcontext.WithRequestID(context.Background(), env.ID)
	if env.Tenant != "" {
		t, err := b.deliveryTenant(ctx, env.Tenant)
		if err != nil {
			b.metrics.Delivered.WithLabelValues(event, "unresolved").Add(float64(len(subs)))
			b.logger.ErrorContext(ctx, "event tenant not resolved",
				"event", event,
				"event_id", env.ID,
				"tenant", env.Tenant,
				"error", err,
			)
			return
		}
		ctx = requestcontext.WithTenant(ctx, t)
	}
	for _, sub := range subs {
		b.invoke(ctx, sub, env)
	}
}

// deliveryTenant returns the tenant handlers run as. A tenant that cannot
// be loaded is never delivered to.
func (b *Bus) deliveryTenant(ctx context.Context, slug string) (*tenant.ResolvedTenant, error) {
	if b.tenants == nil {
		return &tenant.ResolvedTenant{Slug: slug, Active: true}, nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
	defer cancel()
	t, err := b.tenants.LookupTenant(lookupCtx, slug)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("tenant %q not found", slug)
	}
	return t, nil
}

// invoke runs one handler behind its own failure boundary.
func (b *Bus) invoke(ctx context.Context, sub subscription, env Envelope) {
	ctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
	defer cancel()

	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			b.logger.ErrorContext(ctx, "event handler panicked",
				"module", sub.module,
				"event", env.Event,
				"event_id", env.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
		b.metrics.Delivered.WithLabelValues(env.Event, outcome).Inc()
	}()

	if err := sub.handler(ctx, env); err != nil {
		outcome = "error"
		b.logger.ErrorContext(ctx, "event handler failed",
			"module", sub.module,
			"event", env.Event,
			"event_id", env.ID,
			"error", err,
		)
	}
}

func (b *Bus) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Close stops every transport subscription. Safe to call twice.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	return b.transport.Close()
}
