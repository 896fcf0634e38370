package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	"tenantplane/contracts/tenant"
	"tenantplane/pkg/requestcontext"
)

type contracts map[string]*Contract

func (c contracts) Contract(module string) (*Contract, bool) {
	ct, ok := c[module]
	return ct, ok
}

var testContracts = contracts{
	"hotel":   {Publishes: []string{"room.created"}},
	"billing": {Subscribes: []string{"tenant.suspended", "room.created"}},
	"crm":     {Publishes: []string{"lead.created"}, Subscribes: []string{"room.created"}},
	"reports": {Publishes: []string{"report.ready"}},
	"static":  nil,
}

// recorder collects deliveries for assertions.
type recorder struct {
	mu   sync.Mutex
	envs []Envelope
	ctxs []context.Context
}

func (r *recorder) handle(ctx context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	r.ctxs = append(r.ctxs, ctx)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.envs)
}

func (r *recorder) first() (Envelope, context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.envs[0], r.ctxs[0]
}

type failingTransport struct {
	*MemoryTransport
	publishErr   error
	subscribeErr error
}

func (f *failingTransport) Publish(ctx context.Context, channel string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	return f.MemoryTransport.Publish(ctx, channel, data)
}

func (f *failingTransport) Subscribe(ctx context.Context, channel string, deliver func([]byte)) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	return f.MemoryTransport.Subscribe(ctx, channel, deliver)
}

type BusSuite struct {
	suite.Suite
	ctx       context.Context
	transport *failingTransport
	bus       *Bus
	metrics   *Metrics
	logs      *syncWriter
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) SetupTest() {
	s.ctx = context.Background()
	s.logs = &syncWriter{w: &bytes.Buffer{}}
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.transport = &failingTransport{MemoryTransport: NewMemoryTransport(16)}
	s.bus = New(s.transport,
		WithLogger(slog.New(slog.NewJSONHandler(s.logs, nil))),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	)
	s.Require().NoError(s.bus.Bind(testContracts))
}

func (s *BusSuite) TearDownTest() {
	s.Require().NoError(s.bus.Close())
	goleak.VerifyNone(s.T())
}

func (s *BusSuite) eventually(cond func() bool) {
	s.Eventually(cond, time.Second, 5*time.Millisecond)
}

func (s *BusSuite) TestDeclaredSubscriberReceivesPayload() {
	rec := &recorder{}
	s.Require().NoError(s.bus.Subscribe(s.ctx, "billing", "tenant.suspended", rec.handle))

	s.Require().NoError(s.bus.Publish(s.ctx, CoreModule, "tenant.suspended", map[string]string{"tenant": "acme"}))

	s.eventually(func() bool { return rec.count() == 1 })
	env, _ := rec.first()
	s.Equal("tenant.suspended", env.Event)
	s.Equal(CoreModule, env.Source)
	s.NotEmpty(env.ID)
	s.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), env.PublishedAt)

	var payload map[string]string
	s.Require().NoError(env.Decode(&payload))
	s.Equal("acme", payload["tenant"])
}

func (s *BusSuite) TestUndeclaredPublishFailsWithWarningAndNoDelivery() {
	rec := &recorder{}
	s.Require().NoError(s.bus.Subscribe(s.ctx, CoreModule, "report.generated", rec.handle))

	err := s.bus.Publish(s.ctx, "reports", "report.generated", map[string]int{"rows": 3})
	s.ErrorIs(err, ErrUndeclaredEvent)
	s.Contains(s.logs.String(), `"level":"WARN"`)
	s.Contains(s.logs.String(), "event publish rejected")

	s.Never(func() bool { return rec.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Published.WithLabelValues("report.generated", "rejected")))
}

func (s *BusSuite) TestUndeclaredSubscribeFails() {
	err := s.bus.Subscribe(s.ctx, "hotel", "tenant.suspended", (&recorder{}).handle)
	s.ErrorIs(err, ErrUndeclaredEvent)
	s.Zero(s.bus.Subscriptions("tenant.suspended"))
}

func (s *BusSuite) TestModuleWithoutContractCannotUseBus() {
	s.ErrorIs(s.bus.Publish(s.ctx, "static", "room.created", nil), ErrUndeclaredEvent)
	s.ErrorIs(s.bus.Subscribe(s.ctx, "static", "room.created", (&recorder{}).handle), ErrUndeclaredEvent)
}

func (s *BusSuite) TestUnknownModuleRejected() {
	s.ErrorIs(s.bus.Publish(s.ctx, "ghost", "room.created", nil), ErrUnknownModule)
}

func (s *BusSuite) TestInvalidArguments() {
	s.ErrorIs(s.bus.Publish(s.ctx, CoreModule, "", nil), ErrInvalidEvent)
	s.ErrorIs(s.bus.Subscribe(s.ctx, CoreModule, "room.created", nil), ErrInvalidEvent)
	s.ErrorIs(s.bus.Publish(s.ctx, CoreModule, strings.Repeat("e", 129), nil), ErrInvalidEvent)
}

func (s *BusSuite) TestHandlerFailuresAreIsolated() {
	good := &recorder{}

	s.Require().NoError(s.bus.Subscribe(s.ctx, "billing", "room.created", func(context.Context, Envelope) error {
		panic("boom")
	}))
	s.Require().NoError(s.bus.Subscribe(s.ctx, "crm", "room.created", func(context.Context, Envelope) error {
		return errors.New("crm unavailable")
	}))
	s.Require().NoError(s.bus.Subscribe(s.ctx, "billing", "room.created", good.handle))

	s.Require().NoError(s.bus.Publish(s.ctx, "hotel", "room.created", map[string]int{"number": 101}))

	s.eventually(func() bool { return good.count() == 1 })
	s.eventually(func() bool {
		return testutil.ToFloat64(s.metrics.Delivered.WithLabelValues("room.created", "panic")) == 1 &&
			testutil.ToFloat64(s.metrics.Delivered.WithLabelValues("room.created", "error")) == 1 &&
			testutil.ToFloat64(s.metrics.Delivered.WithLabelValues("room.created", "ok")) == 1
	})
	s.Contains(s.logs.String(), "event handler panicked")
	s.Contains(s.logs.String(), "crm unavailable")
}

func (s *BusSuite) TestFirstSubscriptionOpensChannelOnce() {
	s.Require().NoError(s.bus.Subscribe(s.ctx, "billing", "room.created", (&recorder{}).handle))
	s.Require().NoError(s.bus.Subscribe(s.ctx, "crm", "room.created", (&recorder{}).handle))

	s.Equal(2, s.bus.Subscriptions("room.created"))
	s.transport.mu.RLock()
	s.Len(s.transport.channels, 1)
	s.Len(s.transport.channels[Channel("room.created")].delivers, 1)
	s.transport.mu.RUnlock()
}

func (s *BusSuite) TestTransportSubscribeFailureRollsBack() {
	s.transport.subscribeErr = errors.New("redis down")
	err := s.bus.Subscribe(s.ctx, "billing", "room.created", (&recorder{}).handle)
	s.ErrorContains(err, "redis down")
	s.Zero(s.bus.Subscriptions("room.created"))
}

func (s *BusSuite) TestTransportPublishFailureIsReported() {
	s.transport.publishErr = errors.New("connection reset")
	err := s.bus.Publish(s.ctx, "hotel", "room.created", nil)
	s.ErrorContains(err, "connection reset")
	s.Contains(s.logs.String(), "event transport publish failed")
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Published.WithLabelValues("room.created", "error")))
}

func (s *BusSuite) TestUnencodablePayload() {
	err := s.bus.Publish(s.ctx, "hotel", "room.created", make(chan int))
	s.ErrorContains(err, "encode room.created payload")
}

func (s *BusSuite) TestTenantTravelsWithEnvelope() {
	rec := &recorder{}
	s.Require().NoError(s.bus.Subscribe(s.ctx, "billing", "room.created", rec.handle))

	ctx := requestcontext.WithTenant(s.ctx, &tenant.ResolvedTenant{Slug: "acme"})
	s.Require().NoError(s.bus.Publish(ctx, "hotel", "room.created", nil))

	s.eventually(func() bool { return rec.count() == 1 })
	env, hctx := rec.first()
	s.Equal("acme", env.Tenant)
	s.Equal("acme", requestcontext.TenantSlug(hctx))
	s.Equal(env.ID, requestcontext.RequestID(hctx))
}

type tenantDirectory map[string]*tenant.ResolvedTenant

func (d tenantDirectory) LookupTenant(_ context.Context, slug string) (*tenant.ResolvedTenant, error) {
	t, ok := d[slug]
	if !ok {
		return nil, errors.New("tenant not found")
	}
	return t, nil
}

func (s *BusSuite) lookupBus(dir tenantDirectory) *Bus {
	bus := New(NewMemoryTransport(16),
		WithLogger(slog.New(slog.NewJSONHandler(s.logs, nil))),
		WithMetrics(s.metrics),
		WithTenantLookup(dir),
	)
	s.Require().NoError(bus.Bind(testContracts))
	return bus
}

func (s *BusSuite) TestTenantLookupLoadsDedicatedStore() {
	bus := s.lookupBus(tenantDirectory{
		"acme": {Slug: "acme", Name: "Acme", Active: false, DatabaseURI: "mongodb://db-acme:27017/acme"},
	})
	defer bus.Close()
	rec := &recorder{}
	s.Require().NoError(bus.Subscribe(s.ctx, "billing", "tenant.suspended", rec.handle))

	ctx := requestcontext.WithTenant(s.ctx, &tenant.ResolvedTenant{Slug: "acme"})
	s.Require().NoError(bus.Publish(ctx, CoreModule, "tenant.suspended", nil))

	s.eventually(func() bool { return rec.count() == 1 })
	_, hctx := rec.first()
	got := requestcontext.Tenant(hctx)
	s.Require().NotNil(got)
	s.Equal("acme", got.Slug)
	s.Equal("Acme", got.Name)
	s.False(got.Active)
	s.Equal("mongodb://db-acme:27017/acme", got.DatabaseURI)
}

func (s *BusSuite) TestUnresolvedTenantIsNotDelivered() {
	bus := s.lookupBus(tenantDirectory{})
	defer bus.Close()
	rec := &recorder{}
	s.Require().NoError(bus.Subscribe(s.ctx, "billing", "room.created", rec.handle))

	ctx := requestcontext.WithTenant(s.ctx, &tenant.ResolvedTenant{Slug: "ghost"})
	s.Require().NoError(bus.Publish(ctx, "hotel", "room.created", nil))

	s.eventually(func() bool {
		return testutil.ToFloat64(s.metrics.Delivered.WithLabelValues("room.created", "unresolved")) == 1
	})
	s.Zero(rec.count())
	s.Contains(s.logs.String(), "event tenant not resolved")
}

func (s *BusSuite) TestTenantlessEnvelopeSkipsLookup() {
	bus := s.lookupBus(tenantDirectory{})
	defer bus.Close()
	rec := &recorder{}
	s.Require().NoError(bus.Subscribe(s.ctx, "billing", "tenant.suspended", rec.handle))

	s.Require().NoError(bus.Publish(s.ctx, CoreModule, "tenant.suspended", nil))

	s.eventually(func() bool { return rec.count() == 1 })
	_, hctx := rec.first()
	s.Nil(requestcontext.Tenant(hctx))
}

func (s *BusSuite) TestPerChannelOrdering() {
	var mu sync.Mutex
	var seen []int
	s.Require().NoError(s.bus.Subscribe(s.ctx, "billing", "room.created", func(_ context.Context, env Envelope) error {
		var p struct{ N int }
		if err := env.Decode(&p); err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, p.N)
		mu.Unlock()
		return nil
	}))

	for i := range 10 {
		s.Require().NoError(s.bus.Publish(s.ctx, "hotel", "room.created", map[string]int{"N": i}))
	}

	s.eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 10
	})
	s.Equal([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func (s *BusSuite) TestCloseRejectsPublish() {
	s.Require().NoError(s.bus.Close())
	s.ErrorIs(s.bus.Publish(s.ctx, CoreModule, "tenant.suspended", nil), ErrClosed)
	s.ErrorIs(s.bus.Subscribe(s.ctx, CoreModule, "tenant.suspended", (&recorder{}).handle), ErrClosed)
}

func TestBindOnce(t *testing.T) {
	bus := New(NewMemoryTransport(0))
	defer bus.Close()

	if err := bus.Publish(context.Background(), "hotel", "room.created", nil); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound before Bind, got %v", err)
	}
	if err := bus.Bind(testContracts); err != nil {
		t.Fatal(err)
	}
	if err := bus.Bind(contracts{}); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound, got %v", err)
	}
	if err := bus.Publish(context.Background(), "hotel", "room.created", nil); err != nil {
		t.Fatalf("publish after bind: %v", err)
	}
}

func TestCoreMayPublishBeforeBind(t *testing.T) {
	bus := New(NewMemoryTransport(0))
	defer bus.Close()
	if err := bus.Publish(context.Background(), CoreModule, "tenant.registered", nil); err != nil {
		t.Fatal(err)
	}
}

func TestContractNilSafe(t *testing.T) {
	var c *Contract
	if c.CanPublish("x") || c.CanSubscribe("x") {
		t.Fatal("nil contract must declare nothing")
	}
}

// syncWriter serialises writes from delivery goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *syncWriter) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.String()
}
