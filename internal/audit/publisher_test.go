package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tenantplane/internal/events"
	tenantmodels "tenantplane/internal/tenant/models"
)

type failingStore struct{ *InMemoryStore }

func (failingStore) Append(context.Context, Event) error { return errors.New("disk full") }

func TestAsyncPublisherDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(8))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, p.Emit(context.Background(), Event{ID: id, Tenant: "acme", Action: "tenant.suspended"}))
	}
	p.Close()

	trail, err := store.ListByTenant(context.Background(), "acme", 0)
	require.NoError(t, err)
	assert.Len(t, trail, 3)
	for _, e := range trail {
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestAsyncPublisherLogsStoreFailures(t *testing.T) {
	logs := &bytes.Buffer{}
	p := NewPublisher(failingStore{NewInMemoryStore()},
		WithAsyncBuffer(1),
		WithPublisherLogger(slog.New(slog.NewJSONHandler(logs, nil))),
	)
	require.NoError(t, p.Emit(context.Background(), Event{ID: "a", Tenant: "acme", Action: "tenant.suspended"}))
	p.Close()
	assert.Contains(t, logs.String(), "failed to persist audit event")
}

func TestSyncPublisherReturnsStoreError(t *testing.T) {
	p := NewPublisher(failingStore{NewInMemoryStore()})
	err := p.Emit(context.Background(), Event{ID: "a"})
	assert.EqualError(t, err, "disk full")
	p.Close()
}

func TestRecordsTenantLifecycleFromBus(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store)
	bus := events.New(events.NewMemoryTransport(8))
	defer func() { require.NoError(t, bus.Close()) }()

	ctx := context.Background()
	require.NoError(t, p.Subscribe(ctx, bus))
	for _, event := range TrackedEvents {
		assert.Equal(t, 1, bus.Subscriptions(event), event)
	}

	require.NoError(t, bus.Publish(ctx, events.CoreModule, tenantmodels.EventTenantSuspended,
		tenantmodels.TenantStatusChanged{Tenant: "acme", Active: false}))
	require.NoError(t, bus.Publish(ctx, events.CoreModule, tenantmodels.EventModuleSubscribed,
		tenantmodels.ModuleSubscriptionChanged{Tenant: "acme", Module: "crm"}))

	var trail []Event
	require.Eventually(t, func() bool {
		trail, _ = store.ListByTenant(ctx, "acme", 0)
		return len(trail) == 2
	}, time.Second, 5*time.Millisecond)

	actions := map[string]string{}
	for _, e := range trail {
		assert.Equal(t, events.CoreModule, e.Source)
		assert.NotEmpty(t, e.ID)
		actions[e.Action] = e.Module
	}
	assert.Equal(t, map[string]string{
		tenantmodels.EventTenantSuspended:  "",
		tenantmodels.EventModuleSubscribed: "crm",
	}, actions)
}

func TestHandleTrail(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store)
	require.NoError(t, p.Emit(context.Background(), Event{ID: "a", Tenant: "acme", Action: "tenant.registered", Source: "core"}))

	r := chi.NewRouter()
	NewHandler(p, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).RegisterAdmin(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/tenants/acme/audit", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out TrailResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "acme", out.Tenant)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "tenant.registered", out.Events[0].Action)

	for _, limit := range []string{"0", "-1", "abc", "5000"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/tenants/acme/audit?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(4), WithPublisherLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	p.Close()
	p.Close()

	require.NoError(t, p.Emit(context.Background(), Event{ID: "late", Tenant: "acme"}))
	trail, err := store.ListByTenant(context.Background(), "acme", 0)
	require.NoError(t, err)
	assert.Empty(t, trail)
}
