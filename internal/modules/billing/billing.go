// Package billing keeps per-tenant invoices and reacts to events from the
// control plane and from other modules.
package billing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"tenantplane/contracts/tenant"
	"tenantplane/internal/events"
	"tenantplane/internal/module"
	"tenantplane/internal/modules"
	"tenantplane/internal/modules/hotel"
	"tenantplane/internal/platform/docstore"
	"tenantplane/internal/tenancy/isolation"
	tenantmodels "tenantplane/internal/tenant/models"
	"tenantplane/pkg/platform/httputil"
	"tenantplane/pkg/requestcontext"
)

const (
	Slug         = "billing"
	invoicesColl = "invoices"
	accountsColl = "billing_accounts"
)

// Invoice statuses.
const (
	StatusDraft  = "draft"
	StatusOnHold = "on_hold"
)

var Schemas = []isolation.Schema{
	{Collection: invoicesColl},
	{Collection: accountsColl},
}

type Invoice struct {
	ID          string    `bson:"_id" json:"id"`
	Tenant      string    `bson:"tenant" json:"tenant"`
	Status      string    `bson:"status" json:"status"`
	Description string    `bson:"description" json:"description"`
	Amount      float64   `bson:"amount" json:"amount"`
	Source      string    `bson:"source" json:"source"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

type Module struct {
	store  modules.Collections
	logger *slog.Logger
	now    func() time.Time
	routes chi.Router
}

func New(store modules.Collections, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{store: store, logger: logger, now: time.Now}
	r := chi.NewRouter()
	r.Get("/invoices", m.handleList)
	m.routes = r
	return m
}

func (m *Module) Manifest() module.Manifest {
	return module.Manifest{
		Name:        "Billing",
		Slug:        Slug,
		Version:     "0.9.1",
		Description: "Invoices and billing accounts",
		Routes:      m.routes,
		Events: &events.Contract{
			Subscribes: []string{tenantmodels.EventTenantSuspended, hotel.EventRoomAdded},
		},
		OnProvision: m.provision,
	}
}

// Subscribe registers the bus handlers declared in the manifest.
func (m *Module) Subscribe(ctx context.Context, bus *events.Bus) error {
	if err := bus.Subscribe(ctx, Slug, hotel.EventRoomAdded, m.onRoomCreated); err != nil {
		return err
	}
	return bus.Subscribe(ctx, Slug, tenantmodels.EventTenantSuspended, m.onTenantSuspended)
}

// provision opens a billing account for the tenant once.
func (m *Module) provision(ctx context.Context, t tenant.ResolvedTenant, logger *slog.Logger) error {
	accounts, err := m.store.Collection(ctx, accountsColl)
	if err != nil {
		return err
	}
	n, err := accounts.Count(ctx, bson.M{})
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := accounts.InsertOne(ctx, bson.M{
		"_id":        uuid.NewString(),
		"plan":       "standard",
		"created_at": m.now().UTC(),
	}); err != nil {
		return err
	}
	logger.InfoContext(ctx, "billing account opened", "tenant", t.Slug)
	return nil
}

// onRoomCreated drafts an invoice line. Delivery carries the publishing
// tenant, so the insert is scoped like a request would be.
func (m *Module) onRoomCreated(ctx context.Context, env events.Envelope) error {
	if env.Tenant == "" {
		return nil
	}
	var room hotel.RoomCreated
	if err := env.Decode(&room); err != nil {
		return err
	}
	invoices, err := m.store.Collection(ctx, invoicesColl)
	if err != nil {
		return err
	}
	doc, err := docstore.Encode(Invoice{
		ID:          uuid.NewString(),
		Tenant:      env.Tenant,
		Status:      StatusDraft,
		Description: "Room " + room.Number,
		Amount:      room.Rate,
		Source:      env.ID,
		CreatedAt:   m.now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = invoices.InsertOne(ctx, doc)
	return err
}

// onTenantSuspended puts the tenant's draft invoices on hold. The control
// plane delivers it as the suspended tenant, so the update runs in that
// tenant's store under the usual isolation scope.
func (m *Module) onTenantSuspended(ctx context.Context, env events.Envelope) error {
	var payload tenantmodels.TenantStatusChanged
	if err := env.Decode(&payload); err != nil {
		return err
	}
	if env.Tenant == "" || env.Tenant != payload.Tenant {
		m.logger.WarnContext(ctx, "suspension delivered outside its tenant",
			"tenant", payload.Tenant,
			"delivery_tenant", env.Tenant,
			"event_id", env.ID,
		)
		return nil
	}
	invoices, err := m.store.Collection(ctx, invoicesColl)
	if err != nil {
		return err
	}
	n, err := invoices.UpdateMany(ctx,
		bson.M{"status": StatusDraft},
		bson.M{"$set": bson.M{"status": StatusOnHold}},
	)
	if err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "invoices put on hold", "tenant", payload.Tenant, "count", n)
	return nil
}

func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoices, err := m.store.Collection(ctx, invoicesColl)
	if err == nil {
		var docs []bson.M
		docs, err = invoices.Find(ctx, bson.M{}, docstore.WithSort("created_at", true), docstore.WithLimit(100))
		if err == nil {
			var out []Invoice
			if out, err = docstore.DecodeAll[Invoice](docs); err == nil {
				httputil.WriteJSON(w, http.StatusOK, map[string]any{"invoices": out})
				return
			}
		}
	}
	m.logger.ErrorContext(ctx, "list invoices failed",
		"error", err,
		"tenant", requestcontext.TenantSlug(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
