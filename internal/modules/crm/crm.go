// Package crm tracks sales leads.
package crm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"tenantplane/contracts/tenant"
	"tenantplane/internal/events"
	"tenantplane/internal/module"
	"tenantplane/internal/modules"
	"tenantplane/internal/platform/docstore"
	"tenantplane/internal/tenancy/isolation"
	"tenantplane/pkg/platform/httputil"
	"tenantplane/pkg/requestcontext"
	"tenantplane/pkg/validation"
)

const (
	Slug             = "crm"
	EventLeadCreated = "lead.created"
	leadsColl        = "leads"
)

// Leads carry the owning tenant under "org".
var Schemas = []isolation.Schema{{Collection: leadsColl, TenantField: "org"}}

type Lead struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Stage     string    `bson:"stage" json:"stage"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// LeadCreated is the payload of lead.created.
type LeadCreated struct {
	LeadID string `json:"lead_id"`
	Email  string `json:"email"`
}

type createLeadRequest struct {
	Name  string `json:"name" validate:"notblank,max=200"`
	Email string `json:"email" validate:"required,email"`
	Stage string `json:"stage" validate:"oneof=new contacted qualified"`
}

func (r *createLeadRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Stage = strings.ToLower(strings.TrimSpace(r.Stage))
	if r.Stage == "" {
		r.Stage = "new"
	}
}

func (r *createLeadRequest) Validate() error {
	return validation.Validate(r)
}

type Module struct {
	store  modules.Collections
	bus    modules.Publisher
	logger *slog.Logger
	now    func() time.Time
	routes chi.Router
}

func New(store modules.Collections, bus modules.Publisher, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{store: store, bus: bus, logger: logger, now: time.Now}
	r := chi.NewRouter()
	r.Get("/leads", m.handleList)
	r.Post("/leads", m.handleCreate)
	m.routes = r
	return m
}

func (m *Module) Manifest() module.Manifest {
	return module.Manifest{
		Name:          "CRM",
		Slug:          Slug,
		Version:       "2.0.0",
		Description:   "Leads and pipeline stages",
		Routes:        m.routes,
		Events:        &events.Contract{Publishes: []string{EventLeadCreated}},
		OnUnsubscribe: m.purge,
	}
}

// purge drops the tenant's leads once the module is no longer active.
func (m *Module) purge(ctx context.Context, t tenant.ResolvedTenant, logger *slog.Logger) error {
	leads, err := m.store.Collection(ctx, leadsColl)
	if err != nil {
		return err
	}
	n, err := leads.DeleteMany(ctx, bson.M{})
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "crm data purged", "tenant", t.Slug, "leads", n)
	return nil
}

func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := bson.M{}
	if stage := r.URL.Query().Get("stage"); stage != "" {
		filter["stage"] = stage
	}
	leads, err := m.store.Collection(ctx, leadsColl)
	if err != nil {
		m.fail(w, r, "open leads", err)
		return
	}
	docs, err := leads.Find(ctx, filter, docstore.WithSort("created_at", true))
	if err != nil {
		m.fail(w, r, "list leads", err)
		return
	}
	out, err := docstore.DecodeAll[Lead](docs)
	if err != nil {
		m.fail(w, r, "decode leads", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"leads": out, "total": len(out)})
}

func (m *Module) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[createLeadRequest](w, r, m.logger, ctx, requestID)
	if !ok {
		return
	}

	lead := Lead{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Stage:     req.Stage,
		CreatedAt: m.now().UTC(),
	}
	doc, err := docstore.Encode(lead)
	if err != nil {
		m.fail(w, r, "encode lead", err)
		return
	}
	leads, err := m.store.Collection(ctx, leadsColl)
	if err != nil {
		m.fail(w, r, "open leads", err)
		return
	}
	if _, err := leads.InsertOne(ctx, doc); err != nil {
		m.fail(w, r, "insert lead", err)
		return
	}

	if err := m.bus.Publish(ctx, Slug, EventLeadCreated, LeadCreated{LeadID: lead.ID, Email: lead.Email}); err != nil {
		m.logger.WarnContext(ctx, "lead.created not published", "error", err, "request_id", requestID)
	}
	httputil.WriteJSON(w, http.StatusCreated, lead)
}

func (m *Module) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	ctx := r.Context()
	m.logger.ErrorContext(ctx, action+" failed",
		"error", err,
		"tenant", requestcontext.TenantSlug(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
