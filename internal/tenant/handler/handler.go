package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenantplane/contracts/tenant"
	"tenantplane/internal/tenant/models"
	"tenantplane/internal/tenant/service"
	dErrors "tenantplane/pkg/domain-errors"
	"tenantplane/pkg/platform/httputil"
	adminmw "tenantplane/pkg/platform/middleware/admin"
	"tenantplane/pkg/requestcontext"
)

// Service defines the tenant operations the handler needs.
type Service interface {
	RegisterTenant(ctx context.Context, cmd service.RegisterCommand) (*models.Tenant, error)
	GetTenant(ctx context.Context, slug string) (*models.Tenant, error)
	ListTenants(ctx context.Context) ([]*models.Tenant, error)
	SuspendTenant(ctx context.Context, slug string) (*models.Tenant, error)
	ReactivateTenant(ctx context.Context, slug string) (*models.Tenant, error)
	SubscribeModule(ctx context.Context, slug, module string) (*models.Tenant, error)
	UnsubscribeModule(ctx context.Context, slug, module string) (*models.Tenant, error)
	AssignDatabase(ctx context.Context, slug, uri string) (*models.Tenant, error)
}

type Handler struct {
	service      Service
	logger       *slog.Logger
	allowSignups bool
}

// New builds the tenant handler. allowSignups is false on dedicated (SILO)
// instances, where the tenant is fixed by configuration.
func New(service Service, logger *slog.Logger, allowSignups bool) *Handler {
	return &Handler{service: service, logger: logger, allowSignups: allowSignups}
}

// Register mounts the public tenant routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/tenants", h.HandleRegisterTenant)
	r.Get("/api/tenant", h.HandleCurrentTenant)
}

// RegisterAdmin mounts the operator routes. The caller guards them with the
// admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/api/admin/tenants", h.HandleListTenants)
	r.Get("/api/admin/tenants/{slug}", h.HandleGetTenant)
	r.Post("/api/admin/tenants/{slug}/suspend", h.HandleSuspendTenant)
	r.Post("/api/admin/tenants/{slug}/reactivate", h.HandleReactivateTenant)
	r.Post("/api/admin/tenants/{slug}/modules/{module}", h.HandleSubscribeModule)
	r.Delete("/api/admin/tenants/{slug}/modules/{module}", h.HandleUnsubscribeModule)
	r.Put("/api/admin/tenants/{slug}/database", h.HandleAssignDatabase)
}

// HandleRegisterTenant is the hub's public signup endpoint.
func (h *Handler) HandleRegisterTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if !h.allowSignups {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "tenant registration is disabled on a dedicated instance"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[RegisterTenantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	t, err := h.service.RegisterTenant(ctx, req.ToCommand())
	if err != nil {
		h.logger.ErrorContext(ctx, "register tenant failed", "error", err, "request_id", requestID, "tenant", req.Slug)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTenantResponse(t))
}

// HandleCurrentTenant echoes the tenant the request resolved to.
func (h *Handler) HandleCurrentTenant(w http.ResponseWriter, r *http.Request) {
	t := requestcontext.Tenant(r.Context())
	if t == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeTenantRequired, "tenant context required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, currentTenant(t))
}

func currentTenant(t *tenant.ResolvedTenant) *TenantResponse {
	return &TenantResponse{
		Slug:              t.Slug,
		Name:              t.Name,
		SubscribedModules: t.SubscribedModules,
		Active:            t.Active,
		Status:            models.DeploymentStatus(t.Status),
		DedicatedDatabase: t.DatabaseURI != "",
	}
}

func (h *Handler) HandleListTenants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := h.service.ListTenants(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list tenants failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTenantListResponse(all))
}

func (h *Handler) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "get tenant", func(ctx context.Context, slug string) (*models.Tenant, error) {
		return h.service.GetTenant(ctx, slug)
	})
}

func (h *Handler) HandleSuspendTenant(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "suspend tenant", h.service.SuspendTenant)
}

func (h *Handler) HandleReactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "reactivate tenant", h.service.ReactivateTenant)
}

func (h *Handler) HandleSubscribeModule(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	h.respond(w, r, "subscribe module", func(ctx context.Context, slug string) (*models.Tenant, error) {
		return h.service.SubscribeModule(ctx, slug, module)
	})
}

func (h *Handler) HandleUnsubscribeModule(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	h.respond(w, r, "unsubscribe module", func(ctx context.Context, slug string) (*models.Tenant, error) {
		return h.service.UnsubscribeModule(ctx, slug, module)
	})
}

func (h *Handler) HandleAssignDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AssignDatabaseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, r, "assign database", func(ctx context.Context, slug string) (*models.Tenant, error) {
		return h.service.AssignDatabase(ctx, slug, req.DatabaseURI)
	})
}

// respond runs op against the {slug} path parameter and writes the tenant.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, action string, op func(context.Context, string) (*models.Tenant, error)) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	t, err := op(ctx, slug)
	if err != nil {
		h.logger.ErrorContext(ctx, action+" failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
			"tenant", slug,
			"actor", adminmw.ActorID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, action,
		"tenant", slug,
		"request_id", requestcontext.RequestID(ctx),
		"actor", adminmw.ActorID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, toTenantResponse(t))
}
