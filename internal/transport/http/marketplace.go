package httptransport

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"tenantplane/internal/module"
	dErrors "tenantplane/pkg/domain-errors"
	"tenantplane/pkg/platform/httputil"
	"tenantplane/pkg/requestcontext"
)

// Marketplace serves module discovery.
type Marketplace struct {
	registry *module.Registry
	logger   *slog.Logger
}

func NewMarketplace(registry *module.Registry, logger *slog.Logger) *Marketplace {
	return &Marketplace{registry: registry, logger: logger}
}

// ModuleListResponse lists the loaded modules.
type ModuleListResponse struct {
	Modules []module.Summary `json:"modules"`
	Total   int              `json:"total"`
}

// Listing is a module summary as seen by the ambient tenant.
type Listing struct {
	module.Summary
	Subscribed bool `json:"subscribed"`
}

type MarketplaceResponse struct {
	Tenant  string    `json:"tenant,omitempty"`
	Modules []Listing `json:"modules"`
}

func (m *Marketplace) Register(r chi.Router) {
	r.Get("/api/modules", m.HandleListModules)
	r.Get("/api/modules/{slug}/openapi.json", m.HandleOpenAPI)
	r.Get("/api/marketplace/modules", m.HandleMarketplace)
}

func (m *Marketplace) HandleListModules(w http.ResponseWriter, _ *http.Request) {
	summary := m.registry.Summary()
	httputil.WriteJSON(w, http.StatusOK, ModuleListResponse{Modules: summary, Total: len(summary)})
}

// HandleMarketplace flags the modules the ambient tenant already has. Without
// a tenant every module is reported as not subscribed.
func (m *Marketplace) HandleMarketplace(w http.ResponseWriter, r *http.Request) {
	t := requestcontext.Tenant(r.Context())
	resp := MarketplaceResponse{Modules: []Listing{}}
	if t != nil {
		resp.Tenant = t.Slug
	}
	for _, s := range m.registry.Summary() {
		resp.Modules = append(resp.Modules, Listing{
			Summary:    s,
			Subscribed: t != nil && slices.Contains(t.SubscribedModules, s.Slug),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (m *Marketplace) HandleOpenAPI(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	doc, ok := m.registry.OpenAPI(slug)
	if !ok {
		m.logger.DebugContext(r.Context(), "openapi document not found",
			"module", slug,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "no API document for module %q", slug))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc) //nolint:errcheck // headers already sent
}
