// Package resolver establishes the tenant of each HTTP request, either from
// the instance configuration (SILO) or from the tenant header (HUB).
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"tenantplane/contracts/tenant"
	"tenantplane/internal/platform/config"
	"tenantplane/internal/sentinel"
	dErrors "tenantplane/pkg/domain-errors"
	"tenantplane/pkg/platform/httputil"
	"tenantplane/pkg/requestcontext"
	"tenantplane/pkg/validation"
)

// TenantFinder looks up active tenants in the control plane. A miss returns
// an error matching sentinel.ErrNotFound or carrying dErrors.CodeNotFound.
type TenantFinder interface {
	FindActiveTenant(ctx context.Context, slug string) (*tenant.ResolvedTenant, error)
}

// Catalog lists the loaded modules.
type Catalog interface {
	Slugs() []string
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// Resolver answers "which tenant is this request for".
type Resolver struct {
	mode         config.Mode
	tenantHeader string
	moduleHeader string
	finder       TenantFinder
	logger       *slog.Logger
	metrics      *Metrics

	// SILO only.
	silo       tenant.ResolvedTenant
	restricted bool
}

// New builds a resolver for cfg. finder is only consulted in HUB mode and
// catalog only when a SILO instance leaves SUBSCRIBED_MODULES empty.
func New(cfg config.Config, finder TenantFinder, catalog Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		mode:         cfg.Mode,
		tenantHeader: cfg.Server.TenantHeader,
		moduleHeader: cfg.Server.ModuleHeader,
		finder:       finder,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tenantHeader == "" {
		r.tenantHeader = "X-Tenant-ID"
	}
	if r.moduleHeader == "" {
		r.moduleHeader = "X-Module"
	}
	if cfg.Mode == config.ModeSilo {
		r.silo = siloTenant(cfg.Silo, catalog)
		r.restricted = len(cfg.Silo.SubscribedModules) > 0
	}
	return r
}

func siloTenant(cfg config.Silo, catalog Catalog) tenant.ResolvedTenant {
	name := strings.TrimSpace(cfg.TenantName)
	if name == "" {
		name = cfg.TenantID
	}
	modules := slices.Clone(cfg.SubscribedModules)
	if len(modules) == 0 && catalog != nil {
		modules = catalog.Slugs()
	}
	return tenant.ResolvedTenant{
		Slug:              strings.TrimSpace(cfg.TenantID),
		Name:              name,
		SubscribedModules: modules,
		Active:            true,
		Status:            "live",
	}
}

// Middleware attaches the resolved tenant to the request context. Requests
// that fail resolution never reach next.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t, err := r.Resolve(req.Context(), req)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, req.WithContext(requestcontext.WithTenant(req.Context(), t)))
	})
}

// Resolve returns the tenant for req, or nil when a HUB request carries no
// tenant header. Errors carry the domain code the HTTP layer maps to a status.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*tenant.ResolvedTenant, error) {
	module := strings.TrimSpace(req.Header.Get(r.moduleHeader))
	if r.mode == config.ModeSilo {
		return r.resolveSilo(ctx, module)
	}
	return r.resolveHub(ctx, strings.TrimSpace(req.Header.Get(r.tenantHeader)), module)
}

func (r *Resolver) resolveSilo(ctx context.Context, module string) (*tenant.ResolvedTenant, error) {
	if module != "" && r.restricted && !slices.Contains(r.silo.SubscribedModules, module) {
		r.denied(ctx, r.silo.Slug, module)
		return nil, dErrors.Newf(dErrors.CodeModuleNotSubscribed,
			"module %q is not active on this instance", module)
	}
	t := r.silo
	t.SubscribedModules = slices.Clone(r.silo.SubscribedModules)
	r.metrics.observe(string(r.mode), outcomeResolved)
	return &t, nil
}

func (r *Resolver) resolveHub(ctx context.Context, slug, module string) (*tenant.ResolvedTenant, error) {
	if slug == "" {
		r.metrics.observe(string(r.mode), outcomeAnonymous)
		return nil, nil
	}
	notFound := dErrors.New(dErrors.CodeTenantNotFound, "tenant not found or inactive")
	if !validation.IsSlug(slug) {
		r.metrics.observe(string(r.mode), outcomeNotFound)
		return nil, notFound
	}

	t, err := r.finder.FindActiveTenant(ctx, slug)
	switch {
	case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeNotFound):
		r.metrics.observe(string(r.mode), outcomeNotFound)
		return nil, notFound
	case err != nil:
		r.logger.ErrorContext(ctx, "tenant resolution failed",
			"tenant", slug,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		r.metrics.observe(string(r.mode), outcomeError)
		// Always a 500, whatever the finder's own code.
		return nil, &dErrors.Error{Code: dErrors.CodeInternal, Message: "failed to establish tenant context", Err: err}
	case t == nil || !t.Active:
		r.metrics.observe(string(r.mode), outcomeNotFound)
		return nil, notFound
	}

	if module != "" && !t.HasModule(module) {
		r.denied(ctx, slug, module)
		return nil, dErrors.Newf(dErrors.CodeModuleNotSubscribed,
			"module %q is not active for this tenant; purchase it from the marketplace", module)
	}
	r.metrics.observe(string(r.mode), outcomeResolved)
	return t, nil
}

func (r *Resolver) denied(ctx context.Context, slug, module string) {
	r.logger.WarnContext(ctx, "module not subscribed",
		"tenant", slug,
		"module", module,
		"mode", string(r.mode),
		"request_id", requestcontext.RequestID(ctx),
	)
	r.metrics.observe(string(r.mode), outcomeForbidden)
}
