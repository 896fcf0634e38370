package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"tenantplane/internal/module"
	"tenantplane/internal/platform/health"
	"tenantplane/internal/platform/metrics"
	adminmw "tenantplane/pkg/platform/middleware/admin"
	"tenantplane/pkg/platform/middleware/request"
	"tenantplane/pkg/platform/validation"
)

// AdminRoutes mounts routes that sit behind the admin token.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// TenantRoutes is the tenant administration surface.
type TenantRoutes interface {
	AdminRoutes
	Register(r chi.Router)
}

// Deps carries everything the router mounts.
type Deps struct {
	Logger         *slog.Logger
	Registry       *module.Registry
	Resolver       func(http.Handler) http.Handler
	Tenants        TenantRoutes
	Audit          AdminRoutes
	Health         *health.Handler
	Metrics        *prometheus.Registry
	RequestMetrics *request.Metrics
	AdminToken     string
	RequestTimeout time.Duration
}

// NewRouter wires health checks, the control plane and every loaded module.
// Health checks and /metrics sit outside tenant resolution; everything under /api
// runs with the ambient tenant established.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(d.Logger))
	r.Use(request.LatencyMiddleware(d.RequestMetrics))

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", metrics.Handler(d.Metrics))
	}

	r.Group(func(api chi.Router) {
		api.Use(request.BodyLimit(validation.MaxBodySize))
		api.Use(request.ContentTypeJSON)
		api.Use(request.Timeout(d.RequestTimeout))
		if d.Resolver != nil {
			api.Use(d.Resolver)
		}
		api.Use(request.Observe)

		NewMarketplace(d.Registry, d.Logger).Register(api)

		if d.Tenants != nil {
			d.Tenants.Register(api)
		}
		api.Group(func(admin chi.Router) {
			admin.Use(adminmw.RequireAdminToken(d.AdminToken, d.Logger))
			for _, routes := range []AdminRoutes{d.Tenants, d.Audit} {
				if routes != nil {
					routes.RegisterAdmin(admin)
				}
			}
		})

		d.Registry.Mount(api, observedGates(d.Logger))
	})

	return r
}

// observedGates runs request.Observe after the gate so access logs carry the
// module the gate attached.
func observedGates(logger *slog.Logger) module.GateFunc {
	gates := module.Gates(logger)
	return func(slug string) func(http.Handler) http.Handler {
		gate := gates(slug)
		return func(next http.Handler) http.Handler {
			return gate(request.Observe(next))
		}
	}
}
