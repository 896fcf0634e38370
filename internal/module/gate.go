package module

import (
	"log/slog"
	"net/http"

	dErrors "tenantplane/pkg/domain-errors"
	"tenantplane/pkg/platform/httputil"
	"tenantplane/pkg/requestcontext"
)

// Gate admits a request into module slug only when the ambient tenant is
// subscribed to it.
func Gate(slug string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			t := requestcontext.Tenant(ctx)
			if t == nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeTenantRequired, "tenant context required"))
				return
			}
			if !t.HasModule(slug) {
				logger.WarnContext(ctx, "module access denied",
					"module", slug,
					"tenant", t.Slug,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeModuleNotSubscribed,
					"module %q is not active for this tenant; purchase it from the marketplace", slug))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithModule(ctx, slug)))
		})
	}
}

// Gates returns a GateFunc that builds Gate for each module.
func Gates(logger *slog.Logger) GateFunc {
	return func(slug string) func(http.Handler) http.Handler {
		return Gate(slug, logger)
	}
}
