package request

import (
	"context"
	"net/http"

	"tenantplane/pkg/requestcontext"
)

// observed lets the outer logging middleware see values that inner
// middleware attach to derived contexts.
type observed struct {
	tenant string
	module string
}

type observedKey struct{}

func withObserved(ctx context.Context, p *observed) context.Context {
	return context.WithValue(ctx, observedKey{}, p)
}

// Observe records the tenant and module of r's context into the record installed
// by Logger. Install it innermost, right before the handler.
func Observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if p, ok := ctx.Value(observedKey{}).(*observed); ok {
			p.tenant = requestcontext.TenantSlug(ctx)
			p.module = requestcontext.Module(ctx)
		}
		next.ServeHTTP(w, r)
	})
}
