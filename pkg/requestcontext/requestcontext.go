// Package requestcontext carries per-request facts through context.Context:
// request ID, the resolved tenant, the access-gated module and
// any isolation bypass. Values live only as long as the request's context and
// are never shared between concurrent requests.
package requestcontext

import (
	"context"

	"tenantplane/contracts/tenant"
)

type (
	requestIDKey struct{}
	tenantKey    struct{}
	moduleKey    struct{}
	bypassKey    struct{}
)

// WithRequestID stores the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request correlation ID, or "" when unset.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithTenant attaches the resolved tenant. A nil tenant leaves ctx unchanged.
func WithTenant(ctx context.Context, t *tenant.ResolvedTenant) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, tenantKey{}, t)
}

// Tenant returns the resolved tenant, or nil on global/public routes.
func Tenant(ctx context.Context) *tenant.ResolvedTenant {
	t, _ := ctx.Value(tenantKey{}).(*tenant.ResolvedTenant)
	return t
}

// TenantSlug returns the resolved tenant's slug, or "" when no tenant is ambient.
func TenantSlug(ctx context.Context) string {
	if t := Tenant(ctx); t != nil {
		return t.Slug
	}
	return ""
}

// WithModule records the module slug a request was access-gated into.
func WithModule(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, moduleKey{}, slug)
}

// Module returns the gated module slug, or "" before the gate ran.
func Module(ctx context.Context) string {
	v, _ := ctx.Value(moduleKey{}).(string)
	return v
}

// WithIsolationBypass marks every isolation-aware operation issued with ctx as
// running outside the tenant boundary. reason is recorded in logs and must not
// be empty; an empty reason leaves ctx unchanged.
func WithIsolationBypass(ctx context.Context, reason string) context.Context {
	if reason == "" {
		return ctx
	}
	return context.WithValue(ctx, bypassKey{}, reason)
}

// IsolationBypass returns the bypass reason carried by ctx, or "".
func IsolationBypass(ctx context.Context) string {
	v, _ := ctx.Value(bypassKey{}).(string)
	return v
}
