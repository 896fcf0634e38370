// Package datastore picks the document database that serves a request.
package datastore

import (
	"context"

	"tenantplane/internal/platform/config"
	"tenantplane/internal/platform/docstore"
	"tenantplane/internal/tenancy/connections"
	"tenantplane/internal/tenancy/isolation"
	dErrors "tenantplane/pkg/domain-errors"
	"tenantplane/pkg/requestcontext"
)

// Router returns isolation-wrapped databases. In SILO mode it always returns
// the instance database. In HUB mode a tenant with its own connection string
// is served from the connection cache; everyone else shares the control-plane
// database.
type Router struct {
	mode     config.Mode
	fallback docstore.Database
	cache    *connections.Cache
	enforcer *isolation.Enforcer
}

// NewRouter builds a router. cache may be nil, in which case every request
// is served from fallback.
func NewRouter(mode config.Mode, fallback docstore.Database, cache *connections.Cache, enforcer *isolation.Enforcer) *Router {
	return &Router{mode: mode, fallback: fallback, cache: cache, enforcer: enforcer}
}

// Database returns the database for the ambient tenant.
func (r *Router) Database(ctx context.Context) (docstore.Database, error) {
	if r.mode == config.ModeHub && r.cache != nil {
		if t := requestcontext.Tenant(ctx); t != nil && t.DatabaseURI != "" {
			conn, err := r.cache.Get(ctx, t.Slug, t.DatabaseURI)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "tenant data store unavailable")
			}
			return r.enforcer.Wrap(conn.Database()), nil
		}
	}
	return r.enforcer.Wrap(r.fallback), nil
}

// Collection is shorthand for Database(ctx) followed by Collection(name).
func (r *Router) Collection(ctx context.Context, name string) (docstore.Collection, error) {
	db, err := r.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}
