package store

import (
	"context"

	"tenantplane/contracts/tenant"
	"tenantplane/internal/tenant/models"
)

// Finder is the read path shared by every tenant store.
type Finder interface {
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// Lookup resolves tenants by slug regardless of status. Event deliveries
// use it to reach a tenant's own store, including one just suspended.
type Lookup struct {
	finder Finder
}

func NewLookup(finder Finder) *Lookup {
	return &Lookup{finder: finder}
}

func (l *Lookup) LookupTenant(ctx context.Context, slug string) (*tenant.ResolvedTenant, error) {
	t, err := l.finder.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return t.Resolved(), nil
}
