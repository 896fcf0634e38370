// Package modules holds the plugin modules shipped with the platform and
// the small contracts they share with it.
package modules

import (
	"context"

	"tenantplane/internal/platform/docstore"
	"tenantplane/internal/tenancy/isolation"
)

// Collections hands out tenant-scoped collections for the ambient request.
// *datastore.Router satisfies it.
type Collections interface {
	Collection(ctx context.Context, name string) (docstore.Collection, error)
}

// Publisher is satisfied by *events.Bus.
type Publisher interface {
	Publish(ctx context.Context, source, event string, payload any) error
}

// Schemas returns the isolation-aware collections of every shipped module.
func Schemas(sets ...[]isolation.Schema) []isolation.Schema {
	var out []isolation.Schema
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}
