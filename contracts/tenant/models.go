// Package tenant hosts the minimal tenant view shared between the control
// plane, the ambient request context and plugin modules. It is versioned
// independently from the internal persistence model.
package tenant

import "slices"

// ContractVersion identifies the contract schema version for compatibility checks.
// Bump on breaking changes to the shapes below.
const ContractVersion = "v1.0.0"

// ResolvedTenant is the tenant identity attached to a request once resolved.
type ResolvedTenant struct {
	Slug              string   `json:"slug"`
	Name              string   `json:"name"`
	SubscribedModules []string `json:"subscribed_modules"`
	Active            bool     `json:"active"`
	Status            string   `json:"status"`

	// DatabaseURI selects a dedicated tenant data store in hub mode.
	DatabaseURI string `json:"-"`
}

// HasModule reports whether the tenant is subscribed to the module slug.
func (t *ResolvedTenant) HasModule(slug string) bool {
	if t == nil {
		return false
	}
	return slices.Contains(t.SubscribedModules, slug)
}
