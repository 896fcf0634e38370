package models

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"tenantplane/contracts/tenant"
	dErrors "tenantplane/pkg/domain-errors"
	pstrings "tenantplane/pkg/platform/strings"
	"tenantplane/pkg/platform/validation"
	slugs "tenantplane/pkg/validation"
)

// DeploymentStatus tracks how far a tenant's infrastructure has come.
type DeploymentStatus string

const (
	StatusPending      DeploymentStatus = "pending"
	StatusProvisioning DeploymentStatus = "provisioning"
	StatusLive         DeploymentStatus = "live"
	StatusFailed       DeploymentStatus = "failed"
)

func (s DeploymentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProvisioning, StatusLive, StatusFailed:
		return true
	}
	return false
}

// Tenant is a customer organization registered in the control plane.
type Tenant struct {
	Slug              string           `json:"slug"`
	Name              string           `json:"name"`
	DatabaseURI       string           `json:"-"`
	SubscribedModules []string         `json:"subscribed_modules"`
	Active            bool             `json:"active"`
	Status            DeploymentStatus `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewTenant builds an active tenant that shares the hub's default store.
func NewTenant(slug, name string, modules []string, now time.Time) (*Tenant, error) {
	slug = strings.TrimSpace(slug)
	name = strings.TrimSpace(name)
	if !slugs.IsSlug(slug) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant slug must be 2-63 lowercase letters, digits or dashes")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if err := validation.CheckStringLength("name", name, validation.MaxTenantNameLength); err != nil {
		return nil, err
	}
	modules = pstrings.Normalize(modules)
	if err := validation.CheckSliceCount("modules", len(modules), validation.MaxSubscribedModules); err != nil {
		return nil, err
	}
	return &Tenant{
		Slug:              slug,
		Name:              name,
		SubscribedModules: modules,
		Active:            true,
		Status:            StatusLive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (t *Tenant) HasModule(slug string) bool {
	return slices.Contains(t.SubscribedModules, slug)
}

// Subscribe adds module to the tenant. Returns an invariant violation when the
// tenant already holds it or the module cap is reached.
func (t *Tenant) Subscribe(module string, now time.Time) error {
	if t.HasModule(module) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "tenant is already subscribed to %q", module)
	}
	if err := validation.CheckSliceCount("modules", len(t.SubscribedModules)+1, validation.MaxSubscribedModules); err != nil {
		return err
	}
	t.SubscribedModules = append(slices.Clone(t.SubscribedModules), module)
	t.UpdatedAt = now
	return nil
}

// Unsubscribe removes module from the tenant.
func (t *Tenant) Unsubscribe(module string, now time.Time) error {
	if !t.HasModule(module) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "tenant is not subscribed to %q", module)
	}
	t.SubscribedModules = pstrings.Without(t.SubscribedModules, module)
	t.UpdatedAt = now
	return nil
}

// Suspend makes the tenant unresolvable until reactivated.
func (t *Tenant) Suspend(now time.Time) error {
	if !t.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already suspended")
	}
	t.Active = false
	t.UpdatedAt = now
	return nil
}

func (t *Tenant) Reactivate(now time.Time) error {
	if t.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already active")
	}
	t.Active = true
	t.UpdatedAt = now
	return nil
}

// AssignDatabase moves the tenant onto a dedicated MongoDB deployment.
// Cached connections live for the process, so the assignment is final.
func (t *Tenant) AssignDatabase(uri string, now time.Time) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return dErrors.New(dErrors.CodeValidation, "database_uri is required")
	}
	if err := validation.CheckStringLength("database_uri", uri, validation.MaxDatabaseURILength); err != nil {
		return err
	}
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") || u.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "database_uri must be a mongodb:// or mongodb+srv:// connection string")
	}
	if t.DatabaseURI != "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant already has a dedicated database")
	}
	t.DatabaseURI = uri
	t.UpdatedAt = now
	return nil
}

// Resolved returns the contract view carried in request contexts.
func (t *Tenant) Resolved() *tenant.ResolvedTenant {
	return &tenant.ResolvedTenant{
		Slug:              t.Slug,
		Name:              t.Name,
		SubscribedModules: slices.Clone(t.SubscribedModules),
		Active:            t.Active,
		Status:            string(t.Status),
		DatabaseURI:       t.DatabaseURI,
	}
}

// Clone returns a deep copy safe to hand out of a store.
func (t *Tenant) Clone() *Tenant {
	c := *t
	c.SubscribedModules = slices.Clone(t.SubscribedModules)
	return &c
}
