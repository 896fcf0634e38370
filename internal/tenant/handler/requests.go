package handler

import (
	"strings"

	"tenantplane/internal/tenant/service"
	dErrors "tenantplane/pkg/domain-errors"
	pstrings "tenantplane/pkg/platform/strings"
	"tenantplane/pkg/validation"
)

// RegisterTenantRequest is the public signup body.
type RegisterTenantRequest struct {
	Slug    string   `json:"slug" validate:"required,slug"`
	Name    string   `json:"name" validate:"notblank,max=200"`
	Modules []string `json:"modules" validate:"max=50,dive,slug"`
}

func (r *RegisterTenantRequest) Normalize() {
	if r == nil {
		return
	}
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	r.Name = strings.TrimSpace(r.Name)
	r.Modules = pstrings.Normalize(r.Modules)
}

func (r *RegisterTenantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

func (r *RegisterTenantRequest) ToCommand() service.RegisterCommand {
	return service.RegisterCommand{Slug: r.Slug, Name: r.Name, Modules: r.Modules}
}

// AssignDatabaseRequest moves a tenant onto a dedicated store.
type AssignDatabaseRequest struct {
	DatabaseURI string `json:"database_uri" validate:"required"`
}

func (r *AssignDatabaseRequest) Normalize() {
	if r != nil {
		r.DatabaseURI = strings.TrimSpace(r.DatabaseURI)
	}
}

func (r *AssignDatabaseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}
