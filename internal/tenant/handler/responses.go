package handler

import (
	"time"

	"tenantplane/internal/tenant/models"
)

type TenantResponse struct {
	Slug              string                  `json:"slug"`
	Name              string                  `json:"name"`
	SubscribedModules []string                `json:"subscribed_modules"`
	Active            bool                    `json:"active"`
	Status            models.DeploymentStatus `json:"status"`
	DedicatedDatabase bool                    `json:"dedicated_database"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

type TenantListResponse struct {
	Tenants []*TenantResponse `json:"tenants"`
	Total   int               `json:"total"`
}

func toTenantResponse(t *models.Tenant) *TenantResponse {
	modules := t.SubscribedModules
	if modules == nil {
		modules = []string{}
	}
	return &TenantResponse{
		Slug:              t.Slug,
		Name:              t.Name,
		SubscribedModules: modules,
		Active:            t.Active,
		Status:            t.Status,
		DedicatedDatabase: t.DatabaseURI != "",
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func toTenantListResponse(all []*models.Tenant) *TenantListResponse {
	out := make([]*TenantResponse, 0, len(all))
	for _, t := range all {
		out = append(out, toTenantResponse(t))
	}
	return &TenantListResponse{Tenants: out, Total: len(out)}
}
