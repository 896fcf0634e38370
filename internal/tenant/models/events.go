package models

// Events the control plane publishes on the bus as the core module.
const (
	EventTenantRegistered   = "tenant.registered"
	EventTenantSuspended    = "tenant.suspended"
	EventTenantReactivated  = "tenant.reactivated"
	EventModuleSubscribed   = "tenant.module.subscribed"
	EventModuleUnsubscribed = "tenant.module.unsubscribed"
	EventDatabaseAssigned   = "tenant.database.assigned"
)

// TenantRegistered is the payload of tenant.registered.
type TenantRegistered struct {
	Tenant  string   `json:"tenant"`
	Name    string   `json:"name"`
	Modules []string `json:"modules"`
}

// TenantStatusChanged is the payload of tenant.suspended and tenant.reactivated.
type TenantStatusChanged struct {
	Tenant string `json:"tenant"`
	Active bool   `json:"active"`
}

// ModuleSubscriptionChanged is the payload of the module subscription events.
type ModuleSubscriptionChanged struct {
	Tenant string `json:"tenant"`
	Module string `json:"module"`
}

// DatabaseAssigned is the payload of tenant.database.assigned. The
// connection string carries credentials and is never published.
type DatabaseAssigned struct {
	Tenant string `json:"tenant"`
}
