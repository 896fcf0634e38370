// Package audit keeps the control-plane audit trail. Entries are derived from
// the tenant lifecycle events the core publishes on the bus.
package audit

import (
	"time"

	tenantmodels "tenantplane/internal/tenant/models"
)

// Event is one entry in the audit trail. ID is the bus envelope ID, so a
// redelivered event is recorded once.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Tenant    string    `json:"tenant"`
	Action    string    `json:"action"`
	Module    string    `json:"module,omitempty"`
	Source    string    `json:"source"`
}

// TrackedEvents are the bus events recorded in the trail.
var TrackedEvents = []string{
	tenantmodels.EventTenantRegistered,
	tenantmodels.EventTenantSuspended,
	tenantmodels.EventTenantReactivated,
	tenantmodels.EventModuleSubscribed,
	tenantmodels.EventModuleUnsubscribed,
	tenantmodels.EventDatabaseAssigned,
}
