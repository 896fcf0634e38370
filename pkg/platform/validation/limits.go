package validation

import (
	"fmt"

	dErrors "tenantplane/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (1 MiB).
	MaxBodySize = 1 << 20
)

// Tenant limits
const (
	// MaxSubscribedModules caps the modules a single tenant may hold.
	MaxSubscribedModules = 50

	// MaxTenantNameLength is the maximum length of a tenant display name.
	MaxTenantNameLength = 200

	// MaxDatabaseURILength is the maximum length of a tenant connection string.
	MaxDatabaseURILength = 2048

	// MaxEventNameLength is the maximum length of an event name.
	MaxEventNameLength = 128
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
