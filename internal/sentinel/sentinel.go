// Package sentinel holds the store-level errors shared by the tenant and
// audit stores. Services translate them into domain errors exactly once.
package sentinel

import "errors"

var (
	// ErrNotFound means no row or document matched.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed means a unique key such as a tenant slug is taken.
	ErrAlreadyUsed = errors.New("already used")
)
