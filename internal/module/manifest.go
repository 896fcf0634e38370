// Package module describes plugin modules, loads them into an immutable
// registry at boot and gates tenant access to their routes.
package module

import (
	"context"
	"log/slog"
	"net/http"

	"tenantplane/contracts/tenant"
	"tenantplane/internal/events"
)

// Hook runs against one tenant when a subscription changes.
type Hook func(ctx context.Context, t tenant.ResolvedTenant, logger *slog.Logger) error

// Manifest is what a module declares about itself.
type Manifest struct {
	Name        string
	Slug        string
	Version     string
	Description string

	// Routes serves everything below /api/<slug>.
	Routes http.Handler
	// Events lists what the module may publish and subscribe to. A nil
	// contract keeps the module off the bus.
	Events *events.Contract

	OnProvision   Hook
	OnUnsubscribe Hook

	// OpenAPI is the module's swagger document, served verbatim.
	OpenAPI []byte

	// Template and Hidden manifests are discovered but never loaded.
	Template bool
	Hidden   bool
}

// Module is implemented by every plugin.
type Module interface {
	Manifest() Manifest
}

// Subscriber is implemented by modules that consume bus events. Subscribe is
// called once after the registry is bound to the bus.
type Subscriber interface {
	Subscribe(ctx context.Context, bus *events.Bus) error
}

// Summary is the public description of a loaded module.
type Summary struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Version     string `json:"version"`
	Description string `json:"description"`
	MountPath   string `json:"mount_path"`
}

// MountPath returns the URL prefix a module is served under.
func MountPath(slug string) string {
	return "/api/" + slug
}
