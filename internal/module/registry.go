package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"tenantplane/internal/events"
	"tenantplane/pkg/validation"
)

// reservedSlugs collide with platform routes or the bus's core publisher.
var reservedSlugs = map[string]struct{}{
	"admin":       {},
	"modules":     {},
	"marketplace": {},
	"tenant":      {},
	"tenants":     {},
	"health":      {},
	"metrics":     {},

	events.CoreModule: {},
}

type entry struct {
	module   Module
	manifest Manifest
}

// Registry holds the modules accepted at boot. It is never mutated after Load.
type Registry struct {
	entries map[string]entry
	order   []string
}

// Load validates candidates in order and keeps the acceptable ones. Rejected
// manifests are logged and skipped; loading never fails as a whole.
func Load(candidates []Module, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{entries: make(map[string]entry)}
	for _, m := range candidates {
		if m == nil {
			continue
		}
		man := m.Manifest()
		if skip(man) {
			logger.Debug("module skipped", "module", man.Slug, "template", man.Template, "hidden", man.Hidden)
			continue
		}
		if err := r.check(man); err != nil {
			logger.Warn("module rejected", "module", man.Slug, "name", man.Name, "error", err)
			continue
		}
		r.entries[man.Slug] = entry{module: m, manifest: man}
		r.order = append(r.order, man.Slug)
		logger.Info("module loaded", "module", man.Slug, "version", man.Version, "mount_path", MountPath(man.Slug))
	}
	return r
}

func skip(man Manifest) bool {
	return man.Template || man.Hidden ||
		strings.HasPrefix(man.Slug, "_") || strings.HasPrefix(man.Slug, ".")
}

func (r *Registry) check(man Manifest) error {
	switch {
	case man.Slug == "":
		return errors.New("manifest has no slug")
	case man.Routes == nil:
		return errors.New("manifest has no routes")
	case !validation.IsSlug(man.Slug):
		return fmt.Errorf("invalid slug %q", man.Slug)
	}
	if _, ok := reservedSlugs[man.Slug]; ok {
		return fmt.Errorf("slug %q is reserved", man.Slug)
	}
	if _, ok := r.entries[man.Slug]; ok {
		return fmt.Errorf("slug %q is already loaded", man.Slug)
	}
	return nil
}

// Get returns the manifest of a loaded module.
func (r *Registry) Get(slug string) (Manifest, bool) {
	e, ok := r.entries[slug]
	return e.manifest, ok
}

// Has reports whether slug is loaded.
func (r *Registry) Has(slug string) bool {
	_, ok := r.entries[slug]
	return ok
}

// Slugs returns the loaded slugs in load order.
func (r *Registry) Slugs() []string {
	return slices.Clone(r.order)
}

// Len returns the number of loaded modules.
func (r *Registry) Len() int {
	return len(r.order)
}

func (r *Registry) Summary() []Summary {
	out := make([]Summary, 0, len(r.order))
	for _, slug := range r.order {
		man := r.entries[slug].manifest
		out = append(out, Summary{
			Name:        man.Name,
			Slug:        man.Slug,
			Version:     man.Version,
			Description: man.Description,
			MountPath:   MountPath(man.Slug),
		})
	}
	return out
}

// Contract implements events.ContractSource.
func (r *Registry) Contract(slug string) (*events.Contract, bool) {
	e, ok := r.entries[slug]
	if !ok {
		return nil, false
	}
	return e.manifest.Events, true
}

// OpenAPI returns the module's swagger document when it ships one.
func (r *Registry) OpenAPI(slug string) ([]byte, bool) {
	e, ok := r.entries[slug]
	if !ok || len(e.manifest.OpenAPI) == 0 {
		return nil, false
	}
	return e.manifest.OpenAPI, true
}

// GateFunc builds the access gate for one module.
type GateFunc func(slug string) func(http.Handler) http.Handler

// Mount serves every module at /api/<slug> behind its gate.
func (r *Registry) Mount(router chi.Router, gate GateFunc) {
	for _, slug := range r.order {
		routes := r.entries[slug].manifest.Routes
		if gate != nil {
			router.With(gate(slug)).Mount(MountPath(slug), routes)
			continue
		}
		router.Mount(MountPath(slug), routes)
	}
}

// Subscribe lets every Subscriber module register its bus handlers. All
// modules are attempted; the failures are joined.
func (r *Registry) Subscribe(ctx context.Context, bus *events.Bus) error {
	var errs []error
	for _, slug := range r.order {
		sub, ok := r.entries[slug].module.(Subscriber)
		if !ok {
			continue
		}
		if err := sub.Subscribe(ctx, bus); err != nil {
			errs = append(errs, fmt.Errorf("module %s: %w", slug, err))
		}
	}
	return errors.Join(errs...)
}
