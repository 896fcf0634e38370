// Package service implements the tenant control plane: registration,
// suspension and module subscriptions, with module lifecycle hooks and
// bus notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"tenantplane/contracts/tenant"
	"tenantplane/internal/events"
	"tenantplane/internal/module"
	"tenantplane/internal/sentinel"
	tenantmetrics "tenantplane/internal/tenant/metrics"
	"tenantplane/internal/tenant/models"
	dErrors "tenantplane/pkg/domain-errors"
	psync "tenantplane/pkg/platform/sync"
	"tenantplane/pkg/requestcontext"
)

// Store persists tenants. Misses return sentinel.ErrNotFound and slug
// collisions sentinel.ErrAlreadyUsed.
type Store interface {
	Create(ctx context.Context, t *models.Tenant) error
	Update(ctx context.Context, t *models.Tenant) error
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	FindActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
}

// Catalog exposes the loaded module manifests.
type Catalog interface {
	Get(slug string) (module.Manifest, bool)
}

// Publisher is satisfied by *events.Bus.
type Publisher interface {
	Publish(ctx context.Context, source, event string, payload any) error
}

// RegisterCommand is a validated tenant signup.
type RegisterCommand struct {
	Slug    string
	Name    string
	Modules []string
}

type Service struct {
	store     Store
	catalog   Catalog
	publisher Publisher
	logger    *slog.Logger
	metrics   *tenantmetrics.Metrics
	now       func() time.Time
	locks     *psync.KeyedMutex
}

func New(store Store, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: catalog,
		logger:  slog.Default(),
		now:     time.Now,
		locks:   psync.NewKeyedMutex(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTenant creates an active tenant and provisions its initial modules.
func (s *Service) RegisterTenant(ctx context.Context, cmd RegisterCommand) (*models.Tenant, error) {
	t, err := models.NewTenant(cmd.Slug, cmd.Name, cmd.Modules, s.now().UTC())
	if err != nil {
		return nil, asValidation(err)
	}
	for _, slug := range t.SubscribedModules {
		if _, ok := s.catalog.Get(slug); !ok {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown module %q", slug)
		}
	}

	if err := s.store.Create(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant slug is already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}
	s.metrics.IncrementTenantRegistered()
	s.logger.InfoContext(ctx, "tenant registered",
		"tenant", t.Slug,
		"modules", t.SubscribedModules,
		"request_id", requestcontext.RequestID(ctx),
	)

	for _, slug := range t.SubscribedModules {
		s.runHook(ctx, t, slug, "provision")
		s.metrics.IncrementSubscription(slug, tenantmetrics.ActionSubscribe)
	}
	s.publish(ctx, t, models.EventTenantRegistered, models.TenantRegistered{
		Tenant:  t.Slug,
		Name:    t.Name,
		Modules: t.SubscribedModules,
	})
	return t, nil
}

func (s *Service) GetTenant(ctx context.Context, slug string) (*models.Tenant, error) {
	t, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}
	return t, nil
}

func (s *Service) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return all, nil
}

// FindActiveTenant serves the tenant context resolver. Misses keep
// sentinel.ErrNotFound in the chain.
func (s *Service) FindActiveTenant(ctx context.Context, slug string) (*tenant.ResolvedTenant, error) {
	t, err := s.store.FindActiveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return t.Resolved(), nil
}

// SuspendTenant makes the tenant unresolvable until reactivated.
func (s *Service) SuspendTenant(ctx context.Context, slug string) (*models.Tenant, error) {
	t, err := s.mutate(ctx, slug, func(t *models.Tenant) error {
		return t.Suspend(s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, t, models.EventTenantSuspended, models.TenantStatusChanged{Tenant: t.Slug, Active: false})
	return t, nil
}

func (s *Service) ReactivateTenant(ctx context.Context, slug string) (*models.Tenant, error) {
	t, err := s.mutate(ctx, slug, func(t *models.Tenant) error {
		return t.Reactivate(s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, t, models.EventTenantReactivated, models.TenantStatusChanged{Tenant: t.Slug, Active: true})
	return t, nil
}

// AssignDatabase routes the tenant's module data to a dedicated store from
// the next request on. Existing data is not migrated.
func (s *Service) AssignDatabase(ctx context.Context, slug, uri string) (*models.Tenant, error) {
	t, err := s.mutate(ctx, slug, func(t *models.Tenant) error {
		return t.AssignDatabase(uri, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "tenant database assigned",
		"tenant", t.Slug,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, t, models.EventDatabaseAssigned, models.DatabaseAssigned{Tenant: t.Slug})
	return t, nil
}

// SubscribeModule activates a loaded module for the tenant and runs its
// provisioning hook. A failing hook is logged; the subscription stands.
func (s *Service) SubscribeModule(ctx context.Context, slug, moduleSlug string) (*models.Tenant, error) {
	if _, ok := s.catalog.Get(moduleSlug); !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "module %q not found", moduleSlug)
	}
	t, err := s.mutate(ctx, slug, func(t *models.Tenant) error {
		return t.Subscribe(moduleSlug, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementSubscription(moduleSlug, tenantmetrics.ActionSubscribe)
	s.runHook(ctx, t, moduleSlug, "provision")
	s.publish(ctx, t, models.EventModuleSubscribed, models.ModuleSubscriptionChanged{Tenant: t.Slug, Module: moduleSlug})
	return t, nil
}

// UnsubscribeModule removes the module and runs its cleanup hook. Modules no
// longer loaded may still be removed; they simply have no hook.
func (s *Service) UnsubscribeModule(ctx context.Context, slug, moduleSlug string) (*models.Tenant, error) {
	t, err := s.mutate(ctx, slug, func(t *models.Tenant) error {
		return t.Unsubscribe(moduleSlug, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementSubscription(moduleSlug, tenantmetrics.ActionUnsubscribe)
	s.runHook(ctx, t, moduleSlug, "unsubscribe")
	s.publish(ctx, t, models.EventModuleUnsubscribed, models.ModuleSubscriptionChanged{Tenant: t.Slug, Module: moduleSlug})
	return t, nil
}

// mutate loads, changes and stores one tenant while holding its key lock.
func (s *Service) mutate(ctx context.Context, slug string, change func(*models.Tenant) error) (*models.Tenant, error) {
	s.locks.Lock(slug)
	defer s.locks.Unlock(slug)

	t, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}
	if err := change(t); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			var de *dErrors.Error
			errors.As(err, &de)
			return nil, dErrors.New(dErrors.CodeConflict, de.Message)
		}
		return nil, err
	}
	if err := s.store.Update(ctx, t); err != nil {
		return nil, wrapTenantErr(err, "failed to update tenant")
	}
	return t, nil
}

// runHook invokes a module lifecycle hook with the tenant as ambient context.
// Errors and panics are logged and counted, never returned.
func (s *Service) runHook(ctx context.Context, t *models.Tenant, moduleSlug, hook string) {
	man, ok := s.catalog.Get(moduleSlug)
	if !ok {
		return
	}
	fn := man.OnProvision
	if hook == "unsubscribe" {
		fn = man.OnUnsubscribe
	}
	if fn == nil {
		return
	}

	resolved := t.Resolved()
	hookCtx := requestcontext.WithModule(requestcontext.WithTenant(ctx, resolved), moduleSlug)
	logger := s.logger.With("tenant", t.Slug, "module", moduleSlug, "hook", hook)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("hook panicked: %v", r)
				logger.ErrorContext(hookCtx, "module hook panicked", "stack", string(debug.Stack()))
			}
		}()
		return fn(hookCtx, *resolved, logger)
	}()
	if err != nil {
		s.metrics.IncrementHookFailure(moduleSlug, hook)
		logger.ErrorContext(hookCtx, "module hook failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// publish announces a control-plane change about t. The envelope carries
// t as its tenant so handlers act inside that tenant's store. Delivery is
// best effort.
func (s *Service) publish(ctx context.Context, t *models.Tenant, event string, payload any) {
	if s.publisher == nil {
		return
	}
	subject := requestcontext.WithTenant(ctx, t.Resolved())
	if err := s.publisher.Publish(subject, events.CoreModule, event, payload); err != nil {
		s.logger.WarnContext(ctx, "tenant event not published",
			"event", event,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func wrapTenantErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

// asValidation reports model invariant failures as request validation errors.
func asValidation(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code == dErrors.CodeInvariantViolation {
		return dErrors.New(dErrors.CodeValidation, de.Message)
	}
	return err
}
