package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"tenantplane/internal/sentinel"
	"tenantplane/internal/tenant/models"
)

// ErrNotFound is returned when a tenant is not found.
var ErrNotFound = sentinel.ErrNotFound

// InMemory stores tenants in memory for development and tests.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[string]*models.Tenant
}

// NewInMemory creates an in-memory tenant store.
func NewInMemory() *InMemory {
	return &InMemory{tenants: make(map[string]*models.Tenant)}
}

// Create inserts t unless its slug is taken.
func (s *InMemory) Create(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tenants[t.Slug]; exists {
		return fmt.Errorf("tenant slug must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.tenants[t.Slug] = t.Clone()
	return nil
}

// Update replaces the stored tenant with the same slug.
func (s *InMemory) Update(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tenants[t.Slug]; !exists {
		return ErrNotFound
	}
	s.tenants[t.Slug] = t.Clone()
	return nil
}

func (s *InMemory) FindBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[slug]; ok {
		return t.Clone(), nil
	}
	return nil, ErrNotFound
}

// FindActiveBySlug treats suspended tenants as missing.
func (s *InMemory) FindActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	t, err := s.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, ErrNotFound
	}
	return t, nil
}

// List returns every tenant ordered by slug.
func (s *InMemory) List(_ context.Context) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Tenant) int {
		switch {
		case a.Slug < b.Slug:
			return -1
		case a.Slug > b.Slug:
			return 1
		}
		return 0
	})
	return out, nil
}
