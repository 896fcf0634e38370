package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tenantplane/internal/sentinel"
	"tenantplane/internal/tenant/models"
)

// tenantStore is the behaviour both implementations share.
type tenantStore interface {
	Create(ctx context.Context, t *models.Tenant) error
	Update(ctx context.Context, t *models.Tenant) error
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	FindActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
}

// StoreSuite runs against any tenantStore; reset returns an empty store.
type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	reset func() tenantStore
	store tenantStore
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.reset()
}

func (s *StoreSuite) newTenant(slug string, modules ...string) *models.Tenant {
	t, err := models.NewTenant(slug, "Tenant "+slug, modules, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	return t
}

func (s *StoreSuite) TestCreateAndFind() {
	acme := s.newTenant("acme", "hotel", "billing")
	acme.DatabaseURI = "mongodb://db-acme:27017/acme"
	s.Require().NoError(s.store.Create(s.ctx, acme))

	got, err := s.store.FindBySlug(s.ctx, "acme")
	s.Require().NoError(err)
	s.Equal("Tenant acme", got.Name)
	s.Equal([]string{"hotel", "billing"}, got.SubscribedModules)
	s.Equal("mongodb://db-acme:27017/acme", got.DatabaseURI)
	s.True(got.Active)
	s.Equal(models.StatusLive, got.Status)
	s.True(acme.CreatedAt.Equal(got.CreatedAt))
}

func (s *StoreSuite) TestDuplicateSlug() {
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("acme")))

	err := s.store.Create(s.ctx, s.newTenant("acme"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *StoreSuite) TestMissingTenant() {
	_, err := s.store.FindBySlug(s.ctx, "ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.Update(s.ctx, s.newTenant("ghost"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestFindActiveSkipsSuspended() {
	beta := s.newTenant("beta")
	s.Require().NoError(s.store.Create(s.ctx, beta))
	s.Require().NoError(beta.Suspend(time.Now()))
	s.Require().NoError(s.store.Update(s.ctx, beta))

	_, err := s.store.FindActiveBySlug(s.ctx, "beta")
	s.ErrorIs(err, sentinel.ErrNotFound)

	got, err := s.store.FindBySlug(s.ctx, "beta")
	s.Require().NoError(err)
	s.False(got.Active)
}

func (s *StoreSuite) TestUpdatePersistsSubscriptions() {
	acme := s.newTenant("acme", "hotel")
	s.Require().NoError(s.store.Create(s.ctx, acme))
	s.Require().NoError(acme.Subscribe("crm", time.Now()))
	s.Require().NoError(s.store.Update(s.ctx, acme))

	got, err := s.store.FindActiveBySlug(s.ctx, "acme")
	s.Require().NoError(err)
	s.Equal([]string{"hotel", "crm"}, got.SubscribedModules)
}

func (s *StoreSuite) TestListOrdersBySlug() {
	for _, slug := range []string{"zeta", "acme", "mid"} {
		s.Require().NoError(s.store.Create(s.ctx, s.newTenant(slug)))
	}

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("acme", all[0].Slug)
	s.Equal("mid", all[1].Slug)
	s.Equal("zeta", all[2].Slug)
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{reset: func() tenantStore { return NewInMemory() }})
}

func TestInMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	acme, err := models.NewTenant("acme", "Acme", []string{"hotel"}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, acme); err != nil {
		t.Fatal(err)
	}
	acme.SubscribedModules[0] = "mutated"

	got, _ := s.FindBySlug(ctx, "acme")
	got.Name = "changed"
	again, _ := s.FindBySlug(ctx, "acme")

	if again.SubscribedModules[0] != "hotel" || again.Name != "Acme" {
		t.Fatalf("store leaked internal state: %+v", again)
	}
}

func (s *StoreSuite) TestLookupResolvesSuspendedTenant() {
	acme := s.newTenant("acme", "billing")
	acme.DatabaseURI = "mongodb://db-acme:27017/acme"
	s.Require().NoError(acme.Suspend(time.Now()))
	s.Require().NoError(s.store.Create(s.ctx, acme))

	lookup := NewLookup(s.store)
	got, err := lookup.LookupTenant(s.ctx, "acme")
	s.Require().NoError(err)
	s.Equal("acme", got.Slug)
	s.False(got.Active)
	s.Equal("mongodb://db-acme:27017/acme", got.DatabaseURI)

	_, err = lookup.LookupTenant(s.ctx, "ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
