package datastore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"tenantplane/contracts/tenant"
	"tenantplane/internal/platform/config"
	"tenantplane/internal/platform/docstore"
	"tenantplane/internal/tenancy/connections"
	"tenantplane/internal/tenancy/isolation"
	dErrors "tenantplane/pkg/domain-errors"
	"tenantplane/pkg/requestcontext"
)

func withTenant(slug, uri string) context.Context {
	return requestcontext.WithTenant(context.Background(), &tenant.ResolvedTenant{Slug: slug, DatabaseURI: uri})
}

func TestRouterSiloAlwaysUsesInstanceDatabase(t *testing.T) {
	instance := docstore.NewMemory("instance")
	cache := connections.New(connections.MemoryDialer{})
	r := NewRouter(config.ModeSilo, instance, cache, isolation.New(nil))

	db, err := r.Database(withTenant("acme", "mongodb://elsewhere/acme"))
	require.NoError(t, err)
	assert.Equal(t, "instance", db.Name())
	assert.Zero(t, cache.Len())
}

func TestRouterHubSelectsStore(t *testing.T) {
	controlPlane := docstore.NewMemory("control")
	cache := connections.New(connections.MemoryDialer{})
	r := NewRouter(config.ModeHub, controlPlane, cache, isolation.New([]isolation.Schema{{Collection: "rooms"}}))

	t.Run("no tenant uses control plane", func(t *testing.T) {
		db, err := r.Database(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "control", db.Name())
	})

	t.Run("tenant without uri uses control plane", func(t *testing.T) {
		db, err := r.Database(withTenant("acme", ""))
		require.NoError(t, err)
		assert.Equal(t, "control", db.Name())
	})

	t.Run("tenant with uri uses cached connection", func(t *testing.T) {
		db, err := r.Database(withTenant("beta", "mongodb://beta"))
		require.NoError(t, err)
		assert.Equal(t, "beta", db.Name())
		assert.Equal(t, []string{"beta"}, cache.Keys())
	})

	t.Run("returned database is isolation wrapped", func(t *testing.T) {
		ctx := withTenant("acme", "")
		rooms, err := r.Collection(ctx, "rooms")
		require.NoError(t, err)
		_, err = rooms.InsertOne(ctx, bson.M{"_id": "r1"})
		require.NoError(t, err)

		doc, err := controlPlane.Collection("rooms").FindOne(context.Background(), bson.M{"_id": "r1"})
		require.NoError(t, err)
		assert.Equal(t, "acme", doc["tenant"])
	})
}

func TestRouterDialFailureIsUnavailable(t *testing.T) {
	failing := connections.DialerFunc(func(context.Context, string, string) (connections.Conn, error) {
		return nil, errors.New("no route to host")
	})
	r := NewRouter(config.ModeHub, docstore.NewMemory("control"), connections.New(failing), isolation.New(nil))

	_, err := r.Database(withTenant("acme", "mongodb://down"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}
