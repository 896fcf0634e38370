//go:build integration

package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantplane/migrations"
	"tenantplane/pkg/testutil/containers"
)

func TestApplyIsIdempotent(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()
	require.NoError(t, pg.Reset(ctx))

	applied, err := migrations.Apply(ctx, pg.DB)
	require.NoError(t, err)
	assert.Empty(t, applied, "container start already applied every migration")

	var count int
	require.NoError(t, pg.DB.QueryRowContext(ctx, "SELECT count(*) FROM schema_migrations").Scan(&count))
	versions, err := migrations.Versions()
	require.NoError(t, err)
	assert.Equal(t, len(versions), count)
}
