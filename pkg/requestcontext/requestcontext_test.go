package requestcontext

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"tenantplane/contracts/tenant"
)

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, RequestID(ctx))
	assert.Nil(t, Tenant(ctx))
	assert.Empty(t, TenantSlug(ctx))
	assert.Empty(t, Module(ctx))
	assert.Empty(t, IsolationBypass(ctx))
}

func TestTenantRoundTrip(t *testing.T) {
	acme := &tenant.ResolvedTenant{Slug: "acme", Name: "Acme", Active: true}
	ctx := WithTenant(context.Background(), acme)

	assert.Same(t, acme, Tenant(ctx))
	assert.Equal(t, "acme", TenantSlug(ctx))
}

func TestWithTenantNilIsNoop(t *testing.T) {
	parent := context.Background()
	assert.Equal(t, parent, WithTenant(parent, nil))
}

func TestModuleAndRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithModule(ctx, "hotel")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "hotel", Module(ctx))
}

func TestIsolationBypass(t *testing.T) {
	t.Run("reason recorded", func(t *testing.T) {
		ctx := WithIsolationBypass(context.Background(), "nightly report")
		assert.Equal(t, "nightly report", IsolationBypass(ctx))
	})

	t.Run("empty reason ignored", func(t *testing.T) {
		ctx := WithIsolationBypass(context.Background(), "")
		assert.Empty(t, IsolationBypass(ctx))
	})

	t.Run("child does not leak to parent", func(t *testing.T) {
		parent := context.Background()
		_ = WithIsolationBypass(parent, "migration")
		assert.Empty(t, IsolationBypass(parent))
	})
}

func TestConcurrentRequestsDoNotShareTenant(t *testing.T) {
	var wg sync.WaitGroup
	slugs := []string{"acme", "beta", "gamma", "delta"}
	results := make([]string, len(slugs))

	for i, slug := range slugs {
		wg.Go(func() {
			ctx := WithTenant(context.Background(), &tenant.ResolvedTenant{Slug: slug})
			results[i] = TenantSlug(ctx)
		})
	}
	wg.Wait()

	assert.Equal(t, slugs, results)
}
