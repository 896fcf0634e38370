//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"tenantplane/contracts/tenant"
	"tenantplane/pkg/requestcontext"
	"tenantplane/pkg/testutil/containers"
)

func newBoundBus(t *testing.T, transport Transport) *Bus {
	t.Helper()
	bus := New(transport)
	require.NoError(t, bus.Bind(testContracts))
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

// TestRedisTransportFansOutAcrossInstances runs two buses on one server, the
// way two hub replicas share a Redis deployment.
func TestRedisTransportFansOutAcrossInstances(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	opts, err := redis.ParseURL(rc.URL)
	require.NoError(t, err)

	ctx := requestcontext.WithTenant(context.Background(), &tenant.ResolvedTenant{Slug: "acme"})
	publisherRDB, subscriberRDB := redis.NewClient(opts), redis.NewClient(opts)
	t.Cleanup(func() {
		_ = publisherRDB.Close()
		_ = subscriberRDB.Close()
	})

	publisher := newBoundBus(t, NewRedisTransport(publisherRDB, nil))
	subscriber := newBoundBus(t, NewRedisTransport(subscriberRDB, nil))

	rec := &recorder{}
	require.NoError(t, subscriber.Subscribe(ctx, "billing", "room.created", rec.handle))
	require.NoError(t, publisher.Publish(ctx, "hotel", "room.created", map[string]int{"number": 101}))

	require.Eventually(t, func() bool { return rec.count() == 1 }, 5*time.Second, 20*time.Millisecond)
	env, deliveryCtx := rec.first()
	assert.Equal(t, "hotel", env.Source)
	assert.Equal(t, "acme", env.Tenant)
	assert.Equal(t, "acme", requestcontext.TenantSlug(deliveryCtx))
}

func TestKafkaTransportRoundTrip(t *testing.T) {
	kc := containers.GetManager().GetKafka(t)
	cfg := kc.Config("it-roundtrip")

	transport, err := NewKafkaTransport(cfg, nil)
	require.NoError(t, err)
	bus := newBoundBus(t, transport)

	rec := &recorder{}
	ctx := context.Background()
	require.NoError(t, bus.Subscribe(ctx, "billing", "room.created", rec.handle))

	// The consumer group joins asynchronously and starts at the latest
	// offset, so publish until the first delivery lands.
	require.Eventually(t, func() bool {
		if err := bus.Publish(ctx, "hotel", "room.created", map[string]int{"number": 101}); err != nil {
			return false
		}
		return rec.count() > 0
	}, 60*time.Second, time.Second)

	env, _ := rec.first()
	assert.Equal(t, "room.created", env.Event)

	client, err := kc.NewConsumer(ctx, "it-roundtrip-verify", transport.Topic(ChannelPrefix+"room.created"))
	require.NoError(t, err)
	defer client.Close()

	record := kc.WaitForMessage(ctx, client, 30*time.Second, func(r *kgo.Record) bool {
		for _, h := range r.Headers {
			if h.Key == "channel" && string(h.Value) == ChannelPrefix+"room.created" {
				return true
			}
		}
		return false
	})
	require.NotNil(t, record)
	assert.Equal(t, "it-roundtrip.room.created", record.Topic)
}
