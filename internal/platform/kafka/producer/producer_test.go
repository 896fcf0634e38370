package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantplane/internal/platform/kafka"
)

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, kafka.ErrNoBrokers)
}

func TestProduceAfterClose(t *testing.T) {
	// franz-go connects lazily, so an unreachable seed is fine until a write.
	p, err := New(DefaultConfig("127.0.0.1:1"), nil)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err = p.Produce(context.Background(), &Message{Topic: "events.room.created"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Ping(context.Background()), ErrClosed)
}
