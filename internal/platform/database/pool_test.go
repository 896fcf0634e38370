package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutURL(t *testing.T) {
	pool, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, pool)
}

func TestNilPool(t *testing.T) {
	var pool *Pool
	assert.ErrorIs(t, pool.Health(context.Background()), ErrNotConfigured)
	assert.NoError(t, pool.Close())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Positive(t, cfg.PingTimeout)
}
