package sync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_DefaultShards(t *testing.T) {
	assert.Len(t, NewKeyedMutex(0).shards, defaultShards)
	assert.Len(t, NewKeyedMutex(-4).shards, defaultShards)
	assert.Len(t, NewKeyedMutex(8).shards, 8)
}

func TestKeyedMutex_EmptyKeyUsesFirstShard(t *testing.T) {
	m := NewKeyedMutex(16)
	assert.Equal(t, 0, m.shardFor(""))

	m.Lock("")
	m.Unlock("")
}

func TestKeyedMutex_SameKeySerializes(t *testing.T) {
	m := NewKeyedMutex(0)
	counter := 0
	var wg sync.WaitGroup

	for range 200 {
		wg.Go(func() {
			m.Do("acme", func() { counter++ })
		})
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
}

func TestKeyedMutex_ShardIsStable(t *testing.T) {
	m := NewKeyedMutex(0)
	assert.Equal(t, m.shardFor("tenant-acme"), m.shardFor("tenant-acme"))
}

func TestKeyedMutex_Distribution(t *testing.T) {
	m := NewKeyedMutex(0)

	shards := make(map[int]bool)
	for _, key := range []string{"acme", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"} {
		shards[m.shardFor(key)] = true
	}

	assert.GreaterOrEqual(t, len(shards), 3)
}
