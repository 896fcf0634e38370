package sync

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 32

// KeyedMutex serialises work per key by hashing keys onto a fixed set of
// mutex shards. Two keys may share a shard; callers must not hold one key
// while acquiring another.
type KeyedMutex struct {
	shards []sync.Mutex
}

// NewKeyedMutex returns a KeyedMutex with n shards. n <= 0 selects 32.
func NewKeyedMutex(n int) *KeyedMutex {
	if n <= 0 {
		n = defaultShards
	}
	return &KeyedMutex{shards: make([]sync.Mutex, n)}
}

// Lock acquires the shard that owns key.
func (m *KeyedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the shard that owns key.
func (m *KeyedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// Do runs fn while holding key's shard.
func (m *KeyedMutex) Do(key string, fn func()) {
	m.Lock(key)
	defer m.Unlock(key)
	fn()
}

func (m *KeyedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(len(m.shards)))
}
