// Package sync holds concurrency helpers shared across bounded contexts.
package sync

import (
	"hash/maphash"
	"sync"
)

const shardCount = 32

// ShardedMutex serializes work per key without a single global lock. The
// consent manager uses it so two read-merge-write updates for one user never
// interleave, while updates for different users mostly proceed in parallel.
// Two keys may share a shard; one key always maps to the same shard.
type ShardedMutex struct {
	seed   maphash.Seed
	shards [shardCount]sync.Mutex
}

func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{seed: maphash.MakeSeed()}
}

// Do runs fn while holding the key's shard lock and returns its error.
func (m *ShardedMutex) Do(key string, fn func() error) error {
	mu := &m.shards[m.shardFor(key)]
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

func (m *ShardedMutex) shardFor(key string) uint64 {
	return maphash.String(m.seed, key) % shardCount
}
