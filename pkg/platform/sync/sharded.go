// Package sync holds the keyed lock the in-memory stores commit under.
package sync

import (
	"context"
	"hash/maphash"
	"time"
)

const shardCount = 32

// ShardedMutex serializes work per key (a child, an approval token) over a
// fixed set of shards, so unrelated families rarely contend. Two keys may
// share a shard; callers must not nest locks for different keys.
//
// Shards are one-slot channels rather than sync.Mutex so a waiter can give
// up when its request deadline passes.
type ShardedMutex struct {
	seed   maphash.Seed
	shards [shardCount]chan struct{}
}

func NewShardedMutex() *ShardedMutex {
	m := &ShardedMutex{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
	}
	return m
}

// Lock blocks until key's shard is free.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)] <- struct{}{}
}

// LockContext is Lock bounded by ctx. It reports how long the caller waited,
// and ctx's error if the shard never came free.
func (m *ShardedMutex) LockContext(ctx context.Context, key string) (time.Duration, error) {
	start := time.Now()
	select {
	case m.shards[m.shardFor(key)] <- struct{}{}:
		return time.Since(start), nil
	case <-ctx.Done():
		return time.Since(start), ctx.Err()
	}
}

// Unlock releases key's shard. Unlocking a free shard panics, like
// sync.Mutex.
func (m *ShardedMutex) Unlock(key string) {
	select {
	case <-m.shards[m.shardFor(key)]:
	default:
		panic("sync: unlock of unlocked shard")
	}
}

// Do runs fn while holding key's shard.
func (m *ShardedMutex) Do(key string, fn func() error) error {
	m.Lock(key)
	defer m.Unlock(key)
	return fn()
}

func (m *ShardedMutex) shardFor(key string) int {
	return int(maphash.String(m.seed, key) % shardCount)
}
