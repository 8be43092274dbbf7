// Package cache provides the two-tier caching layer: a bounded
// in-process LRU with per-entry TTL, and an optional shared Redis
// tier for cross-process reuse. The shared tier is best-effort: it
// can disappear at any time without affecting correctness, only
// cold-start cost.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Store is the byte-oriented contract the shared tier implements.
// Implementations must degrade to misses on backend failure; callers
// never see an error from a cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Memory is the in-process tier: LRU-evicted, TTL-expired, safe for
// concurrent use.
type Memory[V any] struct {
	lru *lru.LRU[string, V]
}

// NewMemory builds a Memory cache holding at most maxEntries values,
// each expiring ttl after its last Set.
func NewMemory[V any](maxEntries int, ttl time.Duration) *Memory[V] {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &Memory[V]{lru: lru.NewLRU[string, V](maxEntries, nil, ttl)}
}

// Get returns the cached value and whether it was present and fresh.
func (m *Memory[V]) Get(key string) (V, bool) {
	return m.lru.Get(key)
}

// Set stores value under key, evicting the least recently used entry
// when full.
func (m *Memory[V]) Set(key string, value V) {
	m.lru.Add(key, value)
}

// Delete removes key if present.
func (m *Memory[V]) Delete(key string) {
	m.lru.Remove(key)
}

// Len reports the current number of live entries.
func (m *Memory[V]) Len() int {
	return m.lru.Len()
}
