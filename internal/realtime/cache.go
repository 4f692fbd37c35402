// Package realtime implements the L3 Realtime Cache: a TTL cache with
// singleflight semantics in front of on-demand single-symbol queries
// (spec.md §4.9), keyed by (dataset, code). golang.org/x/sync/singleflight
// is the same module the teacher already imports for errgroup, so this
// adopts a sibling package rather than hand-rolling a per-key mutex.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value   interface{}
	storedAt time.Time
	err     error
}

// Cache is a TTL+singleflight cache. A miss triggers exactly one upstream
// fetch per key even under concurrent readers; on fetch failure the
// stale entry is returned if still within staleGrace.
type Cache struct {
	ttl        time.Duration
	staleGrace time.Duration

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// New builds a Cache with the given TTL and stale-grace window (spec
// defaults: ttl=10s, staleGrace=60s).
func New(ttl, staleGrace time.Duration) *Cache {
	return &Cache{
		ttl:        ttl,
		staleGrace: staleGrace,
		entries:    make(map[string]entry),
	}
}

// Key joins (dataset, code) into the cache's internal key shape.
func Key(dataset, code string) string {
	return fmt.Sprintf("%s:%s", dataset, code)
}

// Get returns the cached value for key if fresh, otherwise calls fetch
// exactly once across all concurrent callers for that key (singleflight),
// and falls back to the stale value if fetch fails and the stale entry is
// still within staleGrace.
func (c *Cache) Get(ctx context.Context, key string, fetch func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := c.fresh(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, fetchErr := fetch(ctx)
		now := time.Now()
		c.mu.Lock()
		if fetchErr == nil {
			c.entries[key] = entry{value: result, storedAt: now}
		}
		c.mu.Unlock()
		return result, fetchErr
	})

	if err != nil {
		if stale, ok := c.staleFallback(key); ok {
			return stale, nil
		}
		return nil, err
	}
	return v, nil
}

func (c *Cache) fresh(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) staleFallback(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) > c.ttl+c.staleGrace {
		return nil, false
	}
	return e.value, true
}

// Invalidate drops the cached entry for key, if any.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
