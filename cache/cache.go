// Package cache provides the in-process read-through caches used for the
// read-only reference tables (countries, platforms, platform-countries, base
// categories). Entries live for the process lifetime; there is no
// invalidation because the referenced tables do not change during a run.
package cache

import (
	"context"
	"sync"
)

// Loader fetches a value for key from the backing store. found=false means
// the key does not exist (a cacheable fact as well, but we keep misses
// uncached so late reference fixes are picked up on retry).
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, bool, error)

// ReadThrough is a process-lifetime read-through cache guarded by a
// read-mostly lock. Unbounded: the reference universes are small.
type ReadThrough[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
	load  Loader[K, V]
}

// NewReadThrough creates a ReadThrough cache over the given loader.
func NewReadThrough[K comparable, V any](load Loader[K, V]) *ReadThrough[K, V] {
	return &ReadThrough[K, V]{
		items: make(map[K]V),
		load:  load,
	}
}

// Get returns the cached value, loading and caching it on first access.
func (c *ReadThrough[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	c.mu.RLock()
	v, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return v, true, nil
	}
	v, found, err := c.load(ctx, key)
	if err != nil || !found {
		return v, found, err
	}
	c.mu.Lock()
	c.items[key] = v
	c.mu.Unlock()
	return v, true, nil
}

// Put stores a value directly, bypassing the loader.
func (c *ReadThrough[K, V]) Put(key K, value V) {
	c.mu.Lock()
	c.items[key] = value
	c.mu.Unlock()
}

// Len returns the cached entry count.
func (c *ReadThrough[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Lazy holds a value loaded once on first access, e.g. the whole base
// category taxonomy.
type Lazy[T any] struct {
	mu     sync.Mutex
	loaded bool
	value  T
	load   func(ctx context.Context) (T, error)
}

// NewLazy creates a Lazy over the given loader.
func NewLazy[T any](load func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{load: load}
}

// Get returns the value, loading it on first call. A failed load is retried
// on the next call.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.value, nil
	}
	v, err := l.load(ctx)
	if err != nil {
		return v, err
	}
	l.value = v
	l.loaded = true
	return v, nil
}
