package cache

import (
	"sync"
	"time"
)

// entry stores a cached value and its absolute expiration timestamp.
type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiration
}

func (e entry[V]) expired(at time.Time) bool {
	return !e.expiresAt.IsZero() && at.After(e.expiresAt)
}

// SimpleCache is a map-backed cache with optional concurrency safety.
// Expired entries are dropped lazily or via PurgeExpired.
//
// The access checker uses a non-safe instance as a memo scoped to a single
// request; the token revocation list uses a safe instance with TTLs.
type SimpleCache[K comparable, V any] struct {
	// nil means the cache is NOT goroutine-safe
	mu    *sync.RWMutex
	clock func() time.Time
	items map[K]entry[V]
}

// Options controls construction of a SimpleCache.
type Options struct {
	// ConcurrencySafe guards all operations with a RWMutex.
	ConcurrencySafe bool

	// Clock overrides time.Now, mostly for tests.
	Clock func() time.Time
}

// NewSimpleCache constructs a new SimpleCache with the given options.
func NewSimpleCache[K comparable, V any](opts Options) *SimpleCache[K, V] {
	c := &SimpleCache[K, V]{
		clock: opts.Clock,
		items: make(map[K]entry[V]),
	}
	if opts.ConcurrencySafe {
		c.mu = &sync.RWMutex{}
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c
}

func (c *SimpleCache[K, V]) lockR() func() {
	if c.mu == nil {
		return func() {}
	}
	c.mu.RLock()
	return c.mu.RUnlock
}

func (c *SimpleCache[K, V]) lockW() func() {
	if c.mu == nil {
		return func() {}
	}
	c.mu.Lock()
	return c.mu.Unlock
}

// Get implements Cache.Get.
func (c *SimpleCache[K, V]) Get(key K) (V, bool) {
	unlock := c.lockR()
	defer unlock()

	var zero V
	e, ok := c.items[key]
	if !ok || e.expired(c.clock()) {
		return zero, false
	}
	return e.value, true
}

// Set implements Cache.Set.
func (c *SimpleCache[K, V]) Set(key K, value V, ttl time.Duration) {
	unlock := c.lockW()
	defer unlock()
	c.set(key, value, ttl)
}

func (c *SimpleCache[K, V]) set(key K, value V, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = c.clock().Add(ttl)
	}
	c.items[key] = entry[V]{value: value, expiresAt: exp}
}

// GetOrLoad implements Cache.GetOrLoad. The loader runs under the write lock,
// so concurrent callers for the same key load once.
func (c *SimpleCache[K, V]) GetOrLoad(key K, ttl time.Duration, load func() (V, error)) (V, error) {
	unlock := c.lockW()
	defer unlock()

	if e, ok := c.items[key]; ok && !e.expired(c.clock()) {
		return e.value, nil
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	c.set(key, v, ttl)
	return v, nil
}

// Delete implements Cache.Delete.
func (c *SimpleCache[K, V]) Delete(key K) {
	unlock := c.lockW()
	defer unlock()
	delete(c.items, key)
}

// Has implements Cache.Has.
func (c *SimpleCache[K, V]) Has(key K) bool {
	unlock := c.lockR()
	defer unlock()
	e, ok := c.items[key]
	return ok && !e.expired(c.clock())
}

// Len implements Cache.Len. It counts only non-expired entries.
func (c *SimpleCache[K, V]) Len() int {
	unlock := c.lockR()
	defer unlock()
	now := c.clock()
	count := 0
	for _, e := range c.items {
		if !e.expired(now) {
			count++
		}
	}
	return count
}

// PurgeExpired implements Cache.PurgeExpired.
func (c *SimpleCache[K, V]) PurgeExpired() {
	unlock := c.lockW()
	defer unlock()
	now := c.clock()
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
		}
	}
}

// Ensure SimpleCache implements Cache at compile time.
var _ Cache[any, any] = (*SimpleCache[any, any])(nil)
