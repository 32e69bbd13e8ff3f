// Package cache memoizes expensive routine evaluations. It is an
// optimization only: every failure mode degrades to recomputation.
package cache

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	key      Key
	value    any
	storedAt time.Time
}

// Cache stores routine results keyed by canonicalized invocations. Unbounded
// by default; a maximum entry count (LRU eviction) and a TTL can be
// configured by the host. Safe for concurrent use, and concurrent computes
// for one key are collapsed to a single invocation.
type Cache struct {
	mu         sync.Mutex
	entries    map[Key]*list.Element
	ll         *list.List
	maxEntries int
	ttl        time.Duration
	group      singleflight.Group
	now        func() time.Time

	hits   int
	misses int
}

// Option customizes a cache instance.
type Option func(*Cache)

// WithMaxEntries bounds the cache; least-recently-used entries are evicted.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// WithTTL expires entries older than d at lookup time.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.now = clock
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[Key]*list.Element),
		ll:      list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the stored value for key, if present and not expired.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key)
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. At most one compute runs per key at a time, even across engines
// sharing this cache. Compute errors are returned uncached so a later call
// retries. The second return reports whether the value came from the cache.
func (c *Cache) GetOrCompute(key Key, compute func() (any, error)) (any, bool, error) {
	c.mu.Lock()
	if v, ok := c.lookup(key); ok {
		c.hits++
		c.mu.Unlock()
		return v, true, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err, shared := c.group.Do(string(key), func() (any, error) {
		c.mu.Lock()
		if v, ok := c.lookup(key); ok {
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.put(key, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, shared, nil
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats reports cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// lookup must be called with c.mu held.
func (c *Cache) lookup(key Key) (any, bool) {
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.ll.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return e.value, true
}

func (c *Cache) put(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = v
		el.Value.(*entry).storedAt = c.now()
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry{key: key, value: v, storedAt: c.now()})
	c.entries[key] = el

	if c.maxEntries > 0 {
		for c.ll.Len() > c.maxEntries {
			oldest := c.ll.Back()
			c.ll.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).key)
		}
	}
}
