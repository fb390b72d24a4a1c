// Package memo provides a fixed-capacity memoization cache. It is the
// wrapper that memoscope injects above candidate functions during
// validation, so it deliberately has no dependencies outside the
// standard library: the mutated target repository imports it too.
package memo

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the cache size used when New is called without an
// explicit capacity.
const DefaultCapacity = 128

// Unbounded disables the capacity limit.
const Unbounded = -1

// Cache is an LRU result cache keyed by a single comparable argument.
// Safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[K]*list.Element

	hits   uint64
	misses uint64
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// New creates a Cache. With no argument the capacity is DefaultCapacity;
// a capacity of Unbounded (or any non-positive value) disables eviction.
func New[K comparable, V any](capacity ...int) *Cache[K, V] {
	return NewNamed[K, V]("", capacity...)
}

// NewNamed creates a Cache that reports its statistics under name when
// stats reporting is enabled (see the MEMOSCOPE_STATS environment
// variable). memoscope-generated wrappers use the wrapped function's
// name so hit rates can be attributed per candidate.
func NewNamed[K comparable, V any](name string, capacity ...int) *Cache[K, V] {
	size := DefaultCapacity
	if len(capacity) > 0 {
		size = capacity[0]
	}

	if size <= 0 {
		size = Unbounded
	}

	c := &Cache[K, V]{
		capacity: size,
		order:    list.New(),
		entries:  make(map[K]*list.Element),
	}
	register(name, c.Stats)

	return c
}

// Get returns the cached result for key, computing and storing it via fn
// on a miss. The least recently used entry is evicted once the cache is
// over capacity.
func (c *Cache[K, V]) Get(key K, fn func(K) V) V {
	c.mu.Lock()

	if el, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(el)
		v := el.Value.(*entry[K, V]).value
		c.mu.Unlock()
		maybeFlush()

		return v
	}

	c.misses++
	c.mu.Unlock()

	// Compute outside the lock: recursive memoized functions re-enter Get.
	v := fn(key)

	c.mu.Lock()
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: v})
		if c.capacity != Unbounded && c.order.Len() > c.capacity {
			c.evictOldest()
		}
	}
	c.mu.Unlock()
	maybeFlush()

	return v
}

// Lookup reports whether key is cached without computing anything.
func (c *Cache[K, V]) Lookup(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(el)

		return el.Value.(*entry[K, V]).value, true
	}

	c.misses++

	var zero V

	return zero, false
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Capacity returns the configured capacity, Unbounded for no limit.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Purge drops all entries. Counters are kept.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[K]*list.Element)
}

// Stats returns a snapshot of the hit/miss counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{Hits: c.hits, Misses: c.misses, Entries: c.order.Len()}
}

func (c *Cache[K, V]) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}

	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry[K, V]).key)
}
