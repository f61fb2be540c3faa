package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Default configuration constants.
const (
	// DefaultShardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	DefaultShardCount = 16

	// DefaultCapacity is the default maximum entries per shard.
	DefaultCapacity = 64

	// shardMask is used for fast shard selection (DefaultShardCount - 1).
	shardMask = DefaultShardCount - 1
)

// Hasher computes the hash used for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes the FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Option configures a ShardedCache.
type Option[V any] func(*options[V])

type options[V any] struct {
	capacity int
	maxCost  int64
	cost     func(V) int64
}

// WithCapacity sets the maximum number of entries per shard.
func WithCapacity[V any](n int) Option[V] {
	return func(o *options[V]) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithMaxCost bounds the summed cost of all entries. Zero means unbounded.
func WithMaxCost[V any](total int64) Option[V] {
	return func(o *options[V]) {
		o.maxCost = total
	}
}

// WithCost sets the function that weighs an entry. Without it every entry
// costs 1.
func WithCost[V any](fn func(V) int64) Option[V] {
	return func(o *options[V]) {
		o.cost = fn
	}
}

// ShardedCache is a thread-safe, sharded LRU cache.
//
// The entry capacity applies per shard. The cost budget applies to the
// whole cache: when it is exceeded, the oldest entries of the shards are
// evicted in turn until the total fits.
type ShardedCache[K comparable, V any] struct {
	shards    [DefaultShardCount]*shard[K, V]
	hasher    Hasher[K]
	capacity  int   // per shard
	maxCost   int64 // total, 0 = unbounded
	cost      func(V) int64
	totalCost atomic.Int64
	nextEvict atomic.Uint32

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// shard is one lock domain of the cache.
type shard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*lruNode[K, V]
	lru     lruList[K, V]
}

// NewSharded creates a cache that selects shards with hasher.
func NewSharded[K comparable, V any](hasher Hasher[K], opts ...Option[V]) *ShardedCache[K, V] {
	o := options[V]{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cost == nil {
		o.cost = func(V) int64 { return 1 }
	}

	c := &ShardedCache[K, V]{
		hasher:   hasher,
		capacity: o.capacity,
		maxCost:  max(o.maxCost, 0),
		cost:     o.cost,
	}
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{entries: make(map[K]*lruNode[K, V])}
	}
	return c
}

func (c *ShardedCache[K, V]) shardFor(key K) *shard[K, V] {
	return c.shards[c.hasher(key)&shardMask]
}

// Get returns the value cached under key and marks it recently used.
func (c *ShardedCache[K, V]) Get(key K) (V, bool) {
	s := c.shardFor(key)

	s.mu.Lock()
	node, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	s.lru.MoveToFront(node)
	v := node.value
	s.mu.Unlock()

	c.hits.Add(1)
	return v, true
}

// Set stores value under key, evicting least recently used entries while
// its shard is over capacity or the cache is over its cost budget. A value
// that alone exceeds the budget is not stored.
//
// The value is stored as-is. Callers must not modify it after caching.
func (c *ShardedCache[K, V]) Set(key K, value V) {
	cost := c.cost(value)
	if c.maxCost > 0 && cost > c.maxCost {
		c.Delete(key)
		return
	}

	s := c.shardFor(key)
	node := &lruNode[K, V]{key: key, value: value, cost: cost}

	s.mu.Lock()
	if old, ok := s.entries[key]; ok {
		s.removeLocked(c, old)
	}
	s.lru.PushFront(node)
	s.entries[key] = node
	c.totalCost.Add(cost)

	for s.lru.Len() > c.capacity {
		oldest := s.lru.Oldest()
		if oldest == nil || oldest == node {
			break
		}
		s.removeLocked(c, oldest)
		c.evictions.Add(1)
	}
	s.mu.Unlock()

	c.evictOverBudget(node)
}

// evictOverBudget evicts the oldest entry of each shard in turn until the
// total cost fits the budget. keep is never evicted.
func (c *ShardedCache[K, V]) evictOverBudget(keep *lruNode[K, V]) {
	if c.maxCost == 0 {
		return
	}
	for c.totalCost.Load() > c.maxCost {
		if !c.evictOne(keep) {
			return
		}
	}
}

// evictOne removes the oldest entry of the next non-empty shard. It reports
// false when nothing but keep is left.
func (c *ShardedCache[K, V]) evictOne(keep *lruNode[K, V]) bool {
	start := c.nextEvict.Add(1)
	for i := range uint32(DefaultShardCount) {
		s := c.shards[(start+i)&shardMask]
		s.mu.Lock()
		victim := s.lru.Oldest()
		if victim == keep && victim != nil {
			victim = victim.prev
		}
		if victim != nil {
			s.removeLocked(c, victim)
			s.mu.Unlock()
			c.evictions.Add(1)
			return true
		}
		s.mu.Unlock()
	}
	return false
}

// removeLocked unlinks node. The caller holds s.mu.
func (s *shard[K, V]) removeLocked(c *ShardedCache[K, V], node *lruNode[K, V]) {
	s.lru.Remove(node)
	delete(s.entries, node.key)
	c.totalCost.Add(-node.cost)
}

// Delete removes key. It reports whether an entry was removed.
func (c *ShardedCache[K, V]) Delete(key K) bool {
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.entries[key]
	if !ok {
		return false
	}
	s.removeLocked(c, node)
	return true
}

// Clear removes all entries.
func (c *ShardedCache[K, V]) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		c.totalCost.Add(-s.lru.Cost())
		clear(s.entries)
		s.lru.Clear()
		s.mu.Unlock()
	}
}

// Len returns the number of entries across all shards.
func (c *ShardedCache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// Cost returns the summed cost of all entries.
func (c *ShardedCache[K, V]) Cost() int64 {
	var total int64
	for _, s := range c.shards {
		s.mu.Lock()
		total += s.lru.Cost()
		s.mu.Unlock()
	}
	return total
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Cost is the summed cost of all entries.
	Cost int64
	// Hits is the number of cache hits.
	Hits uint64
	// Misses is the number of cache misses.
	Misses uint64
	// HitRate is the cache hit rate 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of evicted entries.
	Evictions uint64
}

// Stats returns current cache statistics.
func (c *ShardedCache[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:       c.Len(),
		Cost:      c.Cost(),
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Evictions: c.evictions.Load(),
	}
}
