// Package cache provides a sharded, cost-bounded LRU cache.
//
// The texture loader keeps decoded pixel data here so that reloading a
// file does not decode it again.
//
//	c := cache.NewSharded[string, *texture.Data](cache.StringHasher,
//	    cache.WithMaxCost(64<<20),
//	    cache.WithCost(func(d *texture.Data) int64 { return int64(d.Size()) }),
//	)
//	c.Set("brick.png", data)
//	d, ok := c.Get("brick.png")
//
// # Eviction
//
// Each of the 16 shards evicts its least recently used entries while it
// holds more than its share of the entry capacity or of the cost budget.
//
// # Thread Safety
//
// ShardedCache is safe for concurrent use and must not be copied after
// creation.
package cache
