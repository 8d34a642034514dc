// Package tokeninfo classifies Circles token addresses.
//
// Every hop in a pathfinder result names a token owner; before a path can
// be rewritten or encoded the engine must know whether each of those
// tokens is a native Circles token or an ERC20 wrapper, and who the
// backing avatar is. Classification rows come from the Circles index RPC
// or a mirrored database and are cached aggressively: rows never change
// once a token is registered.
package tokeninfo

import (
	"sync"

	"circles-flow/internal/domain"
	"circles-flow/internal/observability"
)

// DefaultCacheSize is the default bound for Cache.
const DefaultCacheSize = 1000

// Cache is a bounded token info cache. When full, the oldest inserted
// entry is evicted. Safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	rows      map[domain.Address]domain.TokenInfoRow
	order     []domain.Address
	capacity  int
	hits      uint64
	misses    uint64
	evictions uint64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// NewCache creates a cache bounded to capacity entries. Non-positive
// capacities fall back to DefaultCacheSize.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		rows:     make(map[domain.Address]domain.TokenInfoRow, capacity),
		capacity: capacity,
	}
}

// Get returns the cached row for a token, if present.
func (c *Cache) Get(token domain.Address) (domain.TokenInfoRow, bool) {
	c.mu.Lock()
	row, ok := c.rows[token]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if ok {
		observability.RecordCacheHit()
	} else {
		observability.RecordCacheMiss()
	}
	return row, ok
}

// Put inserts a row, evicting the oldest entry if the cache is full.
func (c *Cache) Put(row domain.TokenInfoRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(row)
}

// PutBatch inserts multiple rows under one lock acquisition.
func (c *Cache) PutBatch(rows []domain.TokenInfoRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range rows {
		c.put(row)
	}
}

func (c *Cache) put(row domain.TokenInfoRow) {
	if _, exists := c.rows[row.Token]; exists {
		c.rows[row.Token] = row
		return
	}

	if len(c.rows) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.rows, oldest)
		c.evictions++
		observability.RecordCacheEviction()
	}

	c.rows[row.Token] = row
	c.order = append(c.order, row.Token)
}

// Clear drops all entries. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = make(map[domain.Address]domain.TokenInfoRow, c.capacity)
	c.order = nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Size:      len(c.rows),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
