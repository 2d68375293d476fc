// Package mergecache provides a bounded, thread-safe memoization cache for
// deserialized records keyed by (container, version). merge.Driver uses one
// shared cache across every container in a registry so that re-merging an
// object whose frontier hasn't advanced doesn't pay the deserialization
// cost of Serializer.FromDataMessage twice.
//
// This is the same LRU-plus-TTL shape the wider codebase uses for its
// query plan cache, adapted to a different key and value type and with the
// global singleton dropped in favor of explicit construction.
package mergecache

import (
	"container/list"
	"sync"
	"time"

	"github.com/lineagedb/lineage/collab"
	"github.com/lineagedb/lineage/wire"
)

// Key identifies one memoized deserialization.
type Key struct {
	ContainerID string
	Version     wire.UUID
}

// Cache is a thread-safe LRU cache of collab.Record values.
type Cache struct {
	mu sync.RWMutex

	maxSize int
	ttl     time.Duration

	list  *list.List
	items map[Key]*list.Element

	hits   uint64
	misses uint64
}

type entry struct {
	key       Key
	value     collab.Record
	expiresAt time.Time
}

// New creates a cache bounded to maxSize entries, each expiring ttl after
// insertion (ttl <= 0 disables expiration; only LRU eviction applies).
func New(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		list:    list.New(),
		items:   make(map[Key]*list.Element, maxSize),
	}
}

// Get returns the memoized record for key, if present and not expired.
func (c *Cache) Get(key Key) (collab.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	e := elem.Value.(*entry)
	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}

	c.list.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Put memoizes value under key, evicting the least recently used entry if
// the cache is at capacity.
func (c *Cache) Put(key Key, value collab.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		if c.ttl > 0 {
			e.expiresAt = time.Now().Add(c.ttl)
		}
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		c.evictOldest()
	}

	e := &entry{key: key, value: value}
	if c.ttl > 0 {
		e.expiresAt = time.Now().Add(c.ttl)
	}
	c.items[key] = c.list.PushFront(e)
}

// InvalidateContainer drops every memoized record for containerID. Used
// when a container's frontier changes shape in a way that could make a
// cached deserialization stale (e.g. a cached record rewritten in place by
// a caller; merge.Driver's reconciliation sets lineage fields on the record
// the Merger returns, which may be a cached one).
func (c *Cache) InvalidateContainer(containerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.list.Front(); e != nil; {
		next := e.Next()
		if e.Value.(*entry).key.ContainerID == containerID {
			c.removeElement(e)
		}
		e = next
	}
}

// Len returns the number of memoized entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Len()
}

// Stats reports cache hit/miss counters.
type Stats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
}

// Stats returns a snapshot of cache performance counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Size:    c.list.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

func (c *Cache) hit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Cache) miss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func (c *Cache) evictOldest() {
	if e := c.list.Back(); e != nil {
		c.removeElement(e)
	}
}

// removeElement removes an element from the cache. Caller must hold mu.
func (c *Cache) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	delete(c.items, elem.Value.(*entry).key)
}
