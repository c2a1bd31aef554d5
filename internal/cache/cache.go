// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache provides a generic, thread-safe LRU cache.
//
// Checkers use it to memoize the outcome of slow external lookups (URL
// fetches, identifier conversions). Entries are pure functions of their
// key, so any deterministic eviction policy is acceptable; least
// recently used keeps hot URLs resident across records.
package cache

import (
	"container/list"
	"sync"
)

type entry[V any] struct {
	key   string
	value V
}

// Cache is a bounded LRU keyed by string. The zero value is not usable;
// construct with New. Safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
	hits    uint64
	misses  uint64
}

// New returns a cache bounded at maxSize entries. A maxSize of zero or
// less falls back to 1.
func New[V any](maxSize int) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache[V]{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get retrieves the value for key and marks it recently used. The stored
// value is returned verbatim; callers that need to mutate it (e.g. to
// rewrite a location) must copy first.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return elem.Value.(*entry[V]).value, true
}

// Set stores value under key, evicting the least recently used entry
// when the bound is exceeded.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*entry[V]).value = value
		return
	}

	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value})

	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[V]).key)
	}
}

// Clear removes all entries. Hit/miss counters survive.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the current entry count.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the cumulative hit and miss counts.
func (c *Cache[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
