// Package cache implements the compiled-expression cache described in
// spec §3/§9: get promotes an entry on hit, put evicts the least-recently
// used entry once the optional bound is reached. Built on
// github.com/hashicorp/golang-lru/v2 rather than hand-rolled, per the
// design notes' explicit preference for a proper LRU structure.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is used when a context is created without an explicit
// cacheSize (spec §6 createContext({cacheSize?})).
const DefaultSize = 256

// Cache maps expression source text to a compiled root node of type T.
type Cache[T any] struct {
	lru *lru.Cache[string, T]
}

// New creates a Cache bounded to size entries. size <= 0 falls back to
// DefaultSize; golang-lru requires a strictly positive capacity.
func New[T any](size int) *Cache[T] {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, T](size)
	if err != nil {
		// size is always > 0 here, so lru.New cannot fail in practice.
		panic(err)
	}
	return &Cache[T]{lru: c}
}

// Get looks up expr, promoting it to most-recently-used on a hit.
func (c *Cache[T]) Get(expr string) (T, bool) {
	return c.lru.Get(expr)
}

// Put inserts or replaces the compiled node for expr, evicting the
// least-recently-used entry if the cache is at capacity.
func (c *Cache[T]) Put(expr string, compiled T) {
	c.lru.Add(expr, compiled)
}

// Len returns the number of cached entries.
func (c *Cache[T]) Len() int {
	return c.lru.Len()
}

// Keys returns the cached expression texts in least- to most-recently-used
// order, for GetCacheStats (spec §6).
func (c *Cache[T]) Keys() []string {
	return c.lru.Keys()
}

// Purge removes every cached entry.
func (c *Cache[T]) Purge() {
	c.lru.Purge()
}
