package dataaccess

import (
	"strings"
	"sync"
	"time"
)

const keySep = "\x1f"

// Cache is the in-process result cache shared by queries and invalidated by
// mutations. Keys are tuples of strings joined internally.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	data      any
	fetchedAt time.Time
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

func JoinKey(parts []string) string { return strings.Join(parts, keySep) }

func (c *Cache) Get(key string) (any, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.data, e.fetchedAt, ok
}

func (c *Cache) Set(key string, data any, now time.Time) {
	c.mu.Lock()
	c.entries[key] = entry{data: data, fetchedAt: now}
	c.mu.Unlock()
}

// InvalidatePrefix drops every entry whose key tuple starts with prefix.
func (c *Cache) InvalidatePrefix(prefix []string) {
	p := JoinKey(prefix)
	c.mu.Lock()
	for k := range c.entries {
		if k == p || strings.HasPrefix(k, p+keySep) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
