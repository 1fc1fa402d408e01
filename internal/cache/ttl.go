// Package cache is a small in-process cache with per-entry expiry.
package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	value      V
	expiration int64
}

// TTL is safe for concurrent use. Expired entries are dropped lazily on Get
// and on Set.
type TTL[V any] struct {
	items map[string]item[V]
	mu    sync.RWMutex
	now   func() time.Time
}

func NewTTL[V any]() *TTL[V] {
	return &TTL[V]{
		items: make(map[string]item[V]),
		now:   time.Now,
	}
}

func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UnixNano()
	for k, it := range c.items {
		if now > it.expiration {
			delete(c.items, k)
		}
	}
	c.items[key] = item[V]{value: value, expiration: now + int64(ttl)}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	it, found := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !found || c.now().UnixNano() > it.expiration {
		return zero, false
	}
	return it.value, true
}

func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
