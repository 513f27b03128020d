package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type localItem[V any] struct {
	value     V
	expiresAt time.Time
}

// Local is a bounded in-process cache whose entries expire after a TTL.
type Local[K comparable, V any] struct {
	lru *lru.Cache[K, localItem[V]]
	ttl time.Duration
	now func() time.Time
}

// NewLocal returns a cache holding at most size entries for ttl each.
func NewLocal[K comparable, V any](size int, ttl time.Duration) (*Local[K, V], error) {
	l, err := lru.New[K, localItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &Local[K, V]{lru: l, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached value for key if present and fresh.
func (c *Local[K, V]) Get(key K) (V, bool) {
	item, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(item.expiresAt) {
		c.lru.Remove(key)
		var zero V
		return zero, false
	}
	return item.value, true
}

// Set stores value under key.
func (c *Local[K, V]) Set(key K, value V) {
	c.lru.Add(key, localItem[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Delete drops key.
func (c *Local[K, V]) Delete(key K) {
	c.lru.Remove(key)
}
