// Package cache holds collector responses for a bounded time.
package cache

import (
	"context"
	"log"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	gocache "github.com/patrickmn/go-cache"
)

// Cache is the contract collectors use for response caching.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// TTLCache is a thread-safe in-memory cache whose items expire after a fixed TTL.
type TTLCache struct {
	store *gocache.Cache
	ttl   time.Duration
}

// NewTTLCache creates a cache; expired items are purged every cleanup interval.
func NewTTLCache(ttl, cleanup time.Duration) *TTLCache {
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &TTLCache{store: gocache.New(ttl, cleanup), ttl: ttl}
}

// Get retrieves an item. Missing and expired items return a not-found error.
func (c *TTLCache) Get(ctx context.Context, key string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, errbuilder.WrapIfContextDone(ctx, err)
	}
	value, found := c.store.Get(key)
	if !found {
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item not found", nil))
	}
	return value, nil
}

// Set adds or replaces an item with the default TTL.
func (c *TTLCache) Set(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return errbuilder.WrapIfContextDone(ctx, err)
	}
	c.store.Set(key, value, gocache.DefaultExpiration)
	log.Printf("Cache item set (key: %s, ttl: %s)", key, c.ttl)
	return nil
}

// Len returns the number of items, including expired ones not yet purged.
func (c *TTLCache) Len() int {
	return c.store.ItemCount()
}

// Flush removes every item.
func (c *TTLCache) Flush() {
	c.store.Flush()
}
