package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a thread-safe in-memory cache with per-item expiration
type Cache struct {
	items             *gocache.Cache
	defaultExpiration time.Duration
}

// New creates a cache whose items expire after ttl; expired items are purged every cleanupInterval
func New(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{
		items:             gocache.New(ttl, cleanupInterval),
		defaultExpiration: ttl,
	}
}

// Set adds an item to the cache with the default expiration
func (c *Cache) Set(key string, value any) {
	c.items.Set(key, value, gocache.DefaultExpiration)
}

// SetWithExpiration adds an item to the cache with a specific expiration time.
// A zero duration keeps the item until it is deleted.
func (c *Cache) SetWithExpiration(key string, value any, d time.Duration) {
	if d <= 0 {
		d = gocache.NoExpiration
	}
	c.items.Set(key, value, d)
}

// Get retrieves an unexpired item from the cache
func (c *Cache) Get(key string) (any, bool) {
	return c.items.Get(key)
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.items.Delete(key)
}

// Flush removes all items from the cache
func (c *Cache) Flush() {
	c.items.Flush()
}

// Count returns the number of items in the cache (including expired items not yet purged)
func (c *Cache) Count() int {
	return c.items.ItemCount()
}

// DefaultTTL returns the expiration applied by Set
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultExpiration
}

// SetOnEvicted sets the callback to be called when an item is evicted
func (c *Cache) SetOnEvicted(f func(string, any)) {
	c.items.OnEvicted(f)
}

// GetAs fetches key and asserts it to T
func GetAs[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
