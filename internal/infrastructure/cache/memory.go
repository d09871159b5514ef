package cache

import (
	"context"
	"sync"
	"time"

	"github.com/skinmatch/backend/internal/domain"
)

// cacheItem is a single cached value with its expiration
type cacheItem struct {
	value      []byte
	expiration time.Time
}

// MemoryCache is a thread-safe in-memory result cache with TTL support.
// Used in development and tests; production deployments use Redis.
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
}

// NewMemoryCache creates an in-memory cache and starts a background sweep
// that removes expired entries every 10 minutes.
func NewMemoryCache() *MemoryCache {
	cache := &MemoryCache{
		data: make(map[string]cacheItem),
	}

	go cache.cleanupExpired()

	return cache
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists || time.Now().After(item.expiration) {
		return nil, domain.ErrCacheMiss
	}

	return item.value, nil
}

// Set stores a value in the cache with TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Copy so callers can't mutate the stored slice.
	stored := make([]byte, len(value))
	copy(stored, value)

	c.data[key] = cacheItem{
		value:      stored,
		expiration: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// cleanupExpired removes expired entries from the cache periodically.
func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		now := time.Now()
		for key, item := range c.data {
			if now.After(item.expiration) {
				delete(c.data, key)
			}
		}
		c.mutex.Unlock()
	}
}

// Size returns the current number of items in the cache (for debugging/monitoring)
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}
