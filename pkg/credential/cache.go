package credential

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// defaultMaxEntries and defaultTTL match the source's TTLCache(maxsize=100,
// ttl=3600): a process-wide cache refilled from the OS secret store on miss.
const (
	defaultMaxEntries = 100
	defaultTTL        = time.Hour
)

// Cache is a size-bounded, time-to-live cache of decoded credential blobs,
// keyed by logical service name. go-cache expires entries by TTL but has no
// built-in maximum-size eviction, so Cache layers a FIFO eviction order on
// top: the oldest still-tracked key is dropped first once the bound is hit.
type Cache struct {
	mu         sync.Mutex
	store      *gocache.Cache
	order      []string
	maxEntries int
}

// NewCache returns a Cache with the default 100-entry, 1-hour-TTL bound.
func NewCache() *Cache {
	return NewCacheWithLimits(defaultMaxEntries, defaultTTL)
}

// NewCacheWithLimits returns a Cache bounded to maxEntries with the given
// TTL, letting pkg/config override the source's fixed TTLCache(100, 3600)
// sizing.
func NewCacheWithLimits(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		store:      gocache.New(ttl, ttl/2),
		maxEntries: maxEntries,
	}
}

// Get returns the cached value for key, or ok=false on miss or expiry.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(key)
}

// Set stores value under key, evicting the oldest entry first if the cache
// is already at its size bound.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.store.Get(key); !found {
		if len(c.order) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			c.store.Delete(oldest)
		}
		c.order = append(c.order, key)
	}
	c.store.Set(key, value, gocache.DefaultExpiration)
}

// Clear drops every cached entry. Called explicitly on user logout per the
// source's clear_all_credentials.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Flush()
	c.order = nil
}

// Delete drops a single cached entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
