package cache

import (
	"context"
	"sync"
	"time"

	"linkgate/internal/models"
)

type memoryEntry struct {
	link     *models.Link
	cachedAt time.Time
}

// MemoryLinkCache is the in-process fallback used when Redis is not
// configured, and by tests. Expiry is lazy: stale entries are dropped on
// the next Lookup.
type MemoryLinkCache struct {
	store sync.Map // map[shortCode]*memoryEntry
	ttl   time.Duration
}

func NewMemoryLinkCache(ttl time.Duration) *MemoryLinkCache {
	return &MemoryLinkCache{ttl: ttl}
}

func (c *MemoryLinkCache) Lookup(_ context.Context, shortCode string) (*models.Link, bool) {
	val, ok := c.store.Load(shortCode)
	if !ok {
		return nil, false
	}
	entry := val.(*memoryEntry)
	if time.Since(entry.cachedAt) > c.ttl {
		c.store.Delete(shortCode)
		return nil, false
	}
	return entry.link, true
}

func (c *MemoryLinkCache) Fill(_ context.Context, shortCode string, link *models.Link) {
	c.store.Store(shortCode, &memoryEntry{link: link, cachedAt: time.Now()})
}

func (c *MemoryLinkCache) Invalidate(_ context.Context, shortCode string) {
	c.store.Delete(shortCode)
}
