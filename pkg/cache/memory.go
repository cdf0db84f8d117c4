package cache

import (
	"context"
	"sync"
	"time"

	"github.com/nexbridge/bridge-middleware/pkg/quote"
)

type memoryEntry struct {
	result    *quote.RankedResult
	expiresAt time.Time
}

// MemoryCache is a process-local ResultCache for single-instance deployments
// and tests. Expired entries are dropped lazily on access.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*quote.RankedResult, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrMiss
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, ErrMiss
	}
	return entry.result, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, result *quote.RankedResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{result: result, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}
