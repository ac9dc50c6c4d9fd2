package marks

import (
	"sync"

	"optionflow/models"
)

// Cache is the shared mark store, keyed by "<venue>:<symbol>". It is owned by
// the orchestrating component and injected into whatever needs marks; it is
// never package-global. Writers merge whole result sets in one step, so a
// concurrent reader observes either the prior contents or the fully-updated
// contents, never a partial mix from an in-progress refresh.
type Cache struct {
	mu    sync.RWMutex
	items map[string]models.MarkInfo
}

func NewCache() *Cache {
	return &Cache{items: make(map[string]models.MarkInfo)}
}

// Get returns the mark stored under key.
func (c *Cache) Get(key string) (models.MarkInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.items[key]
	return info, ok
}

// MergeAll applies every update atomically with respect to readers.
func (c *Cache) MergeAll(updates map[string]models.MarkInfo) {
	if len(updates) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, info := range updates {
		c.items[key] = info
	}
}

// Snapshot copies the current contents for presentation layers.
func (c *Cache) Snapshot() map[string]models.MarkInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.MarkInfo, len(c.items))
	for key, info := range c.items {
		out[key] = info
	}
	return out
}

// Len reports the number of cached marks.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
