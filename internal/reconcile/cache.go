// Package reconcile keeps the cached album media consistent with server push
// events and local uploads.
package reconcile

import (
	"slices"
	"sync"

	"momentify/internal/models"
)

// Cache is the client side copy of one album's media, newest first.
type Cache struct {
	// fireMu orders listener delivery with the mutations that produced it.
	fireMu sync.Mutex

	mu          sync.Mutex
	items       []models.MediaItem
	initialized bool
	listeners   []func([]models.MediaItem)
}

// NewCache returns an uninitialized cache.
func NewCache() *Cache {
	return &Cache{}
}

// Replace installs a snapshot and marks the cache initialized.
func (c *Cache) Replace(items []models.MediaItem) {
	c.mutate(func() bool {
		c.items = append([]models.MediaItem(nil), items...)
		c.initialized = true
		return true
	})
}

// MergeIfAbsent prepends item unless an item with the same id is cached. It
// reports whether the cache changed. An uninitialized cache is left alone.
func (c *Cache) MergeIfAbsent(item models.MediaItem) bool {
	return c.mutate(func() bool {
		if !c.initialized {
			return false
		}
		for _, existing := range c.items {
			if existing.ID == item.ID {
				return false
			}
		}
		c.items = append([]models.MediaItem{item}, c.items...)
		return true
	})
}

// AppendAbsent adds a further page of older items at the end, skipping ids
// already cached. It returns the number of items added.
func (c *Cache) AppendAbsent(items []models.MediaItem) int {
	added := 0
	c.mutate(func() bool {
		if !c.initialized {
			return false
		}
		seen := make(map[string]struct{}, len(c.items))
		for _, existing := range c.items {
			seen[existing.ID] = struct{}{}
		}
		for _, item := range items {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			c.items = append(c.items, item)
			added++
		}
		return added > 0
	})
	return added
}

// Remove drops the item with id.
func (c *Cache) Remove(id string) bool {
	return c.mutate(func() bool {
		for i, existing := range c.items {
			if existing.ID == id {
				c.items = append(c.items[:i:i], c.items[i+1:]...)
				return true
			}
		}
		return false
	})
}

// Items returns a copy of the cached items.
func (c *Cache) Items() []models.MediaItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.MediaItem(nil), c.items...)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Initialized reports whether a snapshot has been installed.
func (c *Cache) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Reset discards the items and returns the cache to uninitialized.
func (c *Cache) Reset() {
	c.mutate(func() bool {
		c.items = nil
		c.initialized = false
		return true
	})
}

// OnChange registers fn to run after every mutation with the new contents.
// Listeners run outside the cache lock, one mutation at a time and in
// mutation order. They may read the cache but must not mutate it.
func (c *Cache) OnChange(fn func([]models.MediaItem)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// mutate applies fn under the lock and, when fn reports a change, delivers
// the resulting snapshot before the next mutation can start.
func (c *Cache) mutate(fn func() bool) bool {
	c.fireMu.Lock()
	defer c.fireMu.Unlock()

	c.mu.Lock()
	changed := fn()
	var snap []models.MediaItem
	var ls []func([]models.MediaItem)
	if changed && len(c.listeners) > 0 {
		snap = append([]models.MediaItem(nil), c.items...)
		ls = slices.Clone(c.listeners)
	}
	c.mu.Unlock()

	for _, l := range ls {
		l(snap)
	}
	return changed
}
