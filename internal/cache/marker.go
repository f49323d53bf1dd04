package cache

import (
	"strings"
	"sync"

	"github.com/OCAP2/markerpack/pkg/core"
)

// PathCache maps lowercased category paths ("tyria/vista") to category ids.
// Packs reference toggle categories by path, so lookups repeat every frame.
type PathCache struct {
	mu    sync.RWMutex
	paths map[string]core.CategoryID
}

// NewPathCache creates a new PathCache
func NewPathCache() *PathCache {
	return &PathCache{
		paths: make(map[string]core.CategoryID),
	}
}

func normalize(path string) string {
	return strings.ToLower(strings.Trim(path, "/"))
}

// Get retrieves a category ID by path
func (c *PathCache) Get(path string) (core.CategoryID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.paths[normalize(path)]
	return id, ok
}

// Set stores a category ID by path
func (c *PathCache) Set(path string, id core.CategoryID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[normalize(path)] = id
}

// Reset clears all paths. Any structural change to the tree invalidates them.
func (c *PathCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = make(map[string]core.CategoryID)
}
