package cache

import (
	"sync"

	"github.com/google/uuid"

	"github.com/OCAP2/markerpack/pkg/core"
)

// Stamp identifies the inputs a resolution was computed from. Any template
// change along the ancestor chain or on the entity itself changes the stamp.
type Stamp struct {
	Category core.CategoryID
	Depth    int
	Chain    uint64 // digest of the ancestor (id, version) chain
	Override uint64
}

type resolvedEntry struct {
	stamp    Stamp
	resolved core.Resolved
}

// ResolvedCache memoizes effective attribute sets per marker/trail guid.
// An entry is only returned while its stamp still matches.
type ResolvedCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]resolvedEntry
	hits    SafeCounter
	misses  SafeCounter
}

func NewResolvedCache() *ResolvedCache {
	return &ResolvedCache{
		entries: make(map[uuid.UUID]resolvedEntry),
	}
}

func (c *ResolvedCache) Get(guid uuid.UUID, stamp Stamp) (core.Resolved, bool) {
	c.mu.RLock()
	e, ok := c.entries[guid]
	c.mu.RUnlock()
	if !ok || e.stamp != stamp {
		c.misses.Inc()
		return core.Resolved{}, false
	}
	c.hits.Inc()
	return e.resolved, true
}

func (c *ResolvedCache) Set(guid uuid.UUID, stamp Stamp, r core.Resolved) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[guid] = resolvedEntry{stamp: stamp, resolved: r}
}

func (c *ResolvedCache) Delete(guid uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, guid)
}

func (c *ResolvedCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uuid.UUID]resolvedEntry)
}

func (c *ResolvedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts since creation.
func (c *ResolvedCache) Stats() (hits, misses int) {
	return c.hits.Value(), c.misses.Value()
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
