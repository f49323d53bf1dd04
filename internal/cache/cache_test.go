package cache

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/markerpack/pkg/core"
)

func TestResolvedCache_SetAndGet(t *testing.T) {
	cache := NewResolvedCache()
	guid := uuid.New()
	stamp := Stamp{Category: 3, Depth: 2, Chain: 5, Override: 1}

	cache.Set(guid, stamp, core.Resolved{Alpha: 0.5})

	got, ok := cache.Get(guid, stamp)
	require.True(t, ok)
	assert.Equal(t, float32(0.5), got.Alpha)
	assert.Equal(t, 1, cache.Len())
}

func TestResolvedCache_StaleStampMisses(t *testing.T) {
	cache := NewResolvedCache()
	guid := uuid.New()
	cache.Set(guid, Stamp{Chain: 1}, core.Resolved{Alpha: 0.5})

	_, ok := cache.Get(guid, Stamp{Chain: 2})
	assert.False(t, ok)

	_, ok = cache.Get(uuid.New(), Stamp{Chain: 1})
	assert.False(t, ok)

	hits, misses := cache.Stats()
	assert.Equal(t, 0, hits)
	assert.Equal(t, 2, misses)
}

func TestResolvedCache_DeleteAndReset(t *testing.T) {
	cache := NewResolvedCache()
	a, b := uuid.New(), uuid.New()
	cache.Set(a, Stamp{}, core.Resolved{})
	cache.Set(b, Stamp{}, core.Resolved{})

	cache.Delete(a)
	_, ok := cache.Get(a, Stamp{})
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Len())

	cache.Reset()
	assert.Equal(t, 0, cache.Len())
}

func TestResolvedCache_Concurrent(t *testing.T) {
	cache := NewResolvedCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guid := uuid.New()
			cache.Set(guid, Stamp{}, core.Resolved{})
			cache.Get(guid, Stamp{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, cache.Len())
}

func TestSafeCounter(t *testing.T) {
	var c SafeCounter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, c.Value())

	c.Set(7)
	assert.Equal(t, 7, c.Value())
}
