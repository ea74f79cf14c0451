package canonicalcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fhirway/fhirway/internal/platform/canonicalcache"
)

func TestLRUCache_PutAndGet(t *testing.T) {
	c := canonicalcache.New[string, int](3)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	val, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, val)
	assert.Equal(t, 3, c.Len())
}

func TestLRUCache_GetMissing(t *testing.T) {
	c := canonicalcache.New[string, int](2)

	val, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, val)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := canonicalcache.New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // touch a, so b becomes the LRU entry
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_Invalidate(t *testing.T) {
	c := canonicalcache.New[string, int](2)

	c.Put("a", 1)
	c.Invalidate("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRUCache_PanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() {
		canonicalcache.New[string, int](0)
	})
}
