package credential

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSetRoundTrips(t *testing.T) {
	c := NewCache()
	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCacheMissReturnsFalse(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestCacheEvictsOldestPastMaxEntries(t *testing.T) {
	c := NewCache()
	c.maxEntries = 3

	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest entry should have been evicted")
	for i := 1; i < 4; i++ {
		_, ok := c.Get(fmt.Sprintf("k%d", i))
		assert.True(t, ok)
	}
}

func TestCacheClearRemovesEverything(t *testing.T) {
	c := NewCache()
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCacheDeleteRemovesSingleEntry(t *testing.T) {
	c := NewCache()
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}
