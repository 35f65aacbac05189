package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewWithConfig[string, int](CacheConfig{Capacity: 2})
	require.NoError(t, err)

	c.Put("a", 1, 1)
	c.Put("b", 2, 1)
	_, _ = c.Get("a")
	c.Put("c", 3, 1)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUWeightLimit(t *testing.T) {
	c, err := NewWithConfig[string, string](CacheConfig{MaxWeight: 10})
	require.NoError(t, err)

	c.Put("a", "x", 4)
	c.Put("b", "y", 4)
	c.Put("c", "z", 5)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 9, c.Weight())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestLRUTTLExpiry(t *testing.T) {
	now := time.Unix(0, 0)
	c, err := NewWithConfig[string, int](CacheConfig{Capacity: 4, TTL: time.Minute, Now: func() time.Time { return now }})
	require.NoError(t, err)

	c.Put("k", 1, 1)
	now = now.Add(30 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRUDeleteAndPurge(t *testing.T) {
	c, err := NewWithConfig[string, int](CacheConfig{Capacity: 4})
	require.NoError(t, err)
	c.Put("a", 1, 1)
	c.Put("b", 2, 1)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Weight())
}

func TestLRURequiresLimit(t *testing.T) {
	_, err := NewWithConfig[string, int](CacheConfig{})
	assert.Error(t, err)
}
