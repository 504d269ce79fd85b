package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheBasic(t *testing.T) {
	c := NewTTLCache[int, string](10, time.Hour)
	c.Set(1, "a")
	c.Set(1, "b") // 覆盖

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = c.Get(2)
	assert.False(t, ok)

	c.Delete(1)
	_, ok = c.Get(1)
	assert.False(t, ok)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[int, string](10, 10*time.Millisecond)
	c.Set(1, "a")

	_, ok := c.Get(1)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheEviction(t *testing.T) {
	// 容量 2，写入第三条后最久未用的被挤掉
	c := NewTTLCache[int, int](2, time.Hour)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok)
}
