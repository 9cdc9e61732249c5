package cache

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	visibilitydomain "github.com/shi0417/kongfuworld-champion/internal/visibility/domain"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Minute)
	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, got)

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestTTLCacheZeroTTLIsNoop(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, 0)
	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Minute)
	c.Delete("a")
	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestVisibilityCacheKeysPerReader(t *testing.T) {
	c := NewVisibilityCache()
	reader := snowflake.ID(42)

	c.Set(7, nil, visibilitydomain.Result{VisibleMaxChapter: 100})
	c.Set(7, &reader, visibilitydomain.Result{VisibleMaxChapter: 110})

	anon, ok := c.Get(7, nil)
	require.True(t, ok)
	require.Equal(t, int64(100), anon.VisibleMaxChapter)

	entitled, ok := c.Get(7, &reader)
	require.True(t, ok)
	require.Equal(t, int64(110), entitled.VisibleMaxChapter)

	other := snowflake.ID(43)
	_, ok = c.Get(7, &other)
	require.False(t, ok)
}

func TestVisibilityCacheInvalidate(t *testing.T) {
	c := NewVisibilityCache()
	reader := snowflake.ID(42)

	c.Set(7, &reader, visibilitydomain.Result{VisibleMaxChapter: 110})
	c.Invalidate(7, &reader)

	_, ok := c.Get(7, &reader)
	require.False(t, ok)
}
