package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/promoscrape/config"
	"github.com/use-agent/promoscrape/models"
)

var promoSelectors = models.FieldSelectors{Title: ".title", Description: ".desc"}

// newTestCache returns a cache whose clock is controlled by the caller.
func newTestCache(t *testing.T, maxEntries int) (*SelectorCache, *time.Time) {
	t.Helper()
	c := New(config.CacheConfig{TTL: time.Hour, MaxEntries: maxEntries, MaxDistance: 3})
	require.NotNil(t, c)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestNew_Disabled(t *testing.T) {
	assert.Nil(t, New(config.CacheConfig{TTL: 0, MaxEntries: 10}))
	assert.Nil(t, New(config.CacheConfig{TTL: time.Hour, MaxEntries: 0}))

	var c *SelectorCache
	c.Store("https://a.example", 1, promoSelectors)
	_, ok := c.Lookup("https://a.example", 1)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestLookup_HitWithinDistance(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Store("https://shop.example/promos", 0b0000, promoSelectors)

	got, ok := c.Lookup("https://shop.example/promos", 0b0111)
	require.True(t, ok)
	assert.Equal(t, promoSelectors, got)

	_, ok = c.Lookup("https://shop.example/promos", 0b1111)
	assert.False(t, ok, "four flipped bits is a different layout")
}

func TestLookup_KeyNormalisation(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Store("https://Shop.Example/promos#top", 42, promoSelectors)

	_, ok := c.Lookup("https://shop.example/promos", 42)
	assert.True(t, ok)

	_, ok = c.Lookup("https://shop.example/other", 42)
	assert.False(t, ok)
}

func TestLookup_Expired(t *testing.T) {
	c, now := newTestCache(t, 10)
	c.Store("https://a.example", 7, promoSelectors)

	*now = now.Add(61 * time.Minute)
	_, ok := c.Lookup("https://a.example", 7)
	assert.False(t, ok)

	assert.Equal(t, 1, c.Sweep())
	assert.Zero(t, c.Len())
}

func TestStore_SkipsEmptySelectors(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Store("https://a.example", 1, models.FieldSelectors{})
	assert.Zero(t, c.Len())
}

func TestStore_EvictsOldest(t *testing.T) {
	c, now := newTestCache(t, 2)
	c.Store("https://a.example", 1, promoSelectors)
	*now = now.Add(time.Minute)
	c.Store("https://b.example", 1, promoSelectors)
	*now = now.Add(time.Minute)
	c.Store("https://c.example", 1, promoSelectors)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Lookup("https://a.example", 1)
	assert.False(t, ok)
	_, ok = c.Lookup("https://c.example", 1)
	assert.True(t, ok)
}

func TestStore_OverwriteDoesNotEvict(t *testing.T) {
	c, _ := newTestCache(t, 1)
	c.Store("https://a.example", 1, promoSelectors)
	c.Store("https://a.example", 2, models.FieldSelectors{Title: "h2"})

	got, ok := c.Lookup("https://a.example", 2)
	require.True(t, ok)
	assert.Equal(t, "h2", got.Title)
}
