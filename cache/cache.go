// Package cache remembers inferred selectors per page so a repeat scrape of
// an unchanged layout can skip selector inference.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/promoscrape/config"
	"github.com/use-agent/promoscrape/metrics"
	"github.com/use-agent/promoscrape/models"
	"github.com/use-agent/promoscrape/simhash"
)

// entry holds cached selectors with the layout they were inferred from.
type entry struct {
	selectors models.FieldSelectors
	layout    uint64
	createdAt time.Time
}

// SelectorCache is an in-memory cache of combined selectors keyed by page
// URL. A hit requires the stored layout fingerprint to be within
// maxDistance bits of the current one. It is safe for concurrent use, and a
// nil *SelectorCache is a valid cache that never hits.
type SelectorCache struct {
	mu          sync.RWMutex
	store       map[string]*entry
	ttl         time.Duration
	maxEntries  int
	maxDistance int
	now         func() time.Time
}

// New creates a SelectorCache from cfg. It returns nil when the TTL or the
// capacity is not positive, which disables caching.
func New(cfg config.CacheConfig) *SelectorCache {
	if cfg.TTL <= 0 || cfg.MaxEntries <= 0 {
		return nil
	}
	return &SelectorCache{
		store:       make(map[string]*entry),
		ttl:         cfg.TTL,
		maxEntries:  cfg.MaxEntries,
		maxDistance: cfg.MaxDistance,
		now:         time.Now,
	}
}

// Key normalises a page URL (lower-case scheme and host, no fragment) and
// hashes it.
func Key(pageURL string) string {
	norm := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		u.Fragment = ""
		norm = u.String()
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the selectors stored for pageURL if they are fresh and were
// inferred from a layout similar to layout.
func (c *SelectorCache) Lookup(pageURL string, layout uint64) (models.FieldSelectors, bool) {
	if c == nil {
		return models.FieldSelectors{}, false
	}

	c.mu.RLock()
	e, ok := c.store[Key(pageURL)]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		metrics.SelectorCache.WithLabelValues("miss").Inc()
		return models.FieldSelectors{}, false
	}
	if !simhash.Similar(e.layout, layout, c.maxDistance) {
		slog.Debug("cached selectors skipped, layout changed",
			"url", pageURL, "distance", simhash.Distance(e.layout, layout))
		metrics.SelectorCache.WithLabelValues("miss").Inc()
		return models.FieldSelectors{}, false
	}

	metrics.SelectorCache.WithLabelValues("hit").Inc()
	return e.selectors, true
}

// Store records selectors for pageURL. Empty selector sets are not cached.
// If the cache is at capacity, the oldest entry is evicted.
func (c *SelectorCache) Store(pageURL string, layout uint64, selectors models.FieldSelectors) {
	if c == nil || selectors.IsEmpty() {
		return
	}

	key := Key(pageURL)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.store[key] = &entry{
		selectors: selectors,
		layout:    layout,
		createdAt: c.now(),
	}
}

// Len returns the number of cached entries, expired ones included.
func (c *SelectorCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Sweep deletes expired entries and returns how many were removed.
func (c *SelectorCache) Sweep() int {
	if c == nil {
		return 0
	}
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
			removed++
		}
	}
	return removed
}

// Janitor sweeps expired entries every interval until ctx is done.
func (c *SelectorCache) Janitor(ctx context.Context, interval time.Duration) {
	if c == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				slog.Debug("selector cache swept", "removed", n)
			}
		}
	}
}

func (c *SelectorCache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range c.store {
		if oldestKey == "" || e.createdAt.Before(oldest) {
			oldestKey, oldest = k, e.createdAt
		}
	}
	delete(c.store, oldestKey)
}
