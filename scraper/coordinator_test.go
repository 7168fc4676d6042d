package scraper_test

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/promoscrape/cleaner"
	"github.com/use-agent/promoscrape/config"
	"github.com/use-agent/promoscrape/models"
	"github.com/use-agent/promoscrape/scraper"
	"github.com/use-agent/promoscrape/scraper/scrapertest"
)

func batchConfig() config.BatchConfig {
	return config.BatchConfig{MaxConcurrentSessions: 10, Timeout: time.Minute}
}

func TestCoordinator_OneNavigationTimeout(t *testing.T) {
	l := scrapertest.NewLauncher(map[string]scrapertest.Site{
		shopURL: {HTML: promoPage},
		slowURL: {NavigateErr: context.DeadlineExceeded},
	})
	c := scraper.NewCoordinator(newPipeline(l, scrapertest.Fixed(promoSelectors)), batchConfig())

	res, err := c.Run(context.Background(), []string{shopURL, slowURL})

	require.NoError(t, err)
	assert.Len(t, res.Promotions, 3)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], slowURL), res.Errors[0])
	assert.Contains(t, res.Errors[0], models.ErrCodeBrowser)
	assert.GreaterOrEqual(t, res.ExecutionTimeMs, int64(0))

	st := l.Stats()
	assert.Equal(t, 2, st.Launched)
	assert.Equal(t, 2, st.BrowsersClosed)
	assert.Zero(t, c.ActiveSessions())
}

func TestCoordinator_AllSucceedHasNoErrors(t *testing.T) {
	other := "https://other.example/"
	l := scrapertest.NewLauncher(map[string]scrapertest.Site{
		shopURL: {HTML: promoPage},
		other:   {HTML: promoPage},
	})
	c := scraper.NewCoordinator(newPipeline(l, scrapertest.Fixed(promoSelectors)), batchConfig())

	res, err := c.Run(context.Background(), []string{shopURL, other})

	require.NoError(t, err)
	assert.Len(t, res.Promotions, 6)
	assert.Nil(t, res.Errors)
	for _, p := range res.Promotions {
		assert.Contains(t, []string{shopURL, other}, p.URL)
	}
}

func TestCoordinator_AllFatalIsBatchError(t *testing.T) {
	l := scrapertest.NewLauncher(map[string]scrapertest.Site{
		shopURL: {HTML: promoPage},
		slowURL: {HTML: promoPage},
	})
	inf := &scrapertest.Inferrer{Fn: func(cleaner.Chunk) (models.FieldSelectors, error) {
		return models.FieldSelectors{}, scrapertest.ErrUnavailable
	}}
	c := scraper.NewCoordinator(newPipeline(l, inf), batchConfig())

	res, err := c.Run(context.Background(), []string{shopURL, slowURL})

	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, models.IsFatal(err))
}

func TestCoordinator_PartialFatalIsReported(t *testing.T) {
	l := scrapertest.NewLauncher(map[string]scrapertest.Site{
		shopURL: {HTML: promoPage},
		slowURL: {NavigateErr: context.DeadlineExceeded},
	})
	inf := &scrapertest.Inferrer{Fn: func(cleaner.Chunk) (models.FieldSelectors, error) {
		return models.FieldSelectors{}, scrapertest.ErrUnavailable
	}}
	c := scraper.NewCoordinator(newPipeline(l, inf), batchConfig())

	res, err := c.Run(context.Background(), []string{shopURL, slowURL})

	require.NoError(t, err, "a browser failure means not every session failed on inference")
	assert.Empty(t, res.Promotions)
	assert.Len(t, res.Errors, 2)
}

func TestCoordinator_BoundsConcurrency(t *testing.T) {
	sites := make(map[string]scrapertest.Site)
	var urls []string
	for i := 0; i < 6; i++ {
		u := fmt.Sprintf("https://shop%d.example/", i)
		sites[u] = scrapertest.Site{HTML: promoPage}
		urls = append(urls, u)
	}
	l := scrapertest.NewLauncher(sites)

	var (
		c       *scraper.Coordinator
		maxSeen atomic.Int32
	)
	inf := &scrapertest.Inferrer{Fn: func(cleaner.Chunk) (models.FieldSelectors, error) {
		n := int32(c.ActiveSessions())
		for {
			cur := maxSeen.Load()
			if n <= cur || maxSeen.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return promoSelectors, nil
	}}
	c = scraper.NewCoordinator(newPipeline(l, inf), config.BatchConfig{MaxConcurrentSessions: 2, Timeout: time.Minute})

	res, err := c.Run(context.Background(), urls)

	require.NoError(t, err)
	assert.Len(t, res.Promotions, 18)
	assert.LessOrEqual(t, maxSeen.Load(), int32(2))
	assert.Equal(t, 2, c.MaxSessions())
}

func TestCoordinator_BatchTimeoutCancelsSessions(t *testing.T) {
	l := scrapertest.NewLauncher(map[string]scrapertest.Site{
		shopURL: {HTML: promoPage},
		slowURL: {Hang: true},
	})
	c := scraper.NewCoordinator(newPipeline(l, scrapertest.Fixed(promoSelectors)),
		config.BatchConfig{MaxConcurrentSessions: 2, Timeout: 100 * time.Millisecond})

	start := time.Now()
	res, err := c.Run(context.Background(), []string{shopURL, slowURL})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Len(t, res.Promotions, 3)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], slowURL)
	assert.Equal(t, 2, l.Stats().BrowsersClosed)
}

func TestCoordinator_EmptyBatch(t *testing.T) {
	c := scraper.NewCoordinator(newPipeline(scrapertest.NewLauncher(nil), scrapertest.Fixed(promoSelectors)), batchConfig())

	res, err := c.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, res.Promotions)
	assert.Nil(t, res.Errors)
}
