// Package scrapertest provides an in-memory browser and inference service
// for tests of code built on package scraper.
package scrapertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/use-agent/promoscrape/cleaner"
	"github.com/use-agent/promoscrape/extractor"
	"github.com/use-agent/promoscrape/models"
	"github.com/use-agent/promoscrape/scraper"
)

// Site is what the fake browser serves for one URL.
type Site struct {
	HTML string
	// NavigateErr is returned by Navigate.
	NavigateErr error
	// Hang blocks Navigate until the context is done.
	Hang bool
	// Panic makes HTML panic after navigation.
	Panic bool
}

// Launcher serves Sites from memory. The zero value serves nothing; unknown
// URLs fail navigation.
type Launcher struct {
	mu        sync.Mutex
	Sites     map[string]Site
	LaunchErr error

	// NewPageErr is returned by Browser.NewPage.
	NewPageErr error
	// CloseErr is returned by Page.Close and Browser.Close. The close is
	// still counted.
	CloseErr error

	launched       atomic.Int32
	browsersClosed atomic.Int32
	pagesOpened    atomic.Int32
	pagesClosed    atomic.Int32
}

// NewLauncher returns a Launcher serving sites.
func NewLauncher(sites map[string]Site) *Launcher {
	return &Launcher{Sites: sites}
}

// Launch implements scraper.Launcher.
func (l *Launcher) Launch(ctx context.Context) (scraper.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	l.launched.Add(1)
	return &browser{l: l}, nil
}

// Stats reports how many browsers were launched and how many browsers and
// pages were closed.
type Stats struct {
	Launched       int
	BrowsersClosed int
	PagesOpened    int
	PagesClosed    int
}

// Stats returns a snapshot of the counters.
func (l *Launcher) Stats() Stats {
	return Stats{
		Launched:       int(l.launched.Load()),
		BrowsersClosed: int(l.browsersClosed.Load()),
		PagesOpened:    int(l.pagesOpened.Load()),
		PagesClosed:    int(l.pagesClosed.Load()),
	}
}

func (l *Launcher) site(url string) (Site, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.Sites[url]
	return s, ok
}

type browser struct{ l *Launcher }

func (b *browser) NewPage(context.Context) (scraper.Page, error) {
	if b.l.NewPageErr != nil {
		return nil, b.l.NewPageErr
	}
	b.l.pagesOpened.Add(1)
	return &page{l: b.l}, nil
}

func (b *browser) Close() error {
	b.l.browsersClosed.Add(1)
	return b.l.CloseErr
}

type page struct {
	l    *Launcher
	site Site
}

func (p *page) Navigate(ctx context.Context, url string) error {
	s, ok := p.l.site(url)
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED: %s", url)
	}
	if s.Hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	p.site = s
	return nil
}

func (p *page) HTML(context.Context) (string, error) {
	if p.site.Panic {
		panic("renderer crashed")
	}
	return p.site.HTML, nil
}

func (p *page) QueryTexts(ctx context.Context, selector string) ([]string, error) {
	q, err := extractor.NewStaticQuerier(p.site.HTML)
	if err != nil {
		return nil, err
	}
	return q.QueryTexts(ctx, selector)
}

func (p *page) Close() error {
	p.l.pagesClosed.Add(1)
	return p.l.CloseErr
}

// Inferrer answers selector inference from a function.
type Inferrer struct {
	Fn    func(chunk cleaner.Chunk) (models.FieldSelectors, error)
	calls atomic.Int32
}

// Fixed returns an Inferrer that proposes sel for every chunk.
func Fixed(sel models.FieldSelectors) *Inferrer {
	return &Inferrer{Fn: func(cleaner.Chunk) (models.FieldSelectors, error) { return sel, nil }}
}

// ErrUnavailable is a fatal inference error, as for a rejected API key.
var ErrUnavailable error = &models.ScrapeError{
	Code:    models.ErrCodeSelectorGeneration,
	Message: "inference service rejected the credential",
	Chunk:   models.NoChunk,
	Fatal:   true,
	Err:     errors.New("401 Unauthorized"),
}

// InferSelectors implements scraper.Inferrer.
func (f *Inferrer) InferSelectors(ctx context.Context, chunk cleaner.Chunk) (models.FieldSelectors, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return models.FieldSelectors{}, err
	}
	return f.Fn(chunk)
}

// Calls returns the number of InferSelectors calls.
func (f *Inferrer) Calls() int { return int(f.calls.Load()) }
