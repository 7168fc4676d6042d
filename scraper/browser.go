// Package scraper renders pages in a headless browser and runs the
// per-URL scrape sessions of a batch.
package scraper

import (
	"context"

	"github.com/use-agent/promoscrape/extractor"
)

// Launcher starts a browser for one scrape session.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a running browser instance owned by a single session.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	// Close terminates the browser process. It is safe to call after a
	// failed launch step.
	Close() error
}

// Page is one tab. Queries run against the live rendered DOM.
type Page interface {
	extractor.Querier

	// Navigate loads url and waits until the network is idle.
	Navigate(ctx context.Context, url string) error
	// HTML returns the serialised document as currently rendered.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// RawDocument is the rendered HTML of a page, captured once after navigation.
type RawDocument struct {
	URL  string
	HTML string
}
