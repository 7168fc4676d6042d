package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/promoscrape/models"
)

// queryTextsJS returns the trimmed textContent of every match, or null when
// the browser rejects the selector.
const queryTextsJS = `(sel) => {
	try {
		return Array.from(document.querySelectorAll(sel), el => (el.textContent || '').trim());
	} catch (e) {
		return null;
	}
}`

// errInvalidSelector is returned by QueryTexts for selectors the browser
// cannot parse.
var errInvalidSelector = errors.New("invalid selector")

// NewPage opens a tab and prepares it for navigation.
//
// Setup order:
//
//  1. Create target
//  2. Stealth injection   – must precede navigation to take effect
//  3. Policy mount        – block configured resource types
func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	// ── 1. Create target ──────────────────────────────────────────────
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowser, "failed to open page", err)
	}
	// Drop the creation context so later calls are bound per operation.
	page = page.Context(context.Background())

	// ── 2. Stealth injection ──────────────────────────────────────────
	if b.cfg.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── 3. Mount resource policy ──────────────────────────────────────
	router := b.cfg.policy.install(page)

	return &rodPage{
		page:       page,
		router:     router,
		navTimeout: b.cfg.scraperCfg.NavigationTimeout,
	}, nil
}

// rodPage is a live Chromium tab.
type rodPage struct {
	page       *rod.Page
	router     *rod.HijackRouter
	navTimeout time.Duration
}

// Navigate loads target and waits for the networkIdle lifecycle event,
// bounded by the navigation timeout and ctx.
func (p *rodPage) Navigate(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	// Google Referer, as if the visitor came from a search result.
	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(p.page)
	}

	cp := p.page.Context(ctx)

	// The lifecycle listener MUST be registered before Navigate, otherwise
	// an early networkIdle is missed and the wait only ends on timeout.
	waitIdle := cp.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)

	if err := cp.Navigate(target); err != nil {
		return navigationError(err, "navigation to target URL failed")
	}
	waitIdle()

	if err := ctx.Err(); err != nil {
		return navigationError(err, "page did not reach network idle")
	}
	return nil
}

// HTML returns the current document.
func (p *rodPage) HTML(ctx context.Context) (string, error) {
	raw, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeBrowser, "failed to read page HTML", err)
	}
	return raw, nil
}

// QueryTexts evaluates selector with document.querySelectorAll.
func (p *rodPage) QueryTexts(ctx context.Context, selector string) ([]string, error) {
	res, err := p.page.Context(ctx).Eval(queryTextsJS, selector)
	if err != nil {
		return nil, err
	}
	if res.Value.Nil() {
		return nil, fmt.Errorf("%w: %q", errInvalidSelector, selector)
	}

	items := res.Value.Arr()
	texts := make([]string, 0, len(items))
	for _, v := range items {
		texts = append(texts, v.Str())
	}
	return texts, nil
}

// Close stops the interceptor and closes the tab.
func (p *rodPage) Close() error {
	if p.router != nil {
		if err := p.router.Stop(); err != nil {
			slog.Debug("hijack router stop failed", "error", err)
		}
	}
	return p.page.Close()
}

// navigationError wraps a navigation failure as a BROWSER_ERROR, naming
// timeouts explicitly.
func navigationError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeBrowser, "navigation timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeBrowser, "navigation canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeBrowser, msg, err)
	}
}
