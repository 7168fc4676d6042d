package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/use-agent/promoscrape/config"
	"github.com/use-agent/promoscrape/models"
)

// RodLauncher starts one headless Chromium per session.
type RodLauncher struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	policy     ResourcePolicy
}

// NewRodLauncher builds a launcher from configuration. No process is started
// until Launch.
func NewRodLauncher(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) *RodLauncher {
	return &RodLauncher{
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		policy:     NewResourcePolicy(scraperCfg.BlockedResourceTypes),
	}
}

// newLauncher applies the headless, sandbox and stealth flags.
func (r *RodLauncher) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(r.browserCfg.Headless).
		NoSandbox(r.browserCfg.NoSandbox)

	if r.browserCfg.BrowserBin != "" {
		l = l.Bin(r.browserCfg.BrowserBin)
	}
	if r.browserCfg.Proxy != "" {
		l = l.Proxy(r.browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	return l
}

// Launch starts the browser process and connects to it, bounded by
// LaunchTimeout and ctx.
func (r *RodLauncher) Launch(ctx context.Context) (Browser, error) {
	launchCtx, cancel := context.WithTimeout(ctx, r.browserCfg.LaunchTimeout)
	defer cancel()

	l := r.newLauncher().Context(launchCtx)
	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, launchError("failed to launch browser", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL).Context(launchCtx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, launchError("failed to connect to browser", err)
	}

	return &rodBrowser{
		browser:  browser.Context(context.Background()),
		launcher: l,
		cfg:      r,
	}, nil
}

func launchError(msg string, err error) *models.ScrapeError {
	if errors.Is(err, context.DeadlineExceeded) {
		msg += ": launch timed out"
	}
	return models.NewScrapeError(models.ErrCodeBrowser, msg, err)
}

// rodBrowser owns one Chromium process.
type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      *RodLauncher
}

// Close disconnects and kills the process, then removes its profile dir.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()

	done := make(chan struct{})
	go func() {
		b.launcher.Cleanup()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		slog.Warn("browser profile cleanup timed out")
	}
	return err
}
