package source

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	appLog "festcal/internal/log"
)

// Default render parameters for listing pages. The event boxes are injected
// client-side, so a plain HTTP GET returns an empty shell.
const (
	DefaultCardSelector     = ".event-box.list-view"
	DefaultRenderTimeoutSec = 45
)

// RenderOptions defines parameters for a Chromium-based page render.
type RenderOptions struct {
	// URL to render, e.g. "https://example.org/2025-all-events-colony".
	URL string

	// WaitSelector is the CSS selector whose visibility signals that the
	// event list has finished rendering. If empty, DefaultCardSelector is
	// used.
	WaitSelector string

	// Timeout bounds the entire render operation. If zero, a sane default
	// (DefaultRenderTimeoutSec) is used.
	Timeout time.Duration
}

// Renderer produces the fully rendered HTML of a page.
type Renderer interface {
	RenderHTML(ctx context.Context, opts RenderOptions) (string, error)
}

// ChromiumRenderer renders pages in a headless Chromium via chromedp.
type ChromiumRenderer struct{}

// RenderHTML launches (or attaches to) a headless Chromium instance,
// navigates to opts.URL, waits for the event-card selector to become
// visible, and returns the serialized document HTML.
//
// If the selector never appears (some listing pages render without cards),
// one retry is made with a plain navigate + fixed settle delay so that the
// caller still receives whatever markup is present.
func (ChromiumRenderer) RenderHTML(parentCtx context.Context, opts RenderOptions) (string, error) {
	if opts.URL == "" {
		return "", fmt.Errorf("render: URL is required")
	}
	if opts.WaitSelector == "" {
		opts.WaitSelector = DefaultCardSelector
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultRenderTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery),
		// Small extra delay to allow final DOM mutations.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		appLog.Warn("render: selector wait failed, retrying with settle delay",
			"url", opts.URL, "selector", opts.WaitSelector, "err", err)

		fallback := chromedp.Tasks{
			chromedp.Navigate(opts.URL),
			chromedp.Sleep(5 * time.Second),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		}
		if ferr := chromedp.Run(ctx, fallback); ferr != nil {
			return "", fmt.Errorf("render: chromedp run failed: %w", ferr)
		}
	}

	return html, nil
}
