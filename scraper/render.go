package scraper

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"realty_watch/logging"
)

// ErrNoContent is returned by renderers when the page produced no text.
var ErrNoContent = errors.New("no content loaded")

// RenderOptions control one page render.
type RenderOptions struct {
	Headless      bool
	NavTimeout    time.Duration
	WaitTimeout   time.Duration
	MaxScrolls    int
	ReadySelector string
}

// Renderer loads a page with scripts enabled and returns its visible text.
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (string, error)
	Close()
}

// scrollPage is the subset of browser operations the scroll loop needs.
type scrollPage interface {
	ScrollHeight() (float64, error)
	ScrollToBottom() error
	CountSelector(selector string) (int, error)
	Pause(d time.Duration)
}

const scrollPause = 800 * time.Millisecond

// scrollUntilSettled scrolls to trigger lazy loading until the page height
// stops growing or the ready selector matches. Running out of scrolls or
// time is not an error; the caller reads whatever has loaded.
func scrollUntilSettled(ctx context.Context, page scrollPage, opts RenderOptions) {
	deadline := time.Now().Add(opts.WaitTimeout)
	lastHeight := -1.0

	for i := 0; i < opts.MaxScrolls; i++ {
		if ctx.Err() != nil || time.Now().After(deadline) {
			logging.Debugf("Scroll wait ended after %d scrolls", i)
			return
		}

		if opts.ReadySelector != "" {
			if n, err := page.CountSelector(opts.ReadySelector); err == nil && n > 0 {
				logging.Debugf("Ready selector matched %d elements", n)
				return
			}
		}

		height, err := page.ScrollHeight()
		if err != nil {
			return
		}
		if height == lastHeight {
			return
		}
		lastHeight = height

		if err := page.ScrollToBottom(); err != nil {
			return
		}
		page.Pause(scrollPause)
	}
}

var blockTriggers = []string{
	"Request unsuccessful. Incapsula",
	"Access Denied",
	"This request was blocked",
	"Press & Hold to confirm you are",
	"Please verify you are a human",
}

// detectBlock returns the anti-bot marker found in page text, if any.
func detectBlock(text string) string {
	for _, t := range blockTriggers {
		if strings.Contains(text, t) {
			return t
		}
	}
	return ""
}

// newPacer spaces outbound requests by delay. A zero delay never waits.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
