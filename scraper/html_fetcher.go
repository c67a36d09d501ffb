package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"realty_watch/logging"
)

// HTMLFetcher performs a plain GET without running scripts.
type HTMLFetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) (string, error)
}

// CollyFetcher fetches static HTML through a colly collector. Every call
// clones the base collector so callbacks never leak between requests.
type CollyFetcher struct {
	collector *colly.Collector
	pacer     *rate.Limiter
}

func NewCollyFetcher(transport http.RoundTripper, timeout, requestDelay time.Duration) *CollyFetcher {
	c := colly.NewCollector(
		colly.UserAgent(desktopUserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)
	c.IgnoreRobotsTxt = true
	if transport != nil {
		c.WithTransport(transport)
	}
	return &CollyFetcher{collector: c, pacer: newPacer(requestDelay)}
}

// DefaultHeaders are the browser-like headers sent by the simple tier.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      desktopUserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
}

func (f *CollyFetcher) Get(ctx context.Context, url string, headers map[string]string) (string, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return "", err
	}

	c := f.collector.Clone()
	var (
		body    string
		status  int
		failure error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		failure = err
	})

	logging.Debugf("Simple fetch: %s", url)
	if err := c.Visit(url); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("visit %s: %w", url, err)
	}
	c.Wait()

	if failure != nil {
		return "", fmt.Errorf("fetch %s (status %d): %w", url, status, failure)
	}
	if body == "" {
		return "", ErrNoContent
	}
	return body, nil
}
