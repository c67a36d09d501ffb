package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"realty_watch/logging"
)

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromedpRenderer renders pages through a local Chrome over the DevTools
// protocol. Each render gets a fresh tab.
type ChromedpRenderer struct {
	pacer *rate.Limiter
}

func NewChromedpRenderer(requestDelay time.Duration) *ChromedpRenderer {
	return &ChromedpRenderer{pacer: newPacer(requestDelay)}
}

func stealthOpts(headless bool) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(desktopUserAgent),
	}
	if headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	return opts
}

func (r *ChromedpRenderer) Render(ctx context.Context, url string, opts RenderOptions) (string, error) {
	if err := r.pacer.Wait(ctx); err != nil {
		return "", err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, stealthOpts(opts.Headless)...)
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	navCtx, navCancel := context.WithTimeout(tabCtx, opts.NavTimeout)
	logging.Infof("Rendering: %s", url)
	err := chromedp.Run(navCtx, chromedp.Navigate(url))
	navCancel()
	if err != nil {
		if tabCtx.Err() != nil {
			return "", fmt.Errorf("navigation failed: %w", err)
		}
		logging.Warnf("Navigation error (continuing): %v", err)
	}

	scrollUntilSettled(tabCtx, &chromedpPage{ctx: tabCtx}, opts)

	var text string
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text)); err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoContent
	}
	if trigger := detectBlock(text); trigger != "" {
		return "", fmt.Errorf("blocked by anti-bot page (%s)", trigger)
	}
	return text, nil
}

// Close is a no-op; every render owns and releases its own browser.
func (r *ChromedpRenderer) Close() {}

type chromedpPage struct {
	ctx context.Context
}

func (p *chromedpPage) ScrollHeight() (float64, error) {
	var h float64
	err := chromedp.Run(p.ctx, chromedp.Evaluate(`document.body.scrollHeight`, &h))
	return h, err
}

func (p *chromedpPage) ScrollToBottom() error {
	return chromedp.Run(p.ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

func (p *chromedpPage) CountSelector(selector string) (int, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return 0, err
	}
	var n int
	err = chromedp.Run(p.ctx, chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%s).length`, quoted), &n))
	return n, err
}

func (p *chromedpPage) Pause(d time.Duration) {
	chromedp.Run(p.ctx, chromedp.Sleep(d))
}
