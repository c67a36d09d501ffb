package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/time/rate"

	"realty_watch/logging"
)

// PlaywrightRenderer renders pages in a persistent Chromium profile so
// cookies and consent choices survive between searches.
type PlaywrightRenderer struct {
	userDataDir string
	pacer       *rate.Limiter

	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	headless    bool
	initialized bool
}

func NewPlaywrightRenderer(requestDelay time.Duration) *PlaywrightRenderer {
	cwd, _ := os.Getwd()
	return &PlaywrightRenderer{
		userDataDir: filepath.Join(cwd, "browser_data"),
		pacer:       newPacer(requestDelay),
	}
}

func (r *PlaywrightRenderer) Render(ctx context.Context, url string, opts RenderOptions) (string, error) {
	if err := r.pacer.Wait(ctx); err != nil {
		return "", err
	}
	if err := r.ensureBrowser(opts.Headless); err != nil {
		return "", err
	}

	page, err := r.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	logging.Infof("Rendering: %s", url)
	_, err = page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(opts.NavTimeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		// A slow load may still have painted the listings.
		logging.Warnf("Navigation error (continuing): %v", err)
	}

	handleConsent(page)
	scrollUntilSettled(ctx, &playwrightPage{page: page}, opts)

	text, err := page.Locator("body").InnerText()
	if err != nil {
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

func (r *PlaywrightRenderer) ensureBrowser(headless bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized && r.headless == headless {
		return nil
	}
	if r.initialized {
		r.closeLocked()
	}

	var err error
	r.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	r.context, err = r.pw.Chromium.LaunchPersistentContext(r.userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:  playwright.Bool(headless),
		UserAgent: playwright.String(desktopUserAgent),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		r.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	r.headless = headless
	r.initialized = true
	return nil
}

func (r *PlaywrightRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *PlaywrightRenderer) closeLocked() {
	if r.context != nil {
		r.context.Close()
		r.context = nil
	}
	if r.pw != nil {
		r.pw.Stop()
		r.pw = nil
	}
	r.initialized = false
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) ScrollHeight() (float64, error) {
	v, err := p.page.Evaluate(`document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return toFloat(v), nil
}

func (p *playwrightPage) ScrollToBottom() error {
	_, err := p.page.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (p *playwrightPage) CountSelector(selector string) (int, error) {
	return p.page.Locator(selector).Count()
}

func (p *playwrightPage) Pause(d time.Duration) {
	p.page.WaitForTimeout(float64(d.Milliseconds()))
}

var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"#didomi-notice-agree-button",
	"button[id*='accept']",
	"button:has-text('Accept All')",
	"button:has-text('Accept')",
	"button:has-text('I Accept')",
	"button:has-text('Agree')",
}

func handleConsent(page playwright.Page) {
	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			logging.Debugf("Clicking consent button: %s", selector)
			btn.Click()
			page.WaitForTimeout(1000)
			return
		}
	}
}

func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return 0
	}
}
