package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"realty_watch/models"
)

type fakeUpstream struct {
	items    []json.RawMessage
	err      error
	calls    int
	sourceID string
	input    map[string]interface{}
}

func (f *fakeUpstream) Call(ctx context.Context, sourceID string, input map[string]interface{}) ([]json.RawMessage, error) {
	f.calls++
	f.sourceID = sourceID
	f.input = input
	return f.items, f.err
}

type fakeRenderer struct {
	text  string
	err   error
	calls int
	url   string
	opts  RenderOptions
}

func (f *fakeRenderer) Render(ctx context.Context, url string, opts RenderOptions) (string, error) {
	f.calls++
	f.url = url
	f.opts = opts
	return f.text, f.err
}

func (f *fakeRenderer) Close() {}

type fakeModel struct {
	resp   string
	err    error
	calls  int
	prompt string
}

func (f *fakeModel) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.resp, f.err
}

type fakeFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeFetcher) Get(ctx context.Context, url string, headers map[string]string) (string, error) {
	f.calls++
	return f.html, f.err
}

type panicModel struct{}

func (panicModel) Complete(ctx context.Context, prompt string) (string, error) {
	panic("model exploded")
}

func rawItems(t *testing.T, items ...map[string]interface{}) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			t.Fatalf("marshal item: %v", err)
		}
		out = append(out, b)
	}
	return out
}

func seattleCriteria() models.SearchCriteria {
	return models.SearchCriteria{
		Location: "Seattle, WA",
		MinPrice: models.IntPtr(700000),
		MaxPrice: models.IntPtr(1200000),
		Source:   models.SourceZillow,
	}
}

const renderedPage = `Seattle homes for sale
123 Main St, Seattle, WA 98101
$750,000 3 bds 2 ba 1,850 sqft
456 Oak Avenue
$899,000 4 bds 3 ba 2,400 sqft`

func assertCountInvariant(t *testing.T, r models.ExtractionResult) {
	t.Helper()
	if r.Count != len(r.Listings) {
		t.Fatalf("count %d does not match %d listings", r.Count, len(r.Listings))
	}
}

func TestExtract_SpecializedTier(t *testing.T) {
	upstream := &fakeUpstream{items: rawItems(t,
		map[string]interface{}{"address": "1 Pike St, Seattle, WA", "unformattedPrice": 800000, "beds": 3, "baths": 2, "area": 1500, "detailUrl": "/homedetails/1"},
		map[string]interface{}{"address": "2 Pine St, Seattle, WA", "price": "$950,000", "detailUrl": "https://www.zillow.com/homedetails/2"},
	)}
	renderer := &fakeRenderer{text: renderedPage}
	o := NewOrchestrator(nil, upstream, renderer, nil, nil)

	result, err := o.Extract(context.Background(), seattleCriteria())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	assertCountInvariant(t, result)
	if result.Count != 2 {
		t.Fatalf("expected 2 listings, got %d (%s)", result.Count, result.Error)
	}
	for i, l := range result.Listings {
		if l.Source != "zillow" {
			t.Fatalf("listing %d source = %q", i, l.Source)
		}
	}
	if result.Listings[0].URL != "https://www.zillow.com/homedetails/1" {
		t.Fatalf("relative url not resolved: %q", result.Listings[0].URL)
	}
	if result.Listings[0].Price != "$800,000" {
		t.Fatalf("price = %q", result.Listings[0].Price)
	}
	if renderer.calls != 0 {
		t.Fatalf("renderer should not run after tier 1 succeeds")
	}
	if upstream.sourceID != "zillow" || upstream.input["minPrice"] != 700000 {
		t.Fatalf("unexpected upstream request %s %v", upstream.sourceID, upstream.input)
	}
}

func TestExtract_ForceFallbackSkipsUpstream(t *testing.T) {
	upstream := &fakeUpstream{}
	renderer := &fakeRenderer{text: renderedPage}
	o := NewOrchestrator(nil, upstream, renderer, nil, nil)

	c := seattleCriteria()
	c.ForceFallback = true
	result, err := o.Extract(context.Background(), c)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if upstream.calls != 0 {
		t.Fatalf("upstream called %d times with forceFallback", upstream.calls)
	}
	if renderer.calls != 1 {
		t.Fatalf("expected one render, got %d", renderer.calls)
	}
	if result.Count == 0 {
		t.Fatalf("expected pattern listings, got error %q", result.Error)
	}
}

func TestExtract_ModelTier(t *testing.T) {
	upstream := &fakeUpstream{err: errors.New("actor timed out")}
	renderer := &fakeRenderer{text: renderedPage}
	model := &fakeModel{resp: "```json\n[{\"title\":\"Pike house\",\"address\":\"1 Pike St\",\"price\":\"$800,000\",\"url\":\"https://x/1\"}]\n```"}
	o := NewOrchestrator(nil, upstream, renderer, model, nil)

	result, _ := o.Extract(context.Background(), seattleCriteria())
	assertCountInvariant(t, result)
	if result.Count != 1 {
		t.Fatalf("expected 1 model listing, got %d (%s)", result.Count, result.Error)
	}
	if result.Listings[0].Source != "zillow (model extraction)" {
		t.Fatalf("source = %q", result.Listings[0].Source)
	}
	if !strings.Contains(model.prompt, "Seattle, WA") || !strings.Contains(model.prompt, "123 Main St") {
		t.Fatalf("prompt missing criteria or page text")
	}
}

func TestExtract_ModelFailureFallsToPattern(t *testing.T) {
	renderer := &fakeRenderer{text: renderedPage}
	model := &fakeModel{resp: "I could not find any listings on that page."}
	fetcher := &fakeFetcher{}
	o := NewOrchestrator(nil, nil, renderer, model, fetcher)

	result, _ := o.Extract(context.Background(), seattleCriteria())
	assertCountInvariant(t, result)
	if result.Count != 2 {
		t.Fatalf("expected 2 pattern listings, got %d (%s)", result.Count, result.Error)
	}
	if result.Listings[0].Source != "zillow (pattern extraction)" {
		t.Fatalf("source = %q", result.Listings[0].Source)
	}
	if result.Listings[0].Bedrooms != "3" {
		t.Fatalf("bedrooms = %q", result.Listings[0].Bedrooms)
	}
	if fetcher.calls != 0 {
		t.Fatalf("simple tier must not run when the render succeeded")
	}
}

func TestExtract_PanickingTierRecovered(t *testing.T) {
	renderer := &fakeRenderer{text: renderedPage}
	o := NewOrchestrator(nil, nil, renderer, panicModel{}, nil)

	result, err := o.Extract(context.Background(), seattleCriteria())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Count == 0 {
		t.Fatalf("pattern tier should still have run: %s", result.Error)
	}
}

func TestExtract_RenderFailureUsesSimpleTier(t *testing.T) {
	renderer := &fakeRenderer{err: errors.New("net::ERR_CONNECTION_RESET")}
	model := &fakeModel{}
	fetcher := &fakeFetcher{html: `<html><body>
		<article data-test="property-card"><address>10 Elm St, Seattle, WA</address>
		<span data-test="property-card-price">$710,000</span><a href="/homedetails/10">view</a></article>
	</body></html>`}
	o := NewOrchestrator(nil, nil, renderer, model, fetcher)

	result, _ := o.Extract(context.Background(), seattleCriteria())
	assertCountInvariant(t, result)
	if result.Count != 1 {
		t.Fatalf("expected 1 simple listing, got %d (%s)", result.Count, result.Error)
	}
	l := result.Listings[0]
	if l.Source != "zillow (simple http)" || l.Bedrooms != models.NotSpecifiedInSimpleRun {
		t.Fatalf("unexpected simple listing %+v", l)
	}
	if l.URL != "https://www.zillow.com/homedetails/10" {
		t.Fatalf("url = %q", l.URL)
	}
	if model.calls != 0 {
		t.Fatalf("model tier must be skipped when the render fails")
	}
}

func TestExtract_AllTiersFail(t *testing.T) {
	upstream := &fakeUpstream{err: errors.New("upstream 502")}
	renderer := &fakeRenderer{err: errors.New("no content loaded")}
	fetcher := &fakeFetcher{err: errors.New("status 403")}
	o := NewOrchestrator(nil, upstream, renderer, nil, fetcher)

	result, err := o.Extract(context.Background(), seattleCriteria())
	if err != nil {
		t.Fatalf("terminal failure must not be returned as an error: %v", err)
	}
	if result.Count != 0 || result.Listings == nil || len(result.Listings) != 0 {
		t.Fatalf("expected empty listings, got %+v", result)
	}
	for _, part := range []string{"specialized: upstream 502", "render: no content loaded", "simple: status 403"} {
		if !strings.Contains(result.Error, part) {
			t.Fatalf("error %q missing %q", result.Error, part)
		}
	}
}

func TestExtract_PatternZeroIsTerminal(t *testing.T) {
	renderer := &fakeRenderer{text: "No homes match your search."}
	fetcher := &fakeFetcher{html: "<html></html>"}
	o := NewOrchestrator(nil, nil, renderer, nil, fetcher)

	result, _ := o.Extract(context.Background(), seattleCriteria())
	if result.Count != 0 || result.Error == "" {
		t.Fatalf("expected terminal failure, got %+v", result)
	}
	if !strings.Contains(result.Error, "pattern: "+ErrNoListings.Error()) {
		t.Fatalf("error = %q", result.Error)
	}
	if fetcher.calls != 0 {
		t.Fatalf("simple tier only runs after render failures")
	}
}

func TestExtract_MaxResultsCaps(t *testing.T) {
	var items []map[string]interface{}
	for i := 0; i < 8; i++ {
		items = append(items, map[string]interface{}{"address": "x", "price": 1})
	}
	o := NewOrchestrator(nil, &fakeUpstream{items: rawItems(t, items...)}, nil, nil, nil)

	c := seattleCriteria()
	c.MaxResults = 5
	result, _ := o.Extract(context.Background(), c)
	assertCountInvariant(t, result)
	if result.Count != 5 {
		t.Fatalf("expected 5 listings, got %d", result.Count)
	}
}

func TestExtract_InvalidCriteria(t *testing.T) {
	upstream := &fakeUpstream{}
	o := NewOrchestrator(nil, upstream, nil, nil, nil)

	_, err := o.Extract(context.Background(), models.SearchCriteria{Location: "  "})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if upstream.calls != 0 {
		t.Fatalf("no tier may run on invalid criteria")
	}
}

func TestExtract_AnySourceUsesComprehensiveAndZillowTemplate(t *testing.T) {
	upstream := &fakeUpstream{err: errors.New("down")}
	renderer := &fakeRenderer{text: renderedPage}
	o := NewOrchestrator(nil, upstream, renderer, nil, nil)

	c := seattleCriteria()
	c.Source = models.SourceAny
	o.Extract(context.Background(), c)

	if upstream.sourceID != "comprehensive" {
		t.Fatalf("upstream source = %q", upstream.sourceID)
	}
	if !strings.HasPrefix(renderer.url, "https://www.zillow.com/homes/for_sale/?") {
		t.Fatalf("render url = %q", renderer.url)
	}
	if renderer.opts.ReadySelector == "" {
		t.Fatalf("ready selector not passed to renderer")
	}
}

func TestExtract_RenderCache(t *testing.T) {
	renderer := &fakeRenderer{text: renderedPage}
	o := NewOrchestrator(nil, nil, renderer, nil, nil)
	o.EnableRenderCache(8, time.Minute)

	c := seattleCriteria()
	o.Extract(context.Background(), c)
	o.Extract(context.Background(), c)
	if renderer.calls != 1 {
		t.Fatalf("expected cached second render, got %d renders", renderer.calls)
	}
}

func TestExtract_MetricsRecorded(t *testing.T) {
	m := NewMetrics()
	o := NewOrchestrator(nil, &fakeUpstream{err: errors.New("down")}, &fakeRenderer{text: renderedPage}, nil, nil)
	o.SetMetrics(m)
	o.Extract(context.Background(), seattleCriteria())

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, name := range []string{"listing_tier_attempts_total", "listing_tier_failures_total", "listing_tier_successes_total", "listing_extract_duration_seconds"} {
		if !seen[name] {
			t.Errorf("metric %s not recorded", name)
		}
	}
}
