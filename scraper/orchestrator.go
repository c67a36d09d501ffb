package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"realty_watch/config"
	"realty_watch/extract"
	"realty_watch/logging"
	"realty_watch/models"
)

// Tier names, used in failure chains and metric labels.
const (
	TierSpecialized = "specialized"
	TierRender      = "render"
	TierModel       = "model"
	TierPattern     = "pattern"
	TierSimple      = "simple"
)

// ModelClient is the opaque text-completion collaborator of the model tier.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Tier is one step of the fallback chain. Yields is false for steps that
// only gather input for later tiers.
type Tier struct {
	Name    string
	Yields  bool
	Applies func(r *tierRun) bool
	Run     func(ctx context.Context, r *tierRun) ([]models.Listing, string, error)
}

// tierRun is the state one extraction threads through its tiers.
type tierRun struct {
	criteria  models.SearchCriteria
	sourceID  string
	src       *config.SourceConfig
	searchURL string
	text      string
	failed    map[string]error
}

type Orchestrator struct {
	sources    map[string]*config.SourceConfig
	upstream   UpstreamClient
	renderer   Renderer
	model      ModelClient
	fetcher    HTMLFetcher
	renderOpts RenderOptions
	cache      *expirable.LRU[string, string]
	metrics    *Metrics
	tiers      []Tier
}

// NewOrchestrator wires the collaborators. Any of them may be nil; the tier
// that needs a missing collaborator fails and the chain moves on.
func NewOrchestrator(sources map[string]*config.SourceConfig, upstream UpstreamClient, renderer Renderer, model ModelClient, fetcher HTMLFetcher) *Orchestrator {
	if sources == nil {
		sources = config.DefaultSources()
	}
	o := &Orchestrator{
		sources:  sources,
		upstream: upstream,
		renderer: renderer,
		model:    model,
		fetcher:  fetcher,
		renderOpts: RenderOptions{
			Headless:    true,
			NavTimeout:  60 * time.Second,
			WaitTimeout: 15 * time.Second,
			MaxScrolls:  10,
		},
	}
	o.tiers = o.defaultTiers()
	return o
}

func (o *Orchestrator) SetMetrics(m *Metrics) {
	o.metrics = m
}

func (o *Orchestrator) SetRenderOptions(opts RenderOptions) {
	o.renderOpts = opts
}

// EnableRenderCache reuses rendered text for identical search URLs within ttl.
func (o *Orchestrator) EnableRenderCache(size int, ttl time.Duration) {
	if size <= 0 || ttl <= 0 {
		o.cache = nil
		return
	}
	o.cache = expirable.NewLRU[string, string](size, nil, ttl)
}

func (o *Orchestrator) defaultTiers() []Tier {
	return []Tier{
		{
			Name:    TierSpecialized,
			Yields:  true,
			Applies: func(r *tierRun) bool { return !r.criteria.ForceFallback },
			Run:     o.runSpecialized,
		},
		{
			Name: TierRender,
			Run:  o.runRender,
		},
		{
			Name:    TierModel,
			Yields:  true,
			Applies: func(r *tierRun) bool { return r.text != "" },
			Run:     o.runModel,
		},
		{
			Name:    TierPattern,
			Yields:  true,
			Applies: func(r *tierRun) bool { return r.text != "" },
			Run:     o.runPattern,
		},
		{
			Name:    TierSimple,
			Yields:  true,
			Applies: func(r *tierRun) bool { return r.failed[TierRender] != nil },
			Run:     o.runSimple,
		},
	}
}

// Extract runs the tier chain and returns the first usable result. Only
// invalid criteria produce an error; exhausting every tier yields a result
// with Count 0 and the joined failure chain in Error.
func (o *Orchestrator) Extract(ctx context.Context, c models.SearchCriteria) (models.ExtractionResult, error) {
	c, err := c.Normalize()
	if err != nil {
		return models.ExtractionResult{}, err
	}

	start := time.Now()
	defer func() { o.metrics.ObserveExtract(time.Since(start)) }()

	run := o.newRun(c)
	var failures failureChain

	for _, tier := range o.tiers {
		if tier.Applies != nil && !tier.Applies(run) {
			continue
		}

		o.metrics.IncAttempt(tier.Name)
		listings, note, err := o.runTier(ctx, tier, run)
		if err == nil && tier.Yields && len(listings) == 0 {
			err = ErrNoListings
		}
		if err != nil {
			run.failed[tier.Name] = err
			failures = append(failures, &TierError{Tier: tier.Name, Err: err})
			o.metrics.IncFailure(tier.Name)
			logging.Warnf("Tier %s failed for %q: %v", tier.Name, c.Location, err)
			continue
		}
		if !tier.Yields {
			continue
		}

		o.metrics.IncSuccess(tier.Name)
		listings = capListings(listings, c.MaxResults)
		logging.Infof("Tier %s produced %d listings for %q", tier.Name, len(listings), c.Location)
		return models.NewResult(listings, note), nil
	}

	msg := failures.String()
	if msg == "" {
		msg = "no extraction tier could run"
	}
	logging.Errorf("All tiers failed for %q: %s", c.Location, msg)
	return models.FailedResult(msg), nil
}

func (o *Orchestrator) newRun(c models.SearchCriteria) *tierRun {
	sourceID := fallbackSource(c)
	run := &tierRun{
		criteria: c,
		sourceID: sourceID,
		src:      o.sources[sourceID],
		failed:   make(map[string]error),
	}
	if run.src != nil {
		run.searchURL = BuildSearchURL(run.src, c)
	}
	return run
}

// runTier converts a panic inside a tier into that tier's failure.
func (o *Orchestrator) runTier(ctx context.Context, tier Tier, run *tierRun) (listings []models.Listing, note string, err error) {
	defer func() {
		if p := recover(); p != nil {
			listings, note = nil, ""
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return tier.Run(ctx, run)
}

func (o *Orchestrator) runSpecialized(ctx context.Context, r *tierRun) ([]models.Listing, string, error) {
	if o.upstream == nil {
		return nil, "", errors.New("no upstream client configured")
	}
	adapter, err := GetSourceAdapter(string(r.criteria.Source))
	if err != nil {
		return nil, "", err
	}

	items, err := o.upstream.Call(ctx, adapter.SourceID(), adapter.BuildRequest(r.criteria))
	if err != nil {
		return nil, "", err
	}
	listings, err := adapter.MapItems(items)
	if err != nil {
		return nil, "", fmt.Errorf("map %s items: %w", adapter.SourceID(), err)
	}
	return listings, fmt.Sprintf("Results from the %s source actor", adapter.SourceID()), nil
}

func (o *Orchestrator) runRender(ctx context.Context, r *tierRun) ([]models.Listing, string, error) {
	if o.renderer == nil {
		return nil, "", errors.New("no renderer configured")
	}
	if r.src == nil {
		return nil, "", fmt.Errorf("no page template for source %s", r.sourceID)
	}

	if o.cache != nil {
		if text, ok := o.cache.Get(r.searchURL); ok {
			logging.Debugf("Render cache hit: %s", r.searchURL)
			r.text = text
			return nil, "", nil
		}
	}

	opts := o.renderOpts
	opts.ReadySelector = r.src.ReadySelector
	text, err := o.renderer.Render(ctx, r.searchURL, opts)
	if err != nil {
		return nil, "", err
	}
	if text == "" {
		return nil, "", ErrNoContent
	}

	r.text = text
	if o.cache != nil {
		o.cache.Add(r.searchURL, text)
	}
	return nil, "", nil
}

func (o *Orchestrator) runModel(ctx context.Context, r *tierRun) ([]models.Listing, string, error) {
	if o.model == nil {
		return nil, "", errors.New("no model client configured")
	}
	resp, err := o.model.Complete(ctx, extract.BuildPrompt(r.criteria, r.text))
	if err != nil {
		return nil, "", err
	}
	items, err := extract.ParseModelResponse(resp)
	if err != nil {
		return nil, "", err
	}
	listings := extract.ModelListings(items, r.sourceID+" (model extraction)")
	return listings, "Extracted by a language model from the rendered search page", nil
}

func (o *Orchestrator) runPattern(ctx context.Context, r *tierRun) ([]models.Listing, string, error) {
	listings := extract.PatternListings(r.text, r.sourceID+" (pattern extraction)")
	return listings, "Pattern-matched from page text; fields are paired by position and may belong to different listings", nil
}

func (o *Orchestrator) runSimple(ctx context.Context, r *tierRun) ([]models.Listing, string, error) {
	if o.fetcher == nil {
		return nil, "", errors.New("no html fetcher configured")
	}
	if r.src == nil {
		return nil, "", fmt.Errorf("no page template for source %s", r.sourceID)
	}
	html, err := o.fetcher.Get(ctx, r.searchURL, DefaultHeaders())
	if err != nil {
		return nil, "", err
	}
	listings, err := ParseCards(html, r.src, r.sourceID+" (simple http)")
	if err != nil {
		return nil, "", err
	}
	return listings, "Parsed from static HTML; only title, price and link are available", nil
}

func capListings(listings []models.Listing, max int) []models.Listing {
	if max > 0 && len(listings) > max {
		return listings[:max]
	}
	return listings
}
