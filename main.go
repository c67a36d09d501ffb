package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realty_watch/api"
	"realty_watch/config"
	"realty_watch/httputil"
	"realty_watch/llm"
	"realty_watch/logging"
	"realty_watch/models"
	"realty_watch/scheduler"
	"realty_watch/scraper"
	"realty_watch/services"
	"realty_watch/storage"
)

var (
	extractFile = flag.String("extract", "", "Run one extraction for the criteria JSON file (- for stdin), print the result and exit")
	sweepNow    = flag.Bool("sweep", false, "Run one monitor sweep and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		logging.Warnf("Could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	logging.Infof("Starting realty_watch...")
	logging.Infof("Loaded %d source configs", len(cfg.Sources))
	for id, src := range cfg.Sources {
		logging.Debugf("  - %s (%s)", id, src.SearchURL)
	}

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		logging.Infof("Proxy: %s", maskConnectionString(cfg.Proxy.URL))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := scraper.NewMetrics()
	orchestrator, closeRenderer := buildOrchestrator(cfg, clients, metrics)
	defer closeRenderer()

	if *extractFile != "" {
		if err := runExtract(ctx, orchestrator, *extractFile); err != nil {
			log.Fatalf("Extraction failed: %v", err)
		}
		return
	}

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Store.Backend, err)
	}
	defer store.Close()
	switch cfg.Store.Backend {
	case "redis":
		logging.Infof("Store backend: redis (%s)", maskConnectionString(cfg.Store.RedisURL))
	case "postgres":
		logging.Infof("Store backend: postgres (%s)", maskConnectionString(cfg.Store.PostgresURL))
	case "sqlite":
		logging.Infof("Store backend: sqlite (%s)", cfg.Store.SQLitePath)
	default:
		logging.Infof("Store backend: %s", cfg.Store.Backend)
	}

	charge := services.NewChargeSink(cfg.Apify, clients.API)
	monitors := services.NewMonitorService(store, orchestrator)
	monitors.SetChargeSink(charge)
	monitors.SetMetrics(metrics)
	if cfg.S3.Bucket != "" {
		archive, err := storage.NewS3Archive(ctx, cfg.S3)
		if err != nil {
			logging.Warnf("Result archive disabled: %v", err)
		} else {
			monitors.SetArchive(archive)
			logging.Infof("Archiving poll results to s3://%s", cfg.S3.Bucket)
		}
	}

	sched := scheduler.New(cfg.Scheduler, monitors)

	if *sweepNow {
		logging.Infof("Running sweep...")
		stats, err := sched.TriggerNow(ctx)
		if err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		logging.Infof("Sweep complete: %d processed, %d updated", stats.Processed, stats.Updated)
		return
	}

	// Daemon mode
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	mux := http.NewServeMux()
	api.NewHandler(orchestrator, monitors, sched, charge, metrics.Registry).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}

	go func() {
		logging.Infof("HTTP listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	logging.Infof("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Infof("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warnf("Shutdown error: %v", err)
	}
	cancel()
	sched.Stop()
	logging.Infof("Goodbye!")
}

func buildOrchestrator(cfg *config.Config, clients *httputil.Clients, metrics *scraper.Metrics) (*scraper.Orchestrator, func()) {
	delay := time.Duration(cfg.HTTP.DelayMS) * time.Millisecond

	var upstream scraper.UpstreamClient
	if cfg.Apify.Token != "" {
		upstream = scraper.NewApifyClient(cfg.Apify, clients.API)
	} else {
		logging.Warnf("APIFY_TOKEN not set, specialized tier disabled")
	}

	var model scraper.ModelClient
	if cfg.LLM.APIKey != "" {
		model = llm.NewClient(cfg.LLM, clients.API)
	} else {
		logging.Warnf("LLM_API_KEY not set, model tier disabled")
	}

	var renderer scraper.Renderer
	switch cfg.Browser.Engine {
	case "chromedp":
		renderer = scraper.NewChromedpRenderer(delay)
	default:
		renderer = scraper.NewPlaywrightRenderer(delay)
	}
	logging.Infof("Browser engine: %s (headless=%v)", cfg.Browser.Engine, cfg.Browser.Headless)

	fetcher := scraper.NewCollyFetcher(clients.Scraping.Transport, clients.Scraping.Timeout, delay)

	o := scraper.NewOrchestrator(cfg.Sources, upstream, renderer, model, fetcher)
	o.SetMetrics(metrics)
	o.SetRenderOptions(scraper.RenderOptions{
		Headless:    cfg.Browser.Headless,
		NavTimeout:  cfg.Browser.NavTimeout,
		WaitTimeout: cfg.Browser.WaitTimeout,
		MaxScrolls:  cfg.Browser.MaxScrolls,
	})
	o.EnableRenderCache(64, cfg.Browser.CacheTTL)

	return o, renderer.Close
}

func runExtract(ctx context.Context, o *scraper.Orchestrator, path string) error {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read criteria: %w", err)
	}

	var c models.SearchCriteria
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("decode criteria: %w", err)
	}

	result, err := o.Extract(ctx, c)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// maskConnectionString masks the password in a url for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
