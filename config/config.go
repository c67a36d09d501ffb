package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Apify     ApifyConfig
	LLM       LLMConfig
	Browser   BrowserConfig
	Store     StoreConfig
	S3        S3Config
	Scheduler SchedulerConfig
	HTTP      HTTPConfig
	Proxy     ProxyConfig
	LogLevel  string
	LogFile   string
	Sources   map[string]*SourceConfig
}

type ApifyConfig struct {
	Token   string
	BaseURL string
	RunID   string
	Actors  map[string]string
}

type LLMConfig struct {
	URL    string
	APIKey string
	Model  string
}

type BrowserConfig struct {
	Engine      string
	Headless    bool
	NavTimeout  time.Duration
	WaitTimeout time.Duration
	MaxScrolls  int
	CacheTTL    time.Duration
}

type StoreConfig struct {
	Backend     string
	RedisURL    string
	SQLitePath  string
	PostgresURL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type HTTPConfig struct {
	Addr    string
	DelayMS int
}

type ProxyConfig struct {
	URL string
}

// SourceConfig describes how one listing site is searched and parsed
// outside of its specialized actor.
type SourceConfig struct {
	ID            string            `yaml:"id"`
	SearchURL     string            `yaml:"search_url"`
	BaseURL       string            `yaml:"base_url"`
	Params        map[string]string `yaml:"params"`
	ReadySelector string            `yaml:"ready_selector"`
	CardSelector  string            `yaml:"card_selector"`
	TitleSelector string            `yaml:"title_selector"`
	PriceSelector string            `yaml:"price_selector"`
	LinkSelector  string            `yaml:"link_selector"`
}

// Param names used as keys in SourceConfig.Params.
const (
	ParamLocation  = "location"
	ParamMinPrice  = "min_price"
	ParamMaxPrice  = "max_price"
	ParamBedrooms  = "bedrooms"
	ParamBathrooms = "bathrooms"
)

// DefaultSources returns the built-in source settings. Files under
// config/sources override them by id.
func DefaultSources() map[string]*SourceConfig {
	return map[string]*SourceConfig{
		"zillow": {
			ID:        "zillow",
			SearchURL: "https://www.zillow.com/homes/for_sale/",
			BaseURL:   "https://www.zillow.com",
			Params: map[string]string{
				ParamLocation:  "searchTerms",
				ParamMinPrice:  "price_min",
				ParamMaxPrice:  "price_max",
				ParamBedrooms:  "beds_min",
				ParamBathrooms: "baths_min",
			},
			ReadySelector: "article[data-test='property-card']",
			CardSelector:  "article[data-test='property-card'], .list-card",
			TitleSelector: "address",
			PriceSelector: "[data-test='property-card-price']",
			LinkSelector:  "a[href]",
		},
		"realtor": {
			ID:        "realtor",
			SearchURL: "https://www.realtor.com/realestateandhomes-search/",
			BaseURL:   "https://www.realtor.com",
			Params: map[string]string{
				ParamLocation:  "location",
				ParamMinPrice:  "price_min",
				ParamMaxPrice:  "price_max",
				ParamBedrooms:  "beds_min",
				ParamBathrooms: "baths_min",
			},
			ReadySelector: "[data-testid='property-card']",
			CardSelector:  "[data-testid='property-card'], .component_property-card",
			TitleSelector: "[data-testid='card-address']",
			PriceSelector: "[data-testid='card-price']",
			LinkSelector:  "a[href]",
		},
		"redfin": {
			ID:        "redfin",
			SearchURL: "https://www.redfin.com/search",
			BaseURL:   "https://www.redfin.com",
			Params: map[string]string{
				ParamLocation:  "location",
				ParamMinPrice:  "min_price",
				ParamMaxPrice:  "max_price",
				ParamBedrooms:  "min_beds",
				ParamBathrooms: "min_baths",
			},
			ReadySelector: ".HomeCardContainer",
			CardSelector:  ".HomeCardContainer, .bp-Homecard",
			TitleSelector: ".bp-Homecard__Address, .homeAddressV2",
			PriceSelector: ".bp-Homecard__Price--value, .homecardV2Price",
			LinkSelector:  "a[href]",
		},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Apify: ApifyConfig{
			Token:   os.Getenv("APIFY_TOKEN"),
			BaseURL: getEnv("APIFY_BASE_URL", "https://api.apify.com/v2"),
			RunID:   os.Getenv("ACTOR_RUN_ID"),
			Actors: map[string]string{
				"zillow":        getEnv("APIFY_ACTOR_ZILLOW", "maxcopell~zillow-scraper"),
				"realtor":       getEnv("APIFY_ACTOR_REALTOR", "epctex~realtor-scraper"),
				"redfin":        getEnv("APIFY_ACTOR_REDFIN", "tri_angle~redfin-search"),
				"comprehensive": getEnv("APIFY_ACTOR_COMPREHENSIVE", "dhrumil~real-estate-scraper"),
			},
		},
		LLM: LLMConfig{
			URL:    getEnv("LLM_API_URL", "https://api.openai.com/v1/chat/completions"),
			APIKey: os.Getenv("LLM_API_KEY"),
			Model:  getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Browser: BrowserConfig{
			Engine:      getEnv("BROWSER_ENGINE", "playwright"),
			Headless:    getEnvBool("BROWSER_HEADLESS", true),
			NavTimeout:  getEnvDuration("BROWSER_NAV_TIMEOUT", 60*time.Second),
			WaitTimeout: getEnvDuration("BROWSER_WAIT_TIMEOUT", 15*time.Second),
			MaxScrolls:  getEnvInt("BROWSER_MAX_SCROLLS", 10),
			CacheTTL:    getEnvDuration("RENDER_CACHE_TTL", 10*time.Minute),
		},
		Store: StoreConfig{
			Backend:     getEnv("STORE_BACKEND", "memory"),
			RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
			SQLitePath:  getEnv("DB_PATH", "monitors.db"),
			PostgresURL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SWEEP_CRON"),
			Interval: getEnvDuration("SWEEP_INTERVAL", 0),
		},
		HTTP: HTTPConfig{
			Addr:    getEnv("HTTP_ADDR", ":8080"),
			DelayMS: getEnvInt("REQUEST_DELAY_MS", 500),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "realty_watch.log"),
		Sources:  DefaultSources(),
	}

	if err := cfg.loadSourceConfigs("config/sources"); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "redis", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	switch c.Browser.Engine {
	case "playwright", "chromedp":
	default:
		return fmt.Errorf("unknown BROWSER_ENGINE %q", c.Browser.Engine)
	}
	if c.Browser.MaxScrolls < 0 {
		return fmt.Errorf("BROWSER_MAX_SCROLLS cannot be negative")
	}
	return nil
}

// loadSourceConfigs merges YAML files over the defaults. Unset fields keep
// their default values.
func (c *Config) loadSourceConfigs(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var src SourceConfig
		if err := yaml.Unmarshal(data, &src); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if src.ID == "" {
			return fmt.Errorf("%s: missing id", path)
		}

		c.Sources[src.ID] = mergeSource(c.Sources[src.ID], &src)
	}

	return nil
}

func mergeSource(base, override *SourceConfig) *SourceConfig {
	if base == nil {
		return override
	}
	merged := *base
	if override.SearchURL != "" {
		merged.SearchURL = override.SearchURL
	}
	if override.BaseURL != "" {
		merged.BaseURL = override.BaseURL
	}
	if override.ReadySelector != "" {
		merged.ReadySelector = override.ReadySelector
	}
	if override.CardSelector != "" {
		merged.CardSelector = override.CardSelector
	}
	if override.TitleSelector != "" {
		merged.TitleSelector = override.TitleSelector
	}
	if override.PriceSelector != "" {
		merged.PriceSelector = override.PriceSelector
	}
	if override.LinkSelector != "" {
		merged.LinkSelector = override.LinkSelector
	}
	if len(override.Params) > 0 {
		params := make(map[string]string, len(base.Params))
		for k, v := range base.Params {
			params[k] = v
		}
		for k, v := range override.Params {
			params[k] = v
		}
		merged.Params = params
	}
	return &merged
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
