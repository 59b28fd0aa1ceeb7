package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://validator.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Cache database configuration
	CacheDBPath        string `long:"cache-db" env:"CACHE_DB" default:"./validator-cache.db" description:"Path to the sqlite response cache database"`
	CachePruneInterval int    `long:"cache-prune-interval" env:"CACHE_PRUNE_INTERVAL" default:"3600" description:"Cache prune interval in seconds"`
	CacheMaxAge        int    `long:"cache-max-age" env:"CACHE_MAX_AGE" default:"24" description:"Cached response retention in hours"`

	// Crawl configuration
	CrawlConfigFile    string `long:"crawl-config" env:"CRAWL_CONFIG" description:"Path to YAML crawl configuration (relays, tokens)"`
	TwitterBearerToken string `long:"twitter-bearer-token" env:"TWITTER_BEARER_TOKEN" description:"Bearer token for the Twitter v2 API (optional)"`
	MaxCrawlLevels     int    `long:"max-crawl-levels" env:"MAX_CRAWL_LEVELS" default:"10" description:"Default maximum comment thread depth"`
	MaxCrawlNodes      int    `long:"max-crawl-nodes" env:"MAX_CRAWL_NODES" default:"1000" description:"Default maximum comment thread nodes per crawl"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Livewire Validator/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Port:               raw.Port,
		BaseUrl:            raw.BaseUrl,
		APIAccessKey:       raw.APIAccessKey,
		CacheDBPath:        raw.CacheDBPath,
		CachePruneInterval: raw.CachePruneInterval,
		CacheMaxAge:        raw.CacheMaxAge,
		CrawlConfigFile:    raw.CrawlConfigFile,
		TwitterBearerToken: raw.TwitterBearerToken,
		MaxCrawlLevels:     raw.MaxCrawlLevels,
		MaxCrawlNodes:      raw.MaxCrawlNodes,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
