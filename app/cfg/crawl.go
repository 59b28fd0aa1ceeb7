package cfg

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CrawlConfig is the optional YAML file tuning comment thread crawls.
type CrawlConfig struct {
	// NostrRelays overrides the built-in relay list.
	NostrRelays []string `yaml:"nostr_relays"`

	Twitter struct {
		BearerToken string `yaml:"bearer_token"`
	} `yaml:"twitter"`

	// MaxLevels and MaxNodes override the command line defaults when
	// set.
	MaxLevels int `yaml:"max_levels"`
	MaxNodes  int `yaml:"max_nodes"`
}

// LoadCrawlConfig reads and validates the crawl configuration file.
// An empty path returns an empty config.
func LoadCrawlConfig(path string) (*CrawlConfig, error) {
	config := &CrawlConfig{}
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read crawl config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse crawl config %s: %w", path, err)
	}
	if err := validateCrawlConfig(config); err != nil {
		return nil, fmt.Errorf("invalid crawl config %s: %w", path, err)
	}
	return config, nil
}

func validateCrawlConfig(config *CrawlConfig) error {
	for _, relay := range config.NostrRelays {
		if !strings.HasPrefix(relay, "wss://") && !strings.HasPrefix(relay, "ws://") {
			return fmt.Errorf("nostr relay %q must be a ws:// or wss:// URL", relay)
		}
	}
	if config.MaxLevels < 0 {
		return fmt.Errorf("max_levels must not be negative")
	}
	if config.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must not be negative")
	}
	return nil
}
