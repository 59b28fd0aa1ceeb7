package cfg

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCrawlConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crawl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Expected config file to be written, got: %v", err)
	}
	return path
}

func TestLoadCrawlConfig_EmptyPath(t *testing.T) {
	config, err := LoadCrawlConfig("")
	if err != nil {
		t.Fatalf("Expected no error for empty path, got: %v", err)
	}
	if len(config.NostrRelays) != 0 {
		t.Errorf("Expected empty config, got: %+v", config)
	}
}

func TestLoadCrawlConfig_FullFile(t *testing.T) {
	path := writeCrawlConfig(t, `
nostr_relays:
  - wss://relay.example.com
  - wss://relay2.example.com
twitter:
  bearer_token: secret-token
max_levels: 5
max_nodes: 200
`)

	config, err := LoadCrawlConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(config.NostrRelays) != 2 || config.NostrRelays[0] != "wss://relay.example.com" {
		t.Errorf("Expected relay list, got: %v", config.NostrRelays)
	}
	if config.Twitter.BearerToken != "secret-token" {
		t.Errorf("Expected bearer token, got: %s", config.Twitter.BearerToken)
	}
	if config.MaxLevels != 5 || config.MaxNodes != 200 {
		t.Errorf("Expected crawl bounds 5/200, got: %d/%d", config.MaxLevels, config.MaxNodes)
	}
}

func TestLoadCrawlConfig_RejectsNonWebsocketRelay(t *testing.T) {
	path := writeCrawlConfig(t, `
nostr_relays:
  - https://relay.example.com
`)

	if _, err := LoadCrawlConfig(path); err == nil {
		t.Error("Expected error for non-websocket relay URL")
	}
}

func TestLoadCrawlConfig_MissingFile(t *testing.T) {
	if _, err := LoadCrawlConfig("/nonexistent/crawl.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}
