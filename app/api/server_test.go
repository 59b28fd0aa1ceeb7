package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/skymethod/livewire-validator-sub001/app/cfg"
	"github.com/skymethod/livewire-validator-sub001/app/database"
	"github.com/skymethod/livewire-validator-sub001/app/tasks"
)

const minimalFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
  <title>Test Podcast</title>
  <link>https://example.com/podcast</link>
  <description>A test podcast</description>
  <item>
    <title>Episode 1</title>
    <enclosure url="https://example.com/ep1.mp3" length="1234" type="audio/mpeg"/>
    <guid>https://example.com/ep1</guid>
  </item>
</channel>
</rss>`

func decodeJSON(res *http.Response, v any) error {
	return json.NewDecoder(res.Body).Decode(v)
}

func newTestServer(t *testing.T, apiAccessKey string) *httptest.Server {
	t.Helper()

	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()
	if _, err := cfg.Load(); err != nil {
		t.Fatalf("Expected config to load, got: %v", err)
	}

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Expected in-memory database to open, got: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Expected migrations to apply, got: %v", err)
	}
	repo := database.NewCacheRepository(db)
	pruner := tasks.NewCachePruner(repo, time.Hour, 24*time.Hour)

	handler := NewHandler(repo, pruner, nil)
	server := httptest.NewServer(NewServer(handler, apiAccessKey))
	t.Cleanup(server.Close)
	return server
}

func TestValidateBody_MinimalFeed(t *testing.T) {
	server := newTestServer(t, "")

	res, err := http.Post(server.URL+"/validate", "application/xml", strings.NewReader(minimalFeed))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", res.StatusCode)
	}

	var response ValidationResponse
	if err := decodeJSON(res, &response); err != nil {
		t.Fatalf("Expected JSON response, got: %v", err)
	}
	if !response.Valid {
		t.Errorf("Expected valid feed, got messages: %+v", response.Messages)
	}
	if response.Summary.Errors != 0 {
		t.Errorf("Expected 0 errors, got %d", response.Summary.Errors)
	}
	if response.Summary.ItemsFound != 1 || response.Summary.ItemsWithEnclosures != 1 {
		t.Errorf("Expected 1 item with enclosure, got: %+v", response.Summary)
	}
	if response.Preview == nil || response.Preview.Metadata.Title != "Test Podcast" {
		t.Errorf("Expected preview with title, got: %+v", response.Preview)
	}
}

func TestValidateBody_MalformedXML(t *testing.T) {
	server := newTestServer(t, "")

	res, err := http.Post(server.URL+"/validate", "application/xml", strings.NewReader("<rss><channel></rss>"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer res.Body.Close()

	var response ValidationResponse
	if err := decodeJSON(res, &response); err != nil {
		t.Fatalf("Expected JSON response, got: %v", err)
	}
	if response.Valid {
		t.Error("Expected malformed feed to be invalid")
	}
	if response.Summary.Errors == 0 {
		t.Error("Expected at least one error message")
	}
}

func TestValidateBody_EmptyBody(t *testing.T) {
	server := newTestServer(t, "")

	res, err := http.Post(server.URL+"/validate", "application/xml", strings.NewReader(""))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got: %d", res.StatusCode)
	}
}

func TestValidateURL_RequiresParameter(t *testing.T) {
	server := newTestServer(t, "")

	res, err := http.Get(server.URL + "/validate")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got: %d", res.StatusCode)
	}
}

func TestThreadcap_RequiresURL(t *testing.T) {
	server := newTestServer(t, "")

	res, err := http.Get(server.URL + "/threadcap")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got: %d", res.StatusCode)
	}
}

func TestThreadcap_RejectsBadBounds(t *testing.T) {
	server := newTestServer(t, "")

	res, err := http.Get(server.URL + "/threadcap?url=https://example.com/post&maxLevels=abc")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got: %d", res.StatusCode)
	}
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t, "")

	res, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got: %d", res.StatusCode)
	}
}

func TestStats(t *testing.T) {
	server := newTestServer(t, "")

	res, err := http.Get(server.URL + "/stats")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got: %d", res.StatusCode)
	}
}

func TestPruneCache_Authentication(t *testing.T) {
	server := newTestServer(t, "secret-key")

	// No key
	res, err := http.Post(server.URL+"/api/cache/prune", "application/json", nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without key, got: %d", res.StatusCode)
	}

	// Wrong key
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/cache/prune", nil)
	req.Header.Set("X-API-Key", "wrong")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with wrong key, got: %d", res.StatusCode)
	}

	// Correct key
	req, _ = http.NewRequest(http.MethodPost, server.URL+"/api/cache/prune", nil)
	req.Header.Set("X-API-Key", "secret-key")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 with correct key, got: %d", res.StatusCode)
	}
}
