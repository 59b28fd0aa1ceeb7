package tasks

import (
	"net/http"
	"testing"
	"time"

	"github.com/skymethod/livewire-validator-sub001/app/database"
	"github.com/skymethod/livewire-validator-sub001/app/threadcap"
)

func TestCachePruner_RunOnce(t *testing.T) {
	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Expected in-memory database to open, got: %v", err)
	}
	defer db.Close()
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Expected migrations to apply, got: %v", err)
	}
	repo := database.NewCacheRepository(db)

	res := &threadcap.Response{Status: 200, Headers: http.Header{}, Body: "ok"}
	if err := repo.Put("https://example.com/old", time.Now().Add(-48*time.Hour), res); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := repo.Put("https://example.com/fresh", time.Now(), res); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	pruner := NewCachePruner(repo, time.Hour, 24*time.Hour)
	removed, err := pruner.RunOnce()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed entry, got %d", removed)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", stats.Entries)
	}
}
