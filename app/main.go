package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skymethod/livewire-validator-sub001/app/api"
	"github.com/skymethod/livewire-validator-sub001/app/cfg"
	"github.com/skymethod/livewire-validator-sub001/app/database"
	"github.com/skymethod/livewire-validator-sub001/app/tasks"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load configuration from environment variables and command-line flags
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	log.Printf("Starting Livewire Validator %s...", appCfg.Version)

	// Load crawl configuration (relay list, API tokens)
	crawlCfg, err := cfg.LoadCrawlConfig(appCfg.CrawlConfigFile)
	if err != nil {
		log.Fatal("Failed to load crawl configuration:", err)
	}
	if appCfg.CrawlConfigFile != "" {
		log.Printf("Loaded crawl configuration from %s (%d Nostr relays)", appCfg.CrawlConfigFile, len(crawlCfg.NostrRelays))
	}

	// Flag and environment values take precedence over the crawl config file
	if appCfg.TwitterBearerToken == "" {
		appCfg.TwitterBearerToken = crawlCfg.Twitter.BearerToken
	}
	if crawlCfg.MaxLevels > 0 {
		appCfg.MaxCrawlLevels = crawlCfg.MaxLevels
	}
	if crawlCfg.MaxNodes > 0 {
		appCfg.MaxCrawlNodes = crawlCfg.MaxNodes
	}

	// Response cache database
	log.Printf("Opening cache database at %s...", appCfg.CacheDBPath)
	db, err := database.NewConnection(appCfg.CacheDBPath)
	if err != nil {
		log.Fatal("Failed to open cache database:", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	log.Printf("Cache database ready (schema version: %d, dirty: %t)", version, dirty)

	cacheRepo := database.NewCacheRepository(db)

	// Initialize and start the cache pruner
	pruneInterval := time.Duration(appCfg.CachePruneInterval) * time.Second
	cacheMaxAge := time.Duration(appCfg.CacheMaxAge) * time.Hour
	log.Printf("Starting cache pruner (interval: %s, max age: %s)...", pruneInterval, cacheMaxAge)
	pruner := tasks.NewCachePruner(cacheRepo, pruneInterval, cacheMaxAge)
	pruner.Start()
	defer pruner.Stop()

	// Initialize HTTP server
	log.Println("Initializing HTTP server...")
	apiHandler := api.NewHandler(cacheRepo, pruner, crawlCfg.NostrRelays)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appCfg.Port)
		log.Printf("API endpoints available:")
		log.Printf("  Validate feed: http://localhost:%s/validate (POST body or ?url=)", appCfg.Port)
		log.Printf("  Comment thread: http://localhost:%s/threadcap?url=<post-url>", appCfg.Port)
		log.Printf("  Health check:  http://localhost:%s/health", appCfg.Port)
		log.Printf("  Statistics:    http://localhost:%s/stats", appCfg.Port)

		if appCfg.APIAccessKey != "" {
			log.Printf("  Prune cache:   http://localhost:%s/api/cache/prune (POST, requires API key)", appCfg.Port)
		} else {
			log.Printf("  API endpoints: DISABLED (API_ACCESS_KEY not set)")
		}

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Livewire Validator started successfully!")
	log.Println("Press Ctrl+C to shutdown gracefully...")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	// Graceful shutdown
	log.Println("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	// Cache pruner is stopped via defer
	log.Println("Livewire Validator shutdown complete")
}
