package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skymethod/livewire-validator-sub001/app/cfg"
	"github.com/skymethod/livewire-validator-sub001/app/database"
	"github.com/skymethod/livewire-validator-sub001/app/feed"
	"github.com/skymethod/livewire-validator-sub001/app/tasks"
	"github.com/skymethod/livewire-validator-sub001/app/threadcap"
	"github.com/skymethod/livewire-validator-sub001/app/validator"
	"github.com/skymethod/livewire-validator-sub001/app/xmltree"
)

const maxValidationBodyBytes = 10 * 1024 * 1024

func NewHandler(cacheRepo *database.CacheRepository, pruner *tasks.CachePruner, nostrRelays []string) *Handler {
	appCfg := cfg.Get()
	return &Handler{
		parser:      feed.NewParser(),
		cacheRepo:   cacheRepo,
		pruner:      pruner,
		fetcher:     threadcap.NewHTTPFetcher(nil, appCfg.UserAgent),
		nostrRelays: nostrRelays,
		startedAt:   time.Now(),
	}
}

// ValidateBody validates feed XML submitted as the request body.
func (h *Handler) ValidateBody(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxValidationBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return
	}

	response := h.validate(string(body), "")
	c.JSON(http.StatusOK, response)
}

// ValidateURL fetches a feed by URL and validates it.
func (h *Handler) ValidateURL(c *gin.Context) {
	feedURL := c.Query("url")
	if feedURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter required"})
		return
	}

	res, err := h.fetcher(c.Request.Context(), feedURL, nil)
	if err != nil {
		slog.Error("Feed fetch failed", "url", feedURL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch feed", "url": feedURL})
		return
	}
	if res.Status != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{"error": "unexpected upstream status", "status": res.Status, "url": feedURL})
		return
	}

	response := h.validate(res.Body, feedURL)
	c.JSON(http.StatusOK, response)
}

// validate runs the full validation pipeline: well-formedness scan,
// tree build, namespace resolution, rule validation, and a gofeed
// preview.
func (h *Handler) validate(xml, sourceURL string) *ValidationResponse {
	h.countValidation()
	started := time.Now()

	response := &ValidationResponse{
		Source:   sourceURL,
		Messages: []validator.Message{},
	}
	record := func(msg validator.Message) {
		msg.SourceURL = sourceURL
		response.Messages = append(response.Messages, msg)
		switch msg.Kind {
		case validator.KindError:
			response.Summary.Errors++
		case validator.KindWarning:
			response.Summary.Warnings++
		}
	}

	if syntaxErr := xmltree.Validate(xml); syntaxErr != nil {
		record(validator.Message{
			Kind: validator.KindError,
			Text: syntaxErr.Error(),
		})
	}

	root, err := xmltree.Parse(xml)
	if err != nil {
		record(validator.Message{Kind: validator.KindError, Text: err.Error()})
		response.ElapsedMs = time.Since(started).Milliseconds()
		return response
	}
	if err := xmltree.ApplyQnames(root); err != nil {
		record(validator.Message{Kind: validator.KindError, Text: err.Error()})
	}

	callbacks := validator.Callbacks{
		OnGood:    record,
		OnInfo:    record,
		OnWarning: record,
		OnError:   record,
		OnRssItemsFound: func(itemCount, itemsWithEnclosuresCount int) {
			response.Summary.ItemsFound = itemCount
			response.Summary.ItemsWithEnclosures = itemsWithEnclosuresCount
		},
		OnPodcastIndexTagNamesFound: func(knownNames, unknownNames []string) {
			response.Summary.KnownPodcastTags = knownNames
			response.Summary.UnknownPodcastTags = unknownNames
		},
		OnPodcastIndexLiveItemsFound: func(count int) {
			response.Summary.LiveItemsFound = count
		},
	}
	validator.ValidateFeed(root, callbacks)

	response.Valid = response.Summary.Errors == 0

	// Preview is best-effort; a feed gofeed cannot parse still gets
	// its diagnostics.
	if preview, err := h.parser.Run([]byte(xml)); err == nil {
		response.Preview = preview
	}

	response.ElapsedMs = time.Since(started).Milliseconds()
	return response
}

// GetThreadcap bootstraps and crawls a comment thread for a post URL.
func (h *Handler) GetThreadcap(c *gin.Context) {
	postURL := c.Query("url")
	if postURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter required"})
		return
	}
	h.countThreadcap()
	started := time.Now()
	appCfg := cfg.Get()

	opts := threadcap.Options{
		Protocol:    threadcap.Protocol(c.Query("protocol")),
		Fetcher:     threadcap.NewRateLimitedFetcher(h.fetcher, nil, nil).Fetcher(),
		Cache:       h.cacheRepo,
		UpdateTime:  time.Now(),
		MaxLevels:   appCfg.MaxCrawlLevels,
		MaxNodes:    appCfg.MaxCrawlNodes,
		BearerToken: appCfg.TwitterBearerToken,
		NostrRelays: h.nostrRelays,
		Debug:       appCfg.Debug,
	}
	if maxLevels := c.Query("maxLevels"); maxLevels != "" {
		n, err := strconv.Atoi(maxLevels)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "maxLevels must be a non-negative integer"})
			return
		}
		opts.MaxLevels = n
	}
	if maxNodes := c.Query("maxNodes"); maxNodes != "" {
		n, err := strconv.Atoi(maxNodes)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "maxNodes must be a non-negative integer"})
			return
		}
		opts.MaxNodes = n
	}

	// Bound the whole crawl; threads can be arbitrarily large.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	tc, err := threadcap.MakeThreadcap(ctx, postURL, opts)
	if err != nil {
		slog.Error("Threadcap bootstrap failed", "url", postURL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "url": postURL})
		return
	}
	if err := threadcap.UpdateThreadcap(ctx, tc, opts); err != nil {
		slog.Error("Threadcap crawl failed", "url", postURL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "url": postURL})
		return
	}

	c.JSON(http.StatusOK, &ThreadcapResponse{
		Threadcap: tc,
		NodeCount: len(tc.Nodes),
		ElapsedMs: time.Since(started).Milliseconds(),
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   cfg.Get().Version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).String(),
	}
	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"validations": h.validationCountValue(),
		"threadcaps":  h.threadcapCountValue(),
		"uptime":      time.Since(h.startedAt).String(),
	}
	if h.cacheRepo != nil {
		if cacheStats, err := h.cacheRepo.Stats(); err == nil {
			stats["cache"] = cacheStats
		} else {
			slog.Error("Cache stats query failed", "error", err)
		}
	}
	c.JSON(http.StatusOK, stats)
}

// PruneCache triggers an immediate cache sweep.
func (h *Handler) PruneCache(c *gin.Context) {
	if h.pruner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pruner not configured"})
		return
	}
	removed, err := h.pruner.RunOnce()
	if err != nil {
		slog.Error("Manual cache prune failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
