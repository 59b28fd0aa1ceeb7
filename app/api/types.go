package api

import (
	"sync/atomic"
	"time"

	"github.com/skymethod/livewire-validator-sub001/app/database"
	"github.com/skymethod/livewire-validator-sub001/app/feed"
	"github.com/skymethod/livewire-validator-sub001/app/tasks"
	"github.com/skymethod/livewire-validator-sub001/app/threadcap"
	"github.com/skymethod/livewire-validator-sub001/app/validator"
)

type Handler struct {
	parser      *feed.Parser
	cacheRepo   *database.CacheRepository
	pruner      *tasks.CachePruner
	fetcher     threadcap.Fetcher
	nostrRelays []string
	startedAt   time.Time

	validationCount int64 // atomic
	threadcapCount  int64 // atomic
}

func (h *Handler) countValidation() { atomic.AddInt64(&h.validationCount, 1) }
func (h *Handler) countThreadcap()  { atomic.AddInt64(&h.threadcapCount, 1) }

func (h *Handler) validationCountValue() int64 { return atomic.LoadInt64(&h.validationCount) }
func (h *Handler) threadcapCountValue() int64  { return atomic.LoadInt64(&h.threadcapCount) }

// ValidationResponse is the JSON result of one validation run.
type ValidationResponse struct {
	Source    string              `json:"source,omitempty"`
	Valid     bool                `json:"valid"`
	Messages  []validator.Message `json:"messages"`
	Summary   ValidationSummary   `json:"summary"`
	Preview   *feed.Preview       `json:"preview,omitempty"`
	ElapsedMs int64               `json:"elapsedMs"`
}

// ValidationSummary aggregates the per-run callback tallies.
type ValidationSummary struct {
	Errors              int      `json:"errors"`
	Warnings            int      `json:"warnings"`
	ItemsFound          int      `json:"itemsFound"`
	ItemsWithEnclosures int      `json:"itemsWithEnclosures"`
	LiveItemsFound      int      `json:"liveItemsFound"`
	KnownPodcastTags    []string `json:"knownPodcastTags,omitempty"`
	UnknownPodcastTags  []string `json:"unknownPodcastTags,omitempty"`
}

// ThreadcapResponse wraps a crawled thread with crawl metadata.
type ThreadcapResponse struct {
	Threadcap *threadcap.Threadcap `json:"threadcap"`
	NodeCount int                  `json:"nodeCount"`
	ElapsedMs int64                `json:"elapsedMs"`
}
