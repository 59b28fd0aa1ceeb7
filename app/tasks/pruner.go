package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skymethod/livewire-validator-sub001/app/database"
)

// CachePruner periodically deletes cached responses older than the
// configured retention window.
type CachePruner struct {
	repo     *database.CacheRepository
	interval time.Duration
	maxAge   time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewCachePruner builds a pruner over the cache repository. interval
// controls how often the sweep runs, maxAge how long entries live.
func NewCachePruner(repo *database.CacheRepository, interval, maxAge time.Duration) *CachePruner {
	ctx, cancel := context.WithCancel(context.Background())
	return &CachePruner{
		repo:     repo,
		interval: interval,
		maxAge:   maxAge,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background sweep loop. One sweep runs
// immediately so a long-stopped server reclaims space on boot.
func (p *CachePruner) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.sweep()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.sweep()
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (p *CachePruner) Stop() {
	p.cancel()
	p.wg.Wait()
}

// RunOnce performs a single sweep and reports how many entries were
// removed.
func (p *CachePruner) RunOnce() (int64, error) {
	return p.repo.Prune(time.Now().Add(-p.maxAge))
}

func (p *CachePruner) sweep() {
	removed, err := p.RunOnce()
	if err != nil {
		slog.Warn("Cache prune failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Debug("Pruned cached responses", "removed", removed, "max_age", p.maxAge)
	}
}
