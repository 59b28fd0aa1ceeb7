package threadcap

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// WaitFunc computes how long to wait before the next call to an
// endpoint, given the most recent rate limit headers seen for it.
type WaitFunc func(endpoint string, limit, remaining int, reset time.Time) time.Duration

// DefaultWaitFunc never waits while at least 100 calls remain, then
// spreads the remaining budget proportionally across the time left
// until the limit resets.
func DefaultWaitFunc(endpoint string, limit, remaining int, reset time.Time) time.Duration {
	if remaining >= 100 {
		return 0
	}
	untilReset := time.Until(reset)
	if untilReset <= 0 {
		return 0
	}
	return untilReset / time.Duration(remaining+1)
}

type endpointLimits struct {
	limit     int
	remaining int
	reset     time.Time
}

// RateLimitedFetcher decorates a Fetcher with advisory cooperative
// throttling: it tracks limit/remaining/reset headers per endpoint
// and sleeps before the next call to that endpoint when the budget
// runs low. It is a courtesy layer, not an admission-control gate.
type RateLimitedFetcher struct {
	fetcher   Fetcher
	waitFunc  WaitFunc
	callbacks Callbacks

	mu        sync.Mutex
	endpoints map[string]endpointLimits
}

// NewRateLimitedFetcher wraps fetcher. A nil waitFunc uses
// DefaultWaitFunc.
func NewRateLimitedFetcher(fetcher Fetcher, waitFunc WaitFunc, callbacks Callbacks) *RateLimitedFetcher {
	if waitFunc == nil {
		waitFunc = DefaultWaitFunc
	}
	return &RateLimitedFetcher{
		fetcher:   fetcher,
		waitFunc:  waitFunc,
		callbacks: callbacks,
		endpoints: make(map[string]endpointLimits),
	}
}

// Fetch satisfies the Fetcher shape; use Fetcher() to pass it around.
func (r *RateLimitedFetcher) Fetch(ctx context.Context, fetchURL string, headers http.Header) (*Response, error) {
	endpoint := endpointFor(fetchURL)

	r.mu.Lock()
	limits, known := r.endpoints[endpoint]
	r.mu.Unlock()

	if known {
		if wait := r.waitFunc(endpoint, limits.limit, limits.remaining, limits.reset); wait > 0 {
			if r.callbacks != nil {
				r.callbacks.OnEvent(Event{Kind: EventWaitingForRateLimit, URL: fetchURL, Millis: wait.Milliseconds()})
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	res, err := r.fetcher(ctx, fetchURL, headers)
	if err != nil {
		return nil, err
	}
	if updated, ok := limitsFromHeaders(res.Headers); ok {
		r.mu.Lock()
		r.endpoints[endpoint] = updated
		r.mu.Unlock()
	}
	return res, nil
}

// Fetcher returns the decorated fetch function.
func (r *RateLimitedFetcher) Fetcher() Fetcher {
	return r.Fetch
}

var numericIDSegmentPattern = regexp.MustCompile(`/\d{8,}`)

// endpointFor reduces a URL to its throttling key: the hostname, or
// for the Twitter API the hostname plus the pathname with numeric id
// segments templated out, since Twitter limits per route.
func endpointFor(fetchURL string) string {
	u, err := url.Parse(fetchURL)
	if err != nil {
		return fetchURL
	}
	if u.Hostname() == "api.twitter.com" {
		return u.Hostname() + numericIDSegmentPattern.ReplaceAllString(u.Path, "/:id")
	}
	return u.Hostname()
}

// limitsFromHeaders reads both the Twitter style (x-rate-limit-*,
// epoch seconds reset) and the Mastodon style (x-ratelimit-*, ISO
// date reset) header families.
func limitsFromHeaders(headers http.Header) (endpointLimits, bool) {
	limit, okLimit := headerInt(headers, "x-rate-limit-limit", "x-ratelimit-limit")
	remaining, okRemaining := headerInt(headers, "x-rate-limit-remaining", "x-ratelimit-remaining")
	if !okLimit || !okRemaining {
		return endpointLimits{}, false
	}
	reset := time.Time{}
	if value := firstHeader(headers, "x-rate-limit-reset", "x-ratelimit-reset"); value != "" {
		if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
			reset = time.Unix(epoch, 0)
		} else if t, err := time.Parse(time.RFC3339, value); err == nil {
			reset = t
		}
	}
	return endpointLimits{limit: limit, remaining: remaining, reset: reset}, true
}

func headerInt(headers http.Header, names ...string) (int, bool) {
	value := firstHeader(headers, names...)
	if value == "" {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

func firstHeader(headers http.Header, names ...string) string {
	for _, name := range names {
		if value := headers.Get(name); value != "" {
			return value
		}
	}
	return ""
}
