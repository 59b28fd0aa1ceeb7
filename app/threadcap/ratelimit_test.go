package threadcap

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestEndpointFor(t *testing.T) {
	cases := map[string]string{
		"https://example.com/api/v1/statuses/42/context":          "example.com",
		"https://api.twitter.com/2/tweets/1234567890123":          "api.twitter.com/2/tweets/:id",
		"https://api.twitter.com/2/tweets/search/recent?query=x":  "api.twitter.com/2/tweets/search/recent",
		"https://relay.damus.io/":                                 "relay.damus.io",
	}
	for url, expected := range cases {
		if endpoint := endpointFor(url); endpoint != expected {
			t.Errorf("Expected endpoint %s for %s, got: %s", expected, url, endpoint)
		}
	}
}

func TestDefaultWaitFunc(t *testing.T) {
	reset := time.Now().Add(10 * time.Second)

	if wait := DefaultWaitFunc("example.com", 300, 250, reset); wait != 0 {
		t.Errorf("Expected no wait with plenty of budget, got: %v", wait)
	}
	if wait := DefaultWaitFunc("example.com", 300, 4, reset); wait <= 0 {
		t.Errorf("Expected a positive wait with low budget, got: %v", wait)
	}
	if wait := DefaultWaitFunc("example.com", 300, 4, time.Now().Add(-time.Second)); wait != 0 {
		t.Errorf("Expected no wait after reset has passed, got: %v", wait)
	}
}

func TestLimitsFromHeaders(t *testing.T) {
	twitterStyle := http.Header{}
	twitterStyle.Set("x-rate-limit-limit", "450")
	twitterStyle.Set("x-rate-limit-remaining", "3")
	twitterStyle.Set("x-rate-limit-reset", "1750000000")

	limits, ok := limitsFromHeaders(twitterStyle)
	if !ok {
		t.Fatal("Expected limits to be parsed from twitter-style headers")
	}
	if limits.limit != 450 || limits.remaining != 3 {
		t.Errorf("Expected 450/3, got: %d/%d", limits.limit, limits.remaining)
	}
	if limits.reset != time.Unix(1750000000, 0) {
		t.Errorf("Expected epoch reset, got: %v", limits.reset)
	}

	mastodonStyle := http.Header{}
	mastodonStyle.Set("x-ratelimit-limit", "300")
	mastodonStyle.Set("x-ratelimit-remaining", "299")
	mastodonStyle.Set("x-ratelimit-reset", "2026-08-31T12:00:00Z")

	limits, ok = limitsFromHeaders(mastodonStyle)
	if !ok {
		t.Fatal("Expected limits to be parsed from mastodon-style headers")
	}
	if limits.limit != 300 || limits.remaining != 299 {
		t.Errorf("Expected 300/299, got: %d/%d", limits.limit, limits.remaining)
	}
	if limits.reset.IsZero() {
		t.Error("Expected ISO reset to be parsed")
	}

	if _, ok := limitsFromHeaders(http.Header{}); ok {
		t.Error("Expected no limits from empty headers")
	}
}

func TestRateLimitedFetcher_TracksAndWaits(t *testing.T) {
	calls := 0
	inner := func(ctx context.Context, url string, headers http.Header) (*Response, error) {
		calls++
		h := http.Header{}
		h.Set("x-rate-limit-limit", "450")
		h.Set("x-rate-limit-remaining", "2")
		h.Set("x-rate-limit-reset", "1750000000") // long past
		return &Response{Status: 200, Headers: h, Body: "ok"}, nil
	}

	var waitEvents int
	rl := NewRateLimitedFetcher(inner, nil, CallbacksFunc(func(event Event) {
		if event.Kind == EventWaitingForRateLimit {
			waitEvents++
		}
	}))

	for i := 0; i < 2; i++ {
		if _, err := rl.Fetch(context.Background(), "https://example.com/a", nil); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("Expected 2 inner calls, got %d", calls)
	}
	// The reset time is in the past, so the low remaining budget must
	// not cause an actual sleep.
	if waitEvents != 0 {
		t.Errorf("Expected no wait events for an expired window, got %d", waitEvents)
	}
}
