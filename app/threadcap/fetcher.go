package threadcap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response is a completed HTTP exchange in a cache-friendly shape.
type Response struct {
	Status  int         `json:"status"`
	Headers http.Header `json:"headers"`
	Body    string      `json:"body"`
}

// Fetcher abstracts HTTP for the crawl. Implementations may proxy,
// cache, rate limit or fake entirely.
type Fetcher func(ctx context.Context, url string, headers http.Header) (*Response, error)

const maxResponseBodyBytes = 10 * 1024 * 1024

// NewHTTPFetcher builds a Fetcher over an http.Client. A nil client
// uses a 30 second timeout default.
func NewHTTPFetcher(client *http.Client, userAgent string) Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return func(ctx context.Context, url string, headers http.Header) (*Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
		}
		for name, values := range headers {
			for _, value := range values {
				req.Header.Add(name, value)
			}
		}
		if userAgent != "" && req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", userAgent)
		}
		res, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
		}
		defer res.Body.Close()
		body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body for %s: %w", url, err)
		}
		return &Response{Status: res.StatusCode, Headers: res.Header.Clone(), Body: string(body)}, nil
	}
}

// findOrFetchResponse consults the session cache before fetching. A
// cached entry counts as a hit only when fetched strictly after the
// session's freshness bound minus nothing: the cache itself compares
// timestamps, this function only wires it up.
func findOrFetchResponse(ctx context.Context, url string, after time.Time, sess *Session, headers http.Header) (*Response, error) {
	if sess.Cache != nil {
		cached, err := sess.Cache.Get(url, after)
		if err == nil && cached != nil {
			return cached, nil
		}
	}
	res, err := sess.Fetcher(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	if sess.Cache != nil {
		_ = sess.Cache.Put(url, time.Now(), res)
	}
	return res, nil
}

// findOrFetchJSON fetches a URL expecting a JSON document of the
// given accept type, decoding into a generic value.
func findOrFetchJSON(ctx context.Context, url string, sess *Session, accept string) (map[string]any, error) {
	headers := http.Header{}
	headers.Set("Accept", accept)
	if sess.BearerToken != "" {
		headers.Set("Authorization", "Bearer "+sess.BearerToken)
	}
	res, err := findOrFetchResponse(ctx, url, sess.UpdateTime, sess, headers)
	if err != nil {
		return nil, err
	}
	if res.Status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s: %s", res.Status, url, snippet(res.Body))
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(res.Body), &obj); err != nil {
		return nil, fmt.Errorf("failed to decode json from %s: %w", url, err)
	}
	return obj, nil
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 256 {
		return body[:256] + "..."
	}
	return body
}

// Helpers for walking generic JSON.

func stringProperty(obj map[string]any, key string) string {
	value, _ := obj[key].(string)
	return value
}

func objectProperty(obj map[string]any, key string) map[string]any {
	value, _ := obj[key].(map[string]any)
	return value
}

func arrayProperty(obj map[string]any, key string) []any {
	value, _ := obj[key].([]any)
	return value
}
