package threadcap

import (
	"sync"
	"time"
)

// Cache is a freshness-aware response memo keyed by URL. Get returns
// a hit only when the cached fetch time is strictly after the given
// bound. Freshness is purely a function of the arguments, so a cache
// is safe to share across crawls.
type Cache interface {
	Get(url string, after time.Time) (*Response, error)
	Put(url string, fetched time.Time, response *Response) error
}

type inMemoryCacheEntry struct {
	fetched  time.Time
	response *Response
}

// InMemoryCache is a process-local Cache.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]inMemoryCacheEntry
}

// NewInMemoryCache builds an empty cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{entries: make(map[string]inMemoryCacheEntry)}
}

func (c *InMemoryCache) Get(url string, after time.Time) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[url]
	if !ok || !entry.fetched.After(after) {
		return nil, nil
	}
	return entry.response, nil
}

func (c *InMemoryCache) Put(url string, fetched time.Time, response *Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = inMemoryCacheEntry{fetched: fetched, response: response}
	return nil
}

// Len reports the number of cached responses.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
