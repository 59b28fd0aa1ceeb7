package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/skymethod/livewire-validator-sub001/app/threadcap"
)

// CacheRepository persists fetched responses in sqlite. It satisfies
// threadcap.Cache, so crawls survive process restarts and repeated
// validations of the same feed skip the network.
type CacheRepository struct {
	db *DB
}

// NewCacheRepository creates a new cache repository
func NewCacheRepository(db *DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get returns the cached response for url when it was fetched
// strictly after the given bound, or nil on a miss.
func (r *CacheRepository) Get(url string, after time.Time) (*threadcap.Response, error) {
	var fetchedAt int64
	var status int
	var headersJSON, body string
	err := r.db.QueryRow(`
		SELECT fetched_at, status, headers, body
		FROM cached_responses
		WHERE url = ?
	`, url).Scan(&fetchedAt, &status, &headersJSON, &body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cached response: %w", err)
	}
	if !time.Unix(0, fetchedAt).After(after) {
		return nil, nil
	}

	headers := http.Header{}
	if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
		return nil, fmt.Errorf("failed to decode cached headers: %w", err)
	}
	return &threadcap.Response{Status: status, Headers: headers, Body: body}, nil
}

// Put stores or replaces the cached response for url.
func (r *CacheRepository) Put(url string, fetched time.Time, response *threadcap.Response) error {
	headersJSON, err := json.Marshal(response.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}
	_, err = r.db.Exec(`
		INSERT INTO cached_responses (url, fetched_at, status, headers, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			status = excluded.status,
			headers = excluded.headers,
			body = excluded.body
	`, url, fetched.UnixNano(), response.Status, string(headersJSON), response.Body)
	if err != nil {
		return fmt.Errorf("failed to store cached response: %w", err)
	}
	return nil
}

// Prune deletes responses fetched before the cutoff and reports how
// many rows were removed.
func (r *CacheRepository) Prune(olderThan time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM cached_responses WHERE fetched_at < ?
	`, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cached responses: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned responses: %w", err)
	}
	return removed, nil
}

// CacheStats summarizes the cache table for the stats endpoint.
type CacheStats struct {
	Entries int        `json:"entries"`
	Oldest  *time.Time `json:"oldest,omitempty"`
	Newest  *time.Time `json:"newest,omitempty"`
}

// Stats reports entry count and fetch-time bounds.
func (r *CacheRepository) Stats() (*CacheStats, error) {
	var entries int
	var oldest, newest sql.NullInt64
	err := r.db.QueryRow(`
		SELECT COUNT(*), MIN(fetched_at), MAX(fetched_at) FROM cached_responses
	`).Scan(&entries, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache stats: %w", err)
	}
	stats := &CacheStats{Entries: entries}
	if oldest.Valid {
		t := time.Unix(0, oldest.Int64)
		stats.Oldest = &t
	}
	if newest.Valid {
		t := time.Unix(0, newest.Int64)
		stats.Newest = &t
	}
	return stats, nil
}
