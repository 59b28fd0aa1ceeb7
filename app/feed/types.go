package feed

import (
	"time"
)

// Preview is the normalized summary of a parsed feed returned next to
// validation results.
type Preview struct {
	Metadata            *Metadata `json:"metadata"`
	Items               []Item    `json:"items"`
	ItemCount           int       `json:"itemCount"`
	ItemsWithEnclosures int       `json:"itemsWithEnclosures"`
}

type Metadata struct {
	FeedType        string     `json:"feedType"` // rss, atom or json
	Title           string     `json:"title"`
	Link            string     `json:"link,omitempty"`
	Description     string     `json:"description,omitempty"`
	ImageURL        string     `json:"imageUrl,omitempty"`
	Language        string     `json:"language,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	Author          string     `json:"author,omitempty"`
	OwnerEmail      string     `json:"ownerEmail,omitempty"`
	Explicit        string     `json:"explicit,omitempty"`
	FeedPublishedAt *time.Time `json:"feedPublishedAt,omitempty"`
	FeedUpdatedAt   *time.Time `json:"feedUpdatedAt,omitempty"`
}

type Item struct {
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	Link        string     `json:"link,omitempty"`
	Description string     `json:"description,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	Authors     []string   `json:"authors,omitempty"` // "email (name)" or "name"
	Categories  []string   `json:"categories,omitempty"`

	Duration    string `json:"duration,omitempty"`
	EpisodeType string `json:"episodeType,omitempty"`
	Season      string `json:"season,omitempty"`
	Episode     string `json:"episode,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`

	EnclosureURL    string `json:"enclosureUrl,omitempty"`
	EnclosureLength int64  `json:"enclosureLength,omitempty"`
	EnclosureType   string `json:"enclosureType,omitempty"`
}
