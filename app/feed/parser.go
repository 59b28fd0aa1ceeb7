package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw feed bytes into a Preview.
func (p *Parser) Run(data []byte) (*Preview, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		FeedType:    parsed.FeedType,
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
		Categories:  parsed.Categories,
	}

	if parsed.Image != nil {
		metadata.ImageURL = parsed.Image.URL
	}
	if parsed.PublishedParsed != nil {
		metadata.FeedPublishedAt = parsed.PublishedParsed
	}
	if parsed.UpdatedParsed != nil {
		metadata.FeedUpdatedAt = parsed.UpdatedParsed
	}
	if itunes := parsed.ITunesExt; itunes != nil {
		metadata.Author = itunes.Author
		metadata.Explicit = itunes.Explicit
		if itunes.Owner != nil {
			metadata.OwnerEmail = itunes.Owner.Email
		}
		if metadata.ImageURL == "" {
			metadata.ImageURL = itunes.Image
		}
	}

	preview := &Preview{
		Metadata: metadata,
		Items:    make([]Item, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		normalized := p.normalizeItem(item)
		preview.Items = append(preview.Items, normalized)
		if normalized.EnclosureURL != "" {
			preview.ItemsWithEnclosures++
		}
	}
	preview.ItemCount = len(preview.Items)

	return preview, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Categories:  item.Categories,
	}

	if item.PublishedParsed != nil {
		normalized.PublishedAt = item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		normalized.UpdatedAt = item.UpdatedParsed
	}

	normalized.Authors = p.extractAuthors(item)

	if itunes := item.ITunesExt; itunes != nil {
		normalized.Duration = itunes.Duration
		normalized.EpisodeType = itunes.EpisodeType
		normalized.Season = itunes.Season
		normalized.Episode = itunes.Episode
		normalized.ImageURL = itunes.Image
	}

	// Extract first enclosure if available (RSS 2.0 spec allows only one per item)
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure := item.Enclosures[0]
		normalized.EnclosureURL = enclosure.URL
		normalized.EnclosureType = enclosure.Type

		// Parse length as int64, handle potential parsing errors
		if enclosure.Length != "" {
			if length, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
				normalized.EnclosureLength = length
			}
		}
	}

	return normalized
}

func (p *Parser) extractAuthors(item *gofeed.Item) []string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				authorStr := p.formatAuthor(author.Name, author.Email)
				if authorStr != "" {
					authors = append(authors, authorStr)
				}
			}
		}
	} else if item.Author != nil {
		authorStr := p.formatAuthor(item.Author.Name, item.Author.Email)
		if authorStr != "" {
			authors = append(authors, authorStr)
		}
	}

	return authors
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}
