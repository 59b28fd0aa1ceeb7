package feed

import (
	"testing"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <language>en-us</language>
    <lastBuildDate>Mon, 03 Jul 2023 12:00:00 GMT</lastBuildDate>
    <image>
      <url>https://example.com/icon.png</url>
      <title>Test Feed</title>
      <link>https://example.com</link>
    </image>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <description>Test Item 1 Description</description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>test@example.com (Test Author)</author>
      <category>Technology</category>
      <category>Programming</category>
    </item>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <description>Test Item 2 Description</description>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	preview, err := parser.Run([]byte(rssData))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Test metadata
	metadata := preview.Metadata
	if metadata.Title != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got: %s", metadata.Title)
	}
	if metadata.Link != "https://example.com" {
		t.Errorf("Expected link 'https://example.com', got: %s", metadata.Link)
	}
	if metadata.Description != "Test Description" {
		t.Errorf("Expected description 'Test Description', got: %s", metadata.Description)
	}
	if metadata.Language != "en-us" {
		t.Errorf("Expected language 'en-us', got: %s", metadata.Language)
	}
	if metadata.ImageURL != "https://example.com/icon.png" {
		t.Errorf("Expected image URL 'https://example.com/icon.png', got: %s", metadata.ImageURL)
	}
	if metadata.FeedType != "rss" {
		t.Errorf("Expected feed type 'rss', got: %s", metadata.FeedType)
	}

	// Test items
	if preview.ItemCount != 2 || len(preview.Items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(preview.Items))
	}
	if preview.ItemsWithEnclosures != 0 {
		t.Errorf("Expected 0 items with enclosures, got: %d", preview.ItemsWithEnclosures)
	}

	item1 := preview.Items[0]
	if item1.Title != "Test Item 1" {
		t.Errorf("Expected title 'Test Item 1', got: %s", item1.Title)
	}
	if item1.Link != "https://example.com/item1" {
		t.Errorf("Expected link 'https://example.com/item1', got: %s", item1.Link)
	}
	if item1.GUID != "item-1" {
		t.Errorf("Expected GUID 'item-1', got: %s", item1.GUID)
	}
	if len(item1.Categories) != 2 {
		t.Errorf("Expected 2 categories, got: %d", len(item1.Categories))
	}
	if len(item1.Authors) != 1 {
		t.Errorf("Expected 1 author, got: %d", len(item1.Authors))
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <author>
    <name>Test Author</name>
  </author>
  <id>urn:uuid:1234567890</id>
  <entry>
    <title>Test Entry</title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
    <content type="html">Test content</content>
  </entry>
</feed>`

	parser := NewParser()
	preview, err := parser.Run([]byte(atomData))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if preview.Metadata.Title != "Test Atom Feed" {
		t.Errorf("Expected title 'Test Atom Feed', got: %s", preview.Metadata.Title)
	}
	if preview.Metadata.FeedType != "atom" {
		t.Errorf("Expected feed type 'atom', got: %s", preview.Metadata.FeedType)
	}

	if len(preview.Items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(preview.Items))
	}

	item := preview.Items[0]
	if item.Title != "Test Entry" {
		t.Errorf("Expected title 'Test Entry', got: %s", item.Title)
	}
	if item.Link != "https://example.com/entry1" {
		t.Errorf("Expected link 'https://example.com/entry1', got: %s", item.Link)
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()
	_, err := parser.Run([]byte("invalid xml"))

	if err == nil {
		t.Error("Expected error for invalid XML")
	}
}

func TestParsePodcastFeed(t *testing.T) {
	parser := NewParser()

	rssData := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
	<title>Test Podcast</title>
	<link>https://example.com</link>
	<description>A test podcast feed</description>
	<itunes:author>Podcast Author</itunes:author>
	<itunes:owner>
		<itunes:name>Owner</itunes:name>
		<itunes:email>owner@example.com</itunes:email>
	</itunes:owner>
	<item>
		<title>Episode 1</title>
		<link>https://example.com/episode1</link>
		<description>First episode</description>
		<guid>episode1</guid>
		<pubDate>Wed, 01 Feb 2023 10:00:00 +0000</pubDate>
		<itunes:duration>31:09</itunes:duration>
		<itunes:episodeType>full</itunes:episodeType>
		<itunes:season>1</itunes:season>
		<itunes:episode>1</itunes:episode>
		<enclosure url="https://example.com/audio/episode1.mp3" length="24576000" type="audio/mpeg" />
	</item>
</channel>
</rss>`

	preview, err := parser.Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	metadata := preview.Metadata
	if metadata.Title != "Test Podcast" {
		t.Errorf("Expected title 'Test Podcast', got: %s", metadata.Title)
	}
	if metadata.Author != "Podcast Author" {
		t.Errorf("Expected itunes author, got: %s", metadata.Author)
	}
	if metadata.OwnerEmail != "owner@example.com" {
		t.Errorf("Expected owner email, got: %s", metadata.OwnerEmail)
	}

	if len(preview.Items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(preview.Items))
	}
	if preview.ItemsWithEnclosures != 1 {
		t.Errorf("Expected 1 item with enclosure, got: %d", preview.ItemsWithEnclosures)
	}

	item := preview.Items[0]
	if item.GUID != "episode1" {
		t.Errorf("Expected GUID 'episode1', got: %s", item.GUID)
	}
	if item.Duration != "31:09" {
		t.Errorf("Expected duration '31:09', got: %s", item.Duration)
	}
	if item.EpisodeType != "full" {
		t.Errorf("Expected episode type 'full', got: %s", item.EpisodeType)
	}
	if item.Season != "1" || item.Episode != "1" {
		t.Errorf("Expected season/episode 1/1, got: %s/%s", item.Season, item.Episode)
	}

	// Verify enclosure fields
	if item.EnclosureURL != "https://example.com/audio/episode1.mp3" {
		t.Errorf("Expected enclosure URL 'https://example.com/audio/episode1.mp3', got: %s", item.EnclosureURL)
	}
	if item.EnclosureLength != 24576000 {
		t.Errorf("Expected enclosure length 24576000, got: %d", item.EnclosureLength)
	}
	if item.EnclosureType != "audio/mpeg" {
		t.Errorf("Expected enclosure type 'audio/mpeg', got: %s", item.EnclosureType)
	}
}

func TestFormatAuthor(t *testing.T) {
	parser := NewParser()

	if author := parser.formatAuthor("Name", "mail@example.com"); author != "mail@example.com (Name)" {
		t.Errorf("Expected combined author, got: %s", author)
	}
	if author := parser.formatAuthor("Name", ""); author != "Name" {
		t.Errorf("Expected name only, got: %s", author)
	}
	if author := parser.formatAuthor("", "mail@example.com"); author != "mail@example.com" {
		t.Errorf("Expected email only, got: %s", author)
	}
	if author := parser.formatAuthor(" ", " "); author != "" {
		t.Errorf("Expected empty author, got: %q", author)
	}
}
