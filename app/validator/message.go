// Package validator checks a parsed feed tree against the RSS, iTunes
// and Podcast Namespace rule sets, reporting findings through
// callbacks. It never mutates the tree and never fails: rule
// violations are diagnostics, not errors.
package validator

import (
	"github.com/skymethod/livewire-validator-sub001/app/xmltree"
)

// Kind classifies a diagnostic message.
type Kind string

const (
	KindGood    Kind = "good"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Reference ties a diagnostic back to the rule that produced it.
type Reference struct {
	RuleSet string `json:"ruleset"`
	Href    string `json:"href"`
}

// Message is one diagnostic. Messages are append-only: emitted through
// callbacks and never mutated afterwards.
type Message struct {
	Kind      Kind           `json:"kind"`
	Text      string         `json:"text"`
	Node      *xmltree.Node  `json:"-"`
	SourceURL string         `json:"sourceUrl,omitempty"`
	Tag       string         `json:"tag,omitempty"` // dedup key
	Reference *Reference     `json:"reference,omitempty"`
}

// Callbacks receives diagnostics and aggregate bookkeeping as
// validation progresses. Any field may be nil.
type Callbacks struct {
	OnGood    func(Message)
	OnInfo    func(Message)
	OnWarning func(Message)
	OnError   func(Message)

	// OnRssItemsFound fires once with the item count and the count of
	// items carrying an enclosure.
	OnRssItemsFound func(itemCount, itemsWithEnclosuresCount int)
	// OnPodcastIndexTagNamesFound fires once with the recognized and
	// unrecognized podcast namespace tag names that appeared.
	OnPodcastIndexTagNamesFound func(knownNames, unknownNames []string)
	// OnPodcastIndexLiveItemsFound fires once with the live item count.
	OnPodcastIndexLiveItemsFound func(count int)
}

func (c *Callbacks) good(msg Message) {
	msg.Kind = KindGood
	if c.OnGood != nil {
		c.OnGood(msg)
	}
}

func (c *Callbacks) info(msg Message) {
	msg.Kind = KindInfo
	if c.OnInfo != nil {
		c.OnInfo(msg)
	}
}

func (c *Callbacks) warning(msg Message) {
	msg.Kind = KindWarning
	if c.OnWarning != nil {
		c.OnWarning(msg)
	}
}

func (c *Callbacks) error(msg Message) {
	msg.Kind = KindError
	if c.OnError != nil {
		c.OnError(msg)
	}
}
