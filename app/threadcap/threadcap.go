// Package threadcap crawls a comment thread rooted at a social post
// across four protocols (ActivityPub, Bluesky/AT Protocol, Nostr and
// the Twitter v2 API), normalizing every backend into one
// protocol-independent snapshot: roots, a node map and a commenter
// map. Crawls are bounded, cancellable, cached and incremental, and a
// single node's failure never aborts its siblings: failures are data,
// not errors, inside a crawl.
package threadcap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Protocol selects the backend used to resolve a thread.
type Protocol string

const (
	ProtocolActivityPub Protocol = "activitypub"
	ProtocolBluesky     Protocol = "bluesky"
	ProtocolNostr       Protocol = "nostr"
	ProtocolTwitter     Protocol = "twitter"
)

// Threadcap is the crawled snapshot of one comment thread. Roots are
// fixed at creation; Nodes and Commenters grow monotonically, keys
// are never removed.
type Threadcap struct {
	Protocol   Protocol              `json:"protocol"`
	Roots      []string              `json:"roots"`
	Nodes      map[string]*Node      `json:"nodes"`
	Commenters map[string]*Commenter `json:"commenters"`
}

// Node is one comment's slot in a Threadcap. A node may hold a
// comment and a replies error (or vice versa) at the same time:
// partial success is a first-class state.
type Node struct {
	Comment      *Comment   `json:"comment,omitempty"`
	CommentError string     `json:"commentError,omitempty"`
	CommentAsof  *time.Time `json:"commentAsof,omitempty"`

	Replies      []string   `json:"replies,omitempty"`
	RepliesError string     `json:"repliesError,omitempty"`
	RepliesAsof  *time.Time `json:"repliesAsof,omitempty"`
}

// Comment is a normalized comment. Content and Summary map language
// tags to text; backends without language information use "und".
type Comment struct {
	URL             string            `json:"url,omitempty"`
	Published       string            `json:"published,omitempty"` // ISO 8601
	Content         map[string]string `json:"content"`
	AttributedTo    string            `json:"attributedTo"`
	Summary         map[string]string `json:"summary,omitempty"`
	Attachments     []Attachment      `json:"attachments,omitempty"`
	QuestionOptions []string          `json:"questionOptions,omitempty"`
}

// Attachment is a media attachment on a comment.
type Attachment struct {
	MediaType string `json:"mediaType"`
	URL       string `json:"url"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Commenter is a normalized author profile.
type Commenter struct {
	Name       string    `json:"name"`
	FqUsername string    `json:"fqUsername,omitempty"`
	URL        string    `json:"url,omitempty"`
	Icon       *Icon     `json:"icon,omitempty"`
	Asof       time.Time `json:"asof"`
}

// Icon is a commenter avatar.
type Icon struct {
	URL       string `json:"url"`
	MediaType string `json:"mediaType,omitempty"`
}

// Implementation is the capability a protocol backend provides. All
// methods are stateless with respect to the Threadcap; per-crawl
// session data lives in the Session's state bag.
type Implementation interface {
	// InitThreadcap bootstraps the thread roots from a post URL.
	InitThreadcap(ctx context.Context, url string, sess *Session) (*Threadcap, error)
	// FetchComment fetches and normalizes a single comment.
	FetchComment(ctx context.Context, id string, sess *Session) (*Comment, error)
	// FetchCommenter fetches and normalizes one author profile.
	FetchCommenter(ctx context.Context, id string, sess *Session) (*Commenter, error)
	// FetchReplies returns one level of reply ids for a node.
	FetchReplies(ctx context.Context, id string, sess *Session) ([]string, error)
}

// Session carries everything a protocol call needs: the fetch
// function, the response cache, the freshness bound, credentials, and
// a mutable state bag for protocol session data (relay sockets,
// conversation snapshots). A Session belongs to exactly one crawl and
// must not be shared across concurrent crawls.
type Session struct {
	Fetcher     Fetcher
	Cache       Cache
	UpdateTime  time.Time
	BearerToken string
	NostrRelays []string
	Debug       bool
	Callbacks   Callbacks
	State       map[string]any
}

// Close releases any protocol session resources held in the state
// bag, such as open relay sockets.
func (s *Session) Close() {
	for key, value := range s.State {
		if closer, ok := value.(io.Closer); ok {
			_ = closer.Close()
			delete(s.State, key)
		}
	}
}

func (s *Session) event(e Event) {
	if s.Callbacks != nil {
		s.Callbacks.OnEvent(e)
	}
}

func (s *Session) warning(nodeID, url, message string) {
	s.event(Event{Kind: EventWarning, NodeID: nodeID, URL: url, Message: message})
}

// Options configures MakeThreadcap and UpdateThreadcap.
type Options struct {
	// Protocol is inferred from the URL when empty.
	Protocol Protocol
	// Implementation overrides the protocol backend; useful for
	// custom backends and tests.
	Implementation Implementation
	Fetcher        Fetcher
	Cache          Cache
	// UpdateTime is the freshness bound for incremental refresh;
	// entries at least this fresh are not re-fetched. Defaults to now.
	UpdateTime time.Time
	// MaxLevels bounds the BFS depth; 0 means unbounded (internally
	// clamped to 1000).
	MaxLevels int
	// MaxNodes bounds the number of nodes processed; 0 means
	// unbounded.
	MaxNodes int
	// StartNode restricts the crawl to a subtree; empty means all
	// roots.
	StartNode string
	// KeepGoing is polled after each completed node; returning false
	// stops the crawl cooperatively.
	KeepGoing   func() bool
	BearerToken string
	// NostrRelays overrides the built-in well-known relay list.
	NostrRelays []string
	Debug       bool
	Callbacks   Callbacks
}

func (o *Options) session() *Session {
	updateTime := o.UpdateTime
	if updateTime.IsZero() {
		updateTime = time.Now()
	}
	fetcher := o.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(nil, "")
	}
	cache := o.Cache
	if cache == nil {
		cache = NewInMemoryCache()
	}
	return &Session{
		Fetcher:     fetcher,
		Cache:       cache,
		UpdateTime:  updateTime,
		BearerToken: o.BearerToken,
		NostrRelays: o.NostrRelays,
		Debug:       o.Debug,
		Callbacks:   o.Callbacks,
		State:       make(map[string]any),
	}
}

// MakeThreadcap bootstraps a new Threadcap from a post URL. Unlike
// the per-node crawl, bootstrap failures propagate: there is no
// partial Threadcap to annotate yet.
func MakeThreadcap(ctx context.Context, url string, opts Options) (*Threadcap, error) {
	protocol := opts.Protocol
	if protocol == "" {
		protocol = DetectProtocol(url)
	}
	impl := opts.Implementation
	if impl == nil {
		var err error
		impl, err = implementationFor(protocol)
		if err != nil {
			return nil, err
		}
	}
	sess := opts.session()
	defer sess.Close()
	tc, err := impl.InitThreadcap(ctx, url, sess)
	if err != nil {
		return nil, fmt.Errorf("failed to init threadcap for %s: %w", url, err)
	}
	return tc, nil
}

// DetectProtocol guesses the protocol from the shape of a post URL,
// defaulting to ActivityPub.
func DetectProtocol(url string) Protocol {
	switch {
	case strings.HasPrefix(url, "nostr:"):
		return ProtocolNostr
	case strings.Contains(url, "bsky.app/"):
		return ProtocolBluesky
	case strings.Contains(url, "twitter.com/") || strings.Contains(url, "x.com/"):
		return ProtocolTwitter
	default:
		return ProtocolActivityPub
	}
}

func implementationFor(protocol Protocol) (Implementation, error) {
	switch protocol {
	case ProtocolActivityPub:
		return activityPubImplementation{}, nil
	case ProtocolBluesky:
		return blueskyImplementation{}, nil
	case ProtocolNostr:
		return nostrImplementation{}, nil
	case ProtocolTwitter:
		return twitterImplementation{}, nil
	default:
		return nil, fmt.Errorf("unsupported threadcap protocol: %q", protocol)
	}
}
