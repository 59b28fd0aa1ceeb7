package threadcap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	nostrPoolStateKey   = "nostr.relays"
	nostrEventsStateKey = "nostr.events"
)

// wellKnownNostrRelays are queried in priority order when no relay
// hint is present, until the lookup is satisfied or the list is
// exhausted.
var wellKnownNostrRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.nostr.band",
	"wss://relay.snort.social",
	"wss://relay.primal.net",
}

const (
	nostrKindTextNote = 1
	nostrKindProfile  = 0
)

// nostrQueryTimeout bounds one subscription's wait for EOSE; some
// relays never send it.
const nostrQueryTimeout = 20 * time.Second

var nostrHexIDPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// nostrImplementation crawls threads over the Nostr relay protocol.
// It accepts nostr:<hex event id> URLs, keeps one websocket per relay
// hostname alive for the whole session, and resolves kind-0 profiles
// across the well-known relay list.
type nostrImplementation struct{}

type nostrEvent struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

type nostrFilter struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []int    `json:"kinds,omitempty"`
	ETags   []string `json:"#e,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

func (nostrImplementation) InitThreadcap(ctx context.Context, postURL string, sess *Session) (*Threadcap, error) {
	id, err := nostrEventID(postURL)
	if err != nil {
		return nil, err
	}
	event, err := findNostrEvent(ctx, sess, nostrFilter{IDs: []string{id}, Kinds: []int{nostrKindTextNote}, Limit: 1})
	if err != nil {
		return nil, err
	}
	rememberNostrEvents(sess, event)
	return &Threadcap{
		Protocol:   ProtocolNostr,
		Roots:      []string{event.ID},
		Nodes:      make(map[string]*Node),
		Commenters: make(map[string]*Commenter),
	}, nil
}

func (nostrImplementation) FetchComment(ctx context.Context, id string, sess *Session) (*Comment, error) {
	event, ok := knownNostrEvent(sess, id)
	if !ok {
		found, err := findNostrEvent(ctx, sess, nostrFilter{IDs: []string{id}, Kinds: []int{nostrKindTextNote}, Limit: 1})
		if err != nil {
			return nil, err
		}
		rememberNostrEvents(sess, found)
		event = found
	}
	return &Comment{
		URL:          "nostr:" + event.ID,
		Published:    time.Unix(event.CreatedAt, 0).UTC().Format(time.RFC3339),
		Content:      map[string]string{"und": event.Content},
		AttributedTo: event.Pubkey,
	}, nil
}

func (nostrImplementation) FetchCommenter(ctx context.Context, id string, sess *Session) (*Commenter, error) {
	event, err := findNostrEvent(ctx, sess, nostrFilter{Authors: []string{id}, Kinds: []int{nostrKindProfile}, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profile for %s: %w", id, err)
	}
	var profile struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		Picture     string `json:"picture"`
		Nip05       string `json:"nip05"`
	}
	if err := json.Unmarshal([]byte(event.Content), &profile); err != nil {
		return nil, fmt.Errorf("bad kind-0 content for %s: %w", id, err)
	}
	name := profile.DisplayName
	if name == "" {
		name = profile.Name
	}
	if name == "" {
		name = id
	}
	commenter := &Commenter{
		Name:       name,
		FqUsername: profile.Nip05,
		Asof:       sess.UpdateTime,
	}
	if profile.Picture != "" {
		commenter.Icon = &Icon{URL: profile.Picture}
	}
	return commenter, nil
}

func (nostrImplementation) FetchReplies(ctx context.Context, id string, sess *Session) ([]string, error) {
	var merged []nostrEvent
	seen := make(map[string]bool)
	queried := false
	for _, relay := range nostrRelays(sess) {
		events, err := queryNostrRelay(ctx, sess, relay, nostrFilter{Kinds: []int{nostrKindTextNote}, ETags: []string{id}, Limit: 1000})
		if err != nil {
			sess.warning(id, relay, fmt.Sprintf("relay query failed: %v", err))
			continue
		}
		queried = true
		for _, event := range events {
			if !seen[event.ID] {
				seen[event.ID] = true
				merged = append(merged, event)
			}
		}
	}
	if !queried {
		return nil, fmt.Errorf("no relay answered replies query for %s", id)
	}
	var replies []string
	for _, event := range merged {
		if nostrDirectParent(event) != id {
			continue
		}
		rememberNostrEvents(sess, event)
		replies = append(replies, event.ID)
	}
	return replies, nil
}

// nostrDirectParent applies the NIP-10 convention: prefer the e tag
// marked "reply", fall back to a lone "root" marker, else take the
// last unmarked e tag.
func nostrDirectParent(event nostrEvent) string {
	var eTags [][]string
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "e" {
			eTags = append(eTags, tag)
		}
	}
	if len(eTags) == 0 {
		return ""
	}
	var root string
	for _, tag := range eTags {
		if len(tag) >= 4 {
			switch tag[3] {
			case "reply":
				return tag[1]
			case "root":
				root = tag[1]
			}
		}
	}
	if root != "" {
		return root
	}
	return eTags[len(eTags)-1][1]
}

func nostrEventID(postURL string) (string, error) {
	id := strings.ToLower(strings.TrimPrefix(postURL, "nostr:"))
	if !nostrHexIDPattern.MatchString(id) {
		return "", fmt.Errorf("unsupported nostr url %q: expected nostr:<64 hex chars>", postURL)
	}
	return id, nil
}

// findNostrEvent queries the well-known relays in priority order and
// returns the first matching event.
func findNostrEvent(ctx context.Context, sess *Session, filter nostrFilter) (nostrEvent, error) {
	var lastErr error
	for _, relay := range nostrRelays(sess) {
		events, err := queryNostrRelay(ctx, sess, relay, filter)
		if err != nil {
			lastErr = err
			continue
		}
		if len(events) > 0 {
			return events[0], nil
		}
	}
	if lastErr != nil {
		return nostrEvent{}, fmt.Errorf("event not found on any relay: %w", lastErr)
	}
	return nostrEvent{}, fmt.Errorf("event not found on any relay")
}

func nostrRelays(sess *Session) []string {
	if len(sess.NostrRelays) > 0 {
		return sess.NostrRelays
	}
	return wellKnownNostrRelays
}

func knownNostrEvent(sess *Session, id string) (nostrEvent, bool) {
	events, _ := sess.State[nostrEventsStateKey].(map[string]nostrEvent)
	event, ok := events[id]
	return event, ok
}

func rememberNostrEvents(sess *Session, events ...nostrEvent) {
	cache, ok := sess.State[nostrEventsStateKey].(map[string]nostrEvent)
	if !ok {
		cache = make(map[string]nostrEvent)
		sess.State[nostrEventsStateKey] = cache
	}
	for _, event := range events {
		cache[event.ID] = event
	}
}

// queryNostrRelay runs one REQ subscription against a relay,
// collecting EVENT messages until EOSE, then closing the
// subscription. The underlying socket stays open for reuse.
func queryNostrRelay(ctx context.Context, sess *Session, relayURL string, filter nostrFilter) ([]nostrEvent, error) {
	pool := nostrPoolFor(sess)
	conn, err := pool.connFor(ctx, relayURL)
	if err != nil {
		return nil, err
	}
	return conn.query(ctx, filter)
}

func nostrPoolFor(sess *Session) *nostrRelayPool {
	pool, ok := sess.State[nostrPoolStateKey].(*nostrRelayPool)
	if !ok {
		pool = &nostrRelayPool{conns: make(map[string]*nostrRelayConn)}
		sess.State[nostrPoolStateKey] = pool
	}
	return pool
}

// nostrRelayPool holds one live websocket per relay hostname for the
// lifetime of a crawl session.
type nostrRelayPool struct {
	mu    sync.Mutex
	conns map[string]*nostrRelayConn
}

func (p *nostrRelayPool) connFor(ctx context.Context, relayURL string) (*nostrRelayConn, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("bad relay url %s: %w", relayURL, err)
	}
	key := u.Hostname()

	p.mu.Lock()
	conn, ok := p.conns[key]
	p.mu.Unlock()
	if ok {
		return conn, nil
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay %s: %w", relayURL, err)
	}
	conn = &nostrRelayConn{ws: ws, subs: make(map[string]chan []json.RawMessage)}
	go conn.readLoop()

	p.mu.Lock()
	if existing, ok := p.conns[key]; ok {
		p.mu.Unlock()
		_ = ws.Close()
		return existing, nil
	}
	p.conns[key] = conn
	p.mu.Unlock()
	return conn, nil
}

// Close shuts every relay socket; Session.Close calls this at the end
// of a crawl.
func (p *nostrRelayPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, conn := range p.conns {
		_ = conn.ws.Close()
		delete(p.conns, key)
	}
	return nil
}

type nostrRelayConn struct {
	ws *websocket.Conn

	mu      sync.Mutex
	subs    map[string]chan []json.RawMessage
	nextSub int
	closed  bool
}

// readLoop is the only reader on the socket; it routes inbound frames
// to the channel of the subscription they belong to.
func (c *nostrRelayConn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.closed = true
			for id, ch := range c.subs {
				close(ch)
				delete(c.subs, id)
			}
			c.mu.Unlock()
			return
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 2 {
			continue
		}
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.subs[subID]
		c.mu.Unlock()
		if ok {
			select {
			case ch <- frame:
			default:
				// Subscription stopped draining; drop the frame.
			}
		}
	}
}

func (c *nostrRelayConn) query(ctx context.Context, filter nostrFilter) ([]nostrEvent, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("relay connection closed")
	}
	c.nextSub++
	subID := fmt.Sprintf("sub%d", c.nextSub)
	ch := make(chan []json.RawMessage, 256)
	c.subs[subID] = ch
	err := c.ws.WriteJSON([]any{"REQ", subID, filter})
	c.mu.Unlock()
	if err != nil {
		c.unsubscribe(subID, false)
		return nil, fmt.Errorf("failed to send REQ: %w", err)
	}
	defer c.unsubscribe(subID, true)

	timeout := time.NewTimer(nostrQueryTimeout)
	defer timeout.Stop()

	var events []nostrEvent
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			return nil, fmt.Errorf("timed out waiting for EOSE")
		case frame, ok := <-ch:
			if !ok {
				return nil, fmt.Errorf("relay connection closed mid-subscription")
			}
			var kind string
			if err := json.Unmarshal(frame[0], &kind); err != nil {
				continue
			}
			switch kind {
			case "EVENT":
				if len(frame) < 3 {
					continue
				}
				var event nostrEvent
				if err := json.Unmarshal(frame[2], &event); err != nil {
					continue
				}
				events = append(events, event)
			case "EOSE":
				return events, nil
			case "CLOSED":
				return nil, fmt.Errorf("relay closed subscription")
			}
		}
	}
}

func (c *nostrRelayConn) unsubscribe(subID string, sendClose bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, subID)
	if sendClose && !c.closed {
		_ = c.ws.WriteJSON([]any{"CLOSE", subID})
	}
}
