package threadcap

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const blueskyAPIBase = "https://api.bsky.app/xrpc"

// maxBlueskyDepth is the depth requested from getPostThread; the
// whole thread arrives in one response, so this is the effective
// crawl depth per bootstrap.
const maxBlueskyDepth = 1000

const blueskyThreadStateKey = "bluesky.thread"

// blueskyImplementation resolves bsky.app post URLs through the
// public AT Protocol XRPC API. Unlike the other backends it loads the
// entire thread eagerly in InitThreadcap, because getPostThread
// returns the whole subtree at once; the per-node fetches then serve
// from that snapshot.
type blueskyImplementation struct{}

type blueskyThreadNode struct {
	comment   *Comment
	commenter *Commenter
	replies   []string
}

func (blueskyImplementation) InitThreadcap(ctx context.Context, postURL string, sess *Session) (*Threadcap, error) {
	atURI, err := resolveBlueskyPostURI(ctx, postURL, sess)
	if err != nil {
		return nil, err
	}
	threadURL := blueskyAPIBase + "/app.bsky.feed.getPostThread?" + url.Values{
		"uri":   {atURI},
		"depth": {fmt.Sprintf("%d", maxBlueskyDepth)},
	}.Encode()
	obj, err := findOrFetchJSON(ctx, threadURL, sess, "application/json")
	if err != nil {
		return nil, err
	}
	thread := objectProperty(obj, "thread")
	if thread == nil {
		return nil, fmt.Errorf("getPostThread response for %s has no thread", atURI)
	}
	snapshot := make(map[string]*blueskyThreadNode)
	rootID, err := flattenBlueskyThread(thread, snapshot, sess)
	if err != nil {
		return nil, err
	}
	sess.State[blueskyThreadStateKey] = snapshot

	// Unlike the level-by-level backends, the whole requested depth
	// is already in hand, so pre-populate the maps eagerly. The
	// crawler then sees every entry as fresh and only walks them.
	tc := &Threadcap{
		Protocol:   ProtocolBluesky,
		Roots:      []string{rootID},
		Nodes:      make(map[string]*Node),
		Commenters: make(map[string]*Commenter),
	}
	asof := sess.UpdateTime
	for uri, entry := range snapshot {
		node := &Node{
			Comment:     entry.comment,
			CommentAsof: &asof,
			Replies:     entry.replies,
			RepliesAsof: &asof,
		}
		tc.Nodes[uri] = node
		if entry.commenter != nil && entry.comment != nil {
			tc.Commenters[entry.comment.AttributedTo] = entry.commenter
		}
	}
	return tc, nil
}

func (blueskyImplementation) FetchComment(ctx context.Context, id string, sess *Session) (*Comment, error) {
	node, err := blueskyThreadNodeFor(ctx, id, sess)
	if err != nil {
		return nil, err
	}
	return node.comment, nil
}

func (blueskyImplementation) FetchCommenter(ctx context.Context, id string, sess *Session) (*Commenter, error) {
	nodes, _ := sess.State[blueskyThreadStateKey].(map[string]*blueskyThreadNode)
	for _, node := range nodes {
		if node.comment != nil && node.comment.AttributedTo == id && node.commenter != nil {
			return node.commenter, nil
		}
	}
	return nil, fmt.Errorf("no author %s in thread snapshot", id)
}

func (blueskyImplementation) FetchReplies(ctx context.Context, id string, sess *Session) ([]string, error) {
	node, err := blueskyThreadNodeFor(ctx, id, sess)
	if err != nil {
		return nil, err
	}
	return node.replies, nil
}

// blueskyThreadNodeFor serves a node from the session snapshot,
// refetching it individually when the snapshot does not cover it.
// The miss path runs on incremental refreshes, where a fresh session
// starts without the bootstrap snapshot.
func blueskyThreadNodeFor(ctx context.Context, id string, sess *Session) (*blueskyThreadNode, error) {
	nodes, ok := sess.State[blueskyThreadStateKey].(map[string]*blueskyThreadNode)
	if !ok {
		nodes = make(map[string]*blueskyThreadNode)
		sess.State[blueskyThreadStateKey] = nodes
	}
	if node, ok := nodes[id]; ok {
		return node, nil
	}
	threadURL := blueskyAPIBase + "/app.bsky.feed.getPostThread?" + url.Values{
		"uri":   {id},
		"depth": {"1"},
	}.Encode()
	obj, err := findOrFetchJSON(ctx, threadURL, sess, "application/json")
	if err != nil {
		return nil, err
	}
	thread := objectProperty(obj, "thread")
	if thread == nil {
		return nil, fmt.Errorf("getPostThread response for %s has no thread", id)
	}
	if _, err := flattenBlueskyThread(thread, nodes, sess); err != nil {
		return nil, err
	}
	node, ok := nodes[id]
	if !ok {
		return nil, fmt.Errorf("no post %s in thread snapshot", id)
	}
	return node, nil
}

// resolveBlueskyPostURI turns a bsky.app web URL into an at:// URI,
// resolving a handle to its DID when needed. An at:// input passes
// through untouched.
func resolveBlueskyPostURI(ctx context.Context, postURL string, sess *Session) (string, error) {
	if strings.HasPrefix(postURL, "at://") {
		return postURL, nil
	}
	u, err := url.Parse(postURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse bluesky url %s: %w", postURL, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	// Expected shape: /profile/{handleOrDid}/post/{rkey}
	if len(segments) != 4 || segments[0] != "profile" || segments[2] != "post" {
		return "", fmt.Errorf("unexpected bluesky post url shape: %s", postURL)
	}
	actor, rkey := segments[1], segments[3]
	did := actor
	if !strings.HasPrefix(actor, "did:") {
		did, err = resolveBlueskyDID(ctx, actor, sess)
		if err != nil {
			return "", err
		}
	}
	return "at://" + did + "/app.bsky.feed.post/" + rkey, nil
}

func resolveBlueskyDID(ctx context.Context, handle string, sess *Session) (string, error) {
	profileURL := blueskyAPIBase + "/app.bsky.actor.getProfile?" + url.Values{"actor": {handle}}.Encode()
	obj, err := findOrFetchJSON(ctx, profileURL, sess, "application/json")
	if err != nil {
		return "", fmt.Errorf("failed to resolve handle %s: %w", handle, err)
	}
	did := stringProperty(obj, "did")
	if did == "" {
		return "", fmt.Errorf("profile for %s has no did", handle)
	}
	return did, nil
}

// flattenBlueskyThread walks a getPostThread subtree into the
// snapshot map, returning the subtree root's post URI. Blocked and
// not-found placeholders are skipped with a warning.
func flattenBlueskyThread(thread map[string]any, nodes map[string]*blueskyThreadNode, sess *Session) (string, error) {
	post := objectProperty(thread, "post")
	if post == nil {
		return "", fmt.Errorf("thread view has no post (type %q)", stringProperty(thread, "$type"))
	}
	uri := stringProperty(post, "uri")
	if uri == "" {
		return "", fmt.Errorf("thread post has no uri")
	}

	node := &blueskyThreadNode{comment: blueskyComment(post)}
	if author := objectProperty(post, "author"); author != nil {
		node.commenter = blueskyCommenter(author, sess)
	}
	for _, entry := range arrayProperty(thread, "replies") {
		reply, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		replyID, err := flattenBlueskyThread(reply, nodes, sess)
		if err != nil {
			sess.warning(uri, "", fmt.Sprintf("skipping reply: %v", err))
			continue
		}
		node.replies = append(node.replies, replyID)
	}
	nodes[uri] = node
	return uri, nil
}

func blueskyComment(post map[string]any) *Comment {
	record := objectProperty(post, "record")
	comment := &Comment{
		Content: map[string]string{"und": stringProperty(record, "text")},
	}
	if author := objectProperty(post, "author"); author != nil {
		comment.AttributedTo = stringProperty(author, "did")
	}
	comment.Published = stringProperty(record, "createdAt")
	if uri := stringProperty(post, "uri"); uri != "" {
		comment.URL = blueskyWebURL(uri, objectProperty(post, "author"))
	}
	if embed := objectProperty(post, "embed"); embed != nil {
		for _, entry := range arrayProperty(embed, "images") {
			image, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if fullsize := stringProperty(image, "fullsize"); fullsize != "" {
				comment.Attachments = append(comment.Attachments, Attachment{URL: fullsize, MediaType: "image/jpeg"})
			}
		}
	}
	return comment
}

func blueskyCommenter(author map[string]any, sess *Session) *Commenter {
	handle := stringProperty(author, "handle")
	name := stringProperty(author, "displayName")
	if name == "" {
		name = handle
	}
	commenter := &Commenter{
		Name:       name,
		FqUsername: handle,
		Asof:       sess.UpdateTime,
	}
	if handle != "" {
		commenter.URL = "https://bsky.app/profile/" + handle
	}
	if avatar := stringProperty(author, "avatar"); avatar != "" {
		commenter.Icon = &Icon{URL: avatar}
	}
	return commenter
}

// blueskyWebURL rebuilds the human-facing bsky.app URL for a post.
func blueskyWebURL(atURI string, author map[string]any) string {
	rest, ok := strings.CutPrefix(atURI, "at://")
	if !ok {
		return ""
	}
	segments := strings.Split(rest, "/")
	if len(segments) != 3 {
		return ""
	}
	actor := segments[0]
	if handle := stringProperty(author, "handle"); handle != "" {
		actor = handle
	}
	return "https://bsky.app/profile/" + actor + "/post/" + segments[2]
}
