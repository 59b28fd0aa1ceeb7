package threadcap

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const activityPubAccept = "application/activity+json"

// maxCollectionPages bounds replies pagination per node so a
// malicious collection cannot loop forever.
const maxCollectionPages = 100

// activityPubImplementation speaks plain ActivityPub object fetches
// against Mastodon, Pleroma and compatible servers.
type activityPubImplementation struct{}

func (activityPubImplementation) InitThreadcap(ctx context.Context, postURL string, sess *Session) (*Threadcap, error) {
	obj, err := fetchActivityPubObject(ctx, postURL, sess)
	if err != nil {
		return nil, err
	}
	id := stringProperty(obj, "id")
	if id == "" {
		return nil, fmt.Errorf("activitypub object at %s has no id", postURL)
	}
	return &Threadcap{
		Protocol:   ProtocolActivityPub,
		Roots:      []string{id},
		Nodes:      make(map[string]*Node),
		Commenters: make(map[string]*Commenter),
	}, nil
}

func (activityPubImplementation) FetchComment(ctx context.Context, id string, sess *Session) (*Comment, error) {
	obj, err := fetchActivityPubObject(ctx, id, sess)
	if err != nil {
		return nil, err
	}
	return commentFromActivityPubObject(obj, id)
}

func (activityPubImplementation) FetchCommenter(ctx context.Context, id string, sess *Session) (*Commenter, error) {
	actor, err := fetchActivityPubObject(ctx, id, sess)
	if err != nil {
		return nil, err
	}
	name := stringProperty(actor, "name")
	preferredUsername := stringProperty(actor, "preferredUsername")
	if name == "" {
		name = preferredUsername
	}
	commenter := &Commenter{
		Name: name,
		URL:  stringProperty(actor, "url"),
		Asof: sess.UpdateTime,
	}
	if preferredUsername != "" {
		if host := hostnameOf(id); host != "" {
			commenter.FqUsername = "@" + preferredUsername + "@" + host
		}
	}
	if icon := objectOrFirst(actor, "icon"); icon != nil {
		if iconURL := stringProperty(icon, "url"); iconURL != "" {
			commenter.Icon = &Icon{URL: iconURL, MediaType: stringProperty(icon, "mediaType")}
		}
	}
	return commenter, nil
}

func (activityPubImplementation) FetchReplies(ctx context.Context, id string, sess *Session) ([]string, error) {
	obj, err := fetchActivityPubObject(ctx, id, sess)
	if err != nil {
		return nil, err
	}
	replies, ok := obj["replies"]
	if !ok || replies == nil {
		// Pleroma strips the replies collection. Fall back to the
		// Mastodon-compatible context endpoint; a failed fallback is
		// a warning, not an error, and yields no replies.
		ids, fallbackErr := fetchRepliesViaContextAPI(ctx, id, sess)
		if fallbackErr != nil {
			sess.warning(id, id, fmt.Sprintf("no replies collection and context fallback failed: %v", fallbackErr))
			return []string{}, nil
		}
		return ids, nil
	}
	switch v := replies.(type) {
	case string:
		collection, err := fetchActivityPubObject(ctx, v, sess)
		if err != nil {
			return nil, err
		}
		return collectCollectionItems(ctx, collection, sess)
	case map[string]any:
		return collectCollectionItems(ctx, v, sess)
	case []any:
		return collectionItemIDs(v), nil
	default:
		return nil, fmt.Errorf("unexpected replies shape %T on %s", replies, id)
	}
}

// fetchActivityPubObject fetches an object by id, transparently
// unwrapping a Create activity wrapper when a server hands one back.
func fetchActivityPubObject(ctx context.Context, objectURL string, sess *Session) (map[string]any, error) {
	obj, err := findOrFetchJSON(ctx, objectURL, sess, activityPubAccept)
	if err != nil {
		return nil, err
	}
	if stringProperty(obj, "type") == "Create" {
		if inner := objectProperty(obj, "object"); inner != nil {
			sess.warning("", objectURL, "unwrapping Create activity to its inner object")
			return inner, nil
		}
	}
	return obj, nil
}

func commentFromActivityPubObject(obj map[string]any, id string) (*Comment, error) {
	comment := &Comment{
		Published: stringProperty(obj, "published"),
		Content:   languageMap(obj, "contentMap", "content"),
		Summary:   languageMap(obj, "summaryMap", "summary"),
	}

	switch attributedTo := obj["attributedTo"].(type) {
	case string:
		comment.AttributedTo = attributedTo
	case map[string]any:
		comment.AttributedTo = stringProperty(attributedTo, "id")
	}
	if comment.AttributedTo == "" {
		return nil, fmt.Errorf("activitypub object %s has no attributedTo", id)
	}

	switch u := obj["url"].(type) {
	case string:
		comment.URL = u
	case map[string]any:
		comment.URL = stringProperty(u, "href")
	case []any:
		for _, entry := range u {
			if link, ok := entry.(map[string]any); ok {
				if href := stringProperty(link, "href"); href != "" {
					comment.URL = href
					break
				}
			}
		}
	}

	for _, entry := range attachmentObjects(obj) {
		attachment := Attachment{
			MediaType: stringProperty(entry, "mediaType"),
			URL:       stringProperty(entry, "url"),
		}
		if width, ok := entry["width"].(float64); ok {
			attachment.Width = int(width)
		}
		if height, ok := entry["height"].(float64); ok {
			attachment.Height = int(height)
		}
		if attachment.URL != "" {
			comment.Attachments = append(comment.Attachments, attachment)
		}
	}

	if stringProperty(obj, "type") == "Question" {
		options := arrayProperty(obj, "oneOf")
		if len(options) == 0 {
			options = arrayProperty(obj, "anyOf")
		}
		for _, option := range options {
			if entry, ok := option.(map[string]any); ok {
				if name := stringProperty(entry, "name"); name != "" {
					comment.QuestionOptions = append(comment.QuestionOptions, name)
				}
			}
		}
	}

	if len(comment.Content) == 0 {
		return nil, fmt.Errorf("activitypub object %s has no content", id)
	}
	return comment, nil
}

// languageMap prefers the *Map form (language tag to markup) and
// falls back to the plain property under the undetermined tag.
func languageMap(obj map[string]any, mapKey, plainKey string) map[string]string {
	if raw := objectProperty(obj, mapKey); raw != nil {
		out := make(map[string]string, len(raw))
		for lang, value := range raw {
			if text, ok := value.(string); ok {
				out[lang] = text
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if plain := stringProperty(obj, plainKey); plain != "" {
		return map[string]string{"und": plain}
	}
	return nil
}

func attachmentObjects(obj map[string]any) []map[string]any {
	var out []map[string]any
	raw, ok := obj["attachment"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case map[string]any:
		out = append(out, v)
	case []any:
		for _, entry := range v {
			if m, ok := entry.(map[string]any); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

func objectOrFirst(obj map[string]any, key string) map[string]any {
	switch v := obj[key].(type) {
	case map[string]any:
		return v
	case []any:
		for _, entry := range v {
			if m, ok := entry.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// collectCollectionItems walks an ActivityPub collection: inline
// items or orderedItems, or a first page followed by next links.
func collectCollectionItems(ctx context.Context, collection map[string]any, sess *Session) ([]string, error) {
	if items := inlineCollectionItems(collection); items != nil {
		return items, nil
	}
	page, err := resolveCollectionPage(ctx, collection["first"], sess)
	if err != nil {
		return nil, err
	}
	var ids []string
	for pages := 0; page != nil && pages < maxCollectionPages; pages++ {
		if items := inlineCollectionItems(page); items != nil {
			ids = append(ids, items...)
		}
		next, err := resolveCollectionPage(ctx, page["next"], sess)
		if err != nil {
			return nil, err
		}
		page = next
	}
	return ids, nil
}

func inlineCollectionItems(collection map[string]any) []string {
	for _, key := range []string{"items", "orderedItems"} {
		if raw, ok := collection[key].([]any); ok {
			return collectionItemIDs(raw)
		}
	}
	return nil
}

func collectionItemIDs(items []any) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			ids = append(ids, v)
		case map[string]any:
			if id := stringProperty(v, "id"); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func resolveCollectionPage(ctx context.Context, ref any, sess *Session) (map[string]any, error) {
	switch v := ref.(type) {
	case nil:
		return nil, nil
	case string:
		return fetchActivityPubObject(ctx, v, sess)
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected collection page reference %T", ref)
	}
}

// fetchRepliesViaContextAPI asks the server's status context endpoint
// for descendants and keeps only the direct children of id.
func fetchRepliesViaContextAPI(ctx context.Context, id string, sess *Session) ([]string, error) {
	u, err := url.Parse(id)
	if err != nil {
		return nil, err
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return nil, fmt.Errorf("cannot derive status id from %s", id)
	}
	statusID := segments[len(segments)-1]
	contextURL := u.Scheme + "://" + u.Host + "/api/v1/statuses/" + statusID + "/context"
	obj, err := findOrFetchJSON(ctx, contextURL, sess, "application/json")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, entry := range arrayProperty(obj, "descendants") {
		status, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if stringProperty(status, "in_reply_to_id") != statusID {
			continue
		}
		if statusURI := stringProperty(status, "uri"); statusURI != "" {
			ids = append(ids, statusURI)
		}
	}
	return ids, nil
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
