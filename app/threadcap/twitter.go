package threadcap

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
)

const twitterAPIBase = "https://api.twitter.com/2"

const twitterConversationStateKey = "twitter.conversation"

// maxTwitterSearchPages bounds conversation pagination: 50 pages of
// 100 results each.
const maxTwitterSearchPages = 50

var tweetStatusPathPattern = regexp.MustCompile(`^/[^/]+/status(?:es)?/(\d+)$`)

// twitterImplementation speaks the Twitter v2 API with an app bearer
// token. It resolves the tweet's conversation id once, pulls the
// whole conversation through the search endpoint into a session
// snapshot, and serves every subsequent lookup from that snapshot.
type twitterImplementation struct{}

type twitterTweet struct {
	id             string
	text           string
	createdAt      string
	authorID       string
	conversationID string
	inReplyTo      string
}

type twitterUser struct {
	id              string
	name            string
	username        string
	profileImageURL string
}

type twitterConversation struct {
	tweets  map[string]twitterTweet
	users   map[string]twitterUser
	replies map[string][]string
}

func (twitterImplementation) InitThreadcap(ctx context.Context, postURL string, sess *Session) (*Threadcap, error) {
	tweetID, err := tweetIDFromURL(postURL)
	if err != nil {
		return nil, err
	}
	if _, err := ensureTwitterConversation(ctx, sess, tweetID); err != nil {
		return nil, err
	}
	return &Threadcap{
		Protocol:   ProtocolTwitter,
		Roots:      []string{tweetID},
		Nodes:      make(map[string]*Node),
		Commenters: make(map[string]*Commenter),
	}, nil
}

func (twitterImplementation) FetchComment(ctx context.Context, id string, sess *Session) (*Comment, error) {
	conversation, err := ensureTwitterConversation(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	tweet, ok := conversation.tweets[id]
	if !ok {
		return nil, fmt.Errorf("tweet %s not in conversation snapshot", id)
	}
	return &Comment{
		URL:          "https://twitter.com/i/web/status/" + tweet.id,
		Published:    tweet.createdAt,
		Content:      map[string]string{"und": tweet.text},
		AttributedTo: tweet.authorID,
	}, nil
}

func (twitterImplementation) FetchCommenter(ctx context.Context, id string, sess *Session) (*Commenter, error) {
	conversation, ok := sess.State[twitterConversationStateKey].(*twitterConversation)
	if !ok {
		return nil, fmt.Errorf("twitter conversation snapshot not initialized")
	}
	user, ok := conversation.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not in conversation snapshot", id)
	}
	commenter := &Commenter{
		Name: user.name,
		Asof: sess.UpdateTime,
	}
	if user.username != "" {
		commenter.FqUsername = "@" + user.username
		commenter.URL = "https://twitter.com/" + user.username
	}
	if user.profileImageURL != "" {
		commenter.Icon = &Icon{URL: user.profileImageURL}
	}
	return commenter, nil
}

func (twitterImplementation) FetchReplies(ctx context.Context, id string, sess *Session) ([]string, error) {
	conversation, err := ensureTwitterConversation(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	return conversation.replies[id], nil
}

func tweetIDFromURL(postURL string) (string, error) {
	u, err := url.Parse(postURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse tweet url %s: %w", postURL, err)
	}
	m := tweetStatusPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", fmt.Errorf("unexpected tweet url shape: %s", postURL)
	}
	return m[1], nil
}

// ensureTwitterConversation returns the session's conversation
// snapshot, building it on first use: one tweet lookup to learn the
// conversation id, then a paginated conversation search.
func ensureTwitterConversation(ctx context.Context, sess *Session, tweetID string) (*twitterConversation, error) {
	if conversation, ok := sess.State[twitterConversationStateKey].(*twitterConversation); ok {
		return conversation, nil
	}

	conversation := &twitterConversation{
		tweets:  make(map[string]twitterTweet),
		users:   make(map[string]twitterUser),
		replies: make(map[string][]string),
	}

	lookupURL := twitterAPIBase + "/tweets/" + tweetID + "?" + twitterTweetParams().Encode()
	obj, err := findOrFetchJSON(ctx, lookupURL, sess, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to look up tweet %s: %w", tweetID, err)
	}
	data := objectProperty(obj, "data")
	if data == nil {
		return nil, fmt.Errorf("tweet lookup for %s returned no data", tweetID)
	}
	root := tweetFromObject(data)
	conversation.addTweet(root)
	conversation.addUsers(obj)

	conversationID := root.conversationID
	if conversationID == "" {
		conversationID = root.id
	}

	nextToken := ""
	for page := 0; page < maxTwitterSearchPages; page++ {
		params := twitterTweetParams()
		params.Set("query", "conversation_id:"+conversationID)
		params.Set("max_results", "100")
		if nextToken != "" {
			params.Set("next_token", nextToken)
		}
		searchURL := twitterAPIBase + "/tweets/search/recent?" + params.Encode()
		page, err := findOrFetchJSON(ctx, searchURL, sess, "application/json")
		if err != nil {
			return nil, fmt.Errorf("failed to search conversation %s: %w", conversationID, err)
		}
		for _, entry := range arrayProperty(page, "data") {
			if tweetObj, ok := entry.(map[string]any); ok {
				conversation.addTweet(tweetFromObject(tweetObj))
			}
		}
		conversation.addUsers(page)
		meta := objectProperty(page, "meta")
		nextToken = stringProperty(meta, "next_token")
		if nextToken == "" {
			break
		}
	}

	sess.State[twitterConversationStateKey] = conversation
	return conversation, nil
}

func twitterTweetParams() url.Values {
	return url.Values{
		"tweet.fields": {"created_at,author_id,conversation_id,referenced_tweets"},
		"expansions":   {"author_id"},
		"user.fields":  {"name,username,profile_image_url"},
	}
}

func tweetFromObject(obj map[string]any) twitterTweet {
	tweet := twitterTweet{
		id:             stringProperty(obj, "id"),
		text:           stringProperty(obj, "text"),
		createdAt:      stringProperty(obj, "created_at"),
		authorID:       stringProperty(obj, "author_id"),
		conversationID: stringProperty(obj, "conversation_id"),
	}
	for _, entry := range arrayProperty(obj, "referenced_tweets") {
		ref, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if stringProperty(ref, "type") == "replied_to" {
			tweet.inReplyTo = stringProperty(ref, "id")
		}
	}
	return tweet
}

func (c *twitterConversation) addTweet(tweet twitterTweet) {
	if tweet.id == "" {
		return
	}
	if _, ok := c.tweets[tweet.id]; ok {
		return
	}
	c.tweets[tweet.id] = tweet
	if tweet.inReplyTo != "" {
		c.replies[tweet.inReplyTo] = append(c.replies[tweet.inReplyTo], tweet.id)
	}
}

func (c *twitterConversation) addUsers(response map[string]any) {
	includes := objectProperty(response, "includes")
	if includes == nil {
		return
	}
	for _, entry := range arrayProperty(includes, "users") {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		user := twitterUser{
			id:              stringProperty(obj, "id"),
			name:            stringProperty(obj, "name"),
			username:        stringProperty(obj, "username"),
			profileImageURL: stringProperty(obj, "profile_image_url"),
		}
		if user.id != "" {
			if _, ok := c.users[user.id]; !ok {
				c.users[user.id] = user
			}
		}
	}
}
