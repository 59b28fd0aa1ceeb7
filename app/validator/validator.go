package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/skymethod/livewire-validator-sub001/app/xmltree"
)

var (
	refRSS = &Reference{RuleSet: "rss", Href: "https://cyber.harvard.edu/rss/rss.html"}
	refApple = &Reference{RuleSet: "itunes", Href: "https://podcasters.apple.com/support/823-podcast-requirements"}
)

func refPodcast(anchor string) *Reference {
	return &Reference{RuleSet: "podcastindex", Href: NamespaceURIPodcastGithub + "#" + anchor}
}

// validationState accumulates bookkeeping emitted once after all
// elements are checked. It is an aggregation side channel, not a
// correctness check.
type validationState struct {
	itemCount               int
	itemsWithEnclosureCount int
	liveItemCount           int
	knownPodcastTags        map[string]bool
	unknownPodcastTags      map[string]bool
	misspelledNamespaceTags map[string]bool
}

// ValidateFeed walks the tree (already decorated by
// xmltree.ApplyQnames) and reports diagnostics through callbacks.
// Errors are reserved for structural problems: a bad root element or
// a missing channel. Everything else, however broken, is a warning.
func ValidateFeed(root *xmltree.Node, callbacks Callbacks) {
	cb := &callbacks
	elements := root.ChildNodes()
	if len(elements) == 0 {
		cb.error(Message{Text: "No root element found", Reference: refRSS})
		return
	}
	doc := elements[0]
	if doc.Qname == (xmltree.Qname{Name: "feed", NamespaceURI: NamespaceURIAtom}) {
		cb.info(Message{Text: "Atom feed detected: only RSS 2.0 feeds are checked against the podcast rule sets", Node: doc})
		return
	}
	if doc.Qname.Name != "rss" || doc.Qname.NamespaceURI != "" {
		cb.error(Message{
			Text:      fmt.Sprintf("Bad root element <%s>, expected <rss>", doc.TagName),
			Node:      doc,
			Reference: refRSS,
		})
		return
	}

	checkElement("<rss>", doc, cb, refRSS).
		RequiredAttribute("version", ValueRule{func(s string) bool { return s == "2.0" }, `"2.0"`}).
		RemainingAttributes()

	channels := findChildElements(doc, plainQname("channel"))
	if len(channels) == 0 {
		cb.error(Message{Text: "Missing <channel> in <rss>", Node: doc, Reference: refRSS})
		return
	}
	if len(channels) > 1 {
		cb.warning(Message{Text: fmt.Sprintf("Found %d <channel> elements, expected 1", len(channels)), Node: doc, Reference: refRSS})
	}
	channel := channels[0]
	cb.good(Message{Text: "Found RSS 2.0 feed structure", Node: doc, Reference: refRSS})

	state := &validationState{
		knownPodcastTags:        make(map[string]bool),
		unknownPodcastTags:      make(map[string]bool),
		misspelledNamespaceTags: make(map[string]bool),
	}

	validateChannel(channel, cb, state)
	tallyPodcastTags(channel, cb, state)

	if cb.OnRssItemsFound != nil {
		cb.OnRssItemsFound(state.itemCount, state.itemsWithEnclosureCount)
	}
	if cb.OnPodcastIndexTagNamesFound != nil {
		cb.OnPodcastIndexTagNamesFound(sortedKeys(state.knownPodcastTags), sortedKeys(state.unknownPodcastTags))
	}
	if cb.OnPodcastIndexLiveItemsFound != nil {
		cb.OnPodcastIndexLiveItemsFound(state.liveItemCount)
	}
}

func validateChannel(channel *xmltree.Node, cb *Callbacks, state *validationState) {
	checkRequiredTextChild(channel, "channel", "title", notEmptyValue, cb, refRSS)
	checkRequiredTextChild(channel, "channel", "link", urlValue, cb, refRSS)
	checkRequiredTextChild(channel, "channel", "description", notEmptyValue, cb, refRSS)

	checkOptionalTextChild(channel, "channel", "language", languageTagValue, cb, refRSS)
	checkOptionalTextChild(channel, "channel", "managingEditor", emailValue, cb, refRSS)
	checkOptionalTextChild(channel, "channel", "webMaster", emailValue, cb, refRSS)
	checkOptionalTextChild(channel, "channel", "pubDate", rfc2822Value, cb, refRSS)
	checkOptionalTextChild(channel, "channel", "lastBuildDate", rfc2822Value, cb, refRSS)
	checkOptionalTextChild(channel, "channel", "ttl", nonNegativeIntValue, cb, refRSS)
	checkOptionalTextChild(channel, "channel", "docs", urlValue, cb, refRSS)
	checkOptionalTextChild(channel, "channel", "generator", anyValue, cb, refRSS)

	if image := findFirstChildElement(channel, plainQname("image")); image != nil {
		checkRequiredTextChild(image, "image", "url", urlValue, cb, refRSS)
		checkRequiredTextChild(image, "image", "title", notEmptyValue, cb, refRSS)
		checkRequiredTextChild(image, "image", "link", urlValue, cb, refRSS)
	}

	if itunesImage := findFirstChildElement(channel, itunesQname("image")); itunesImage != nil {
		checkElement("<itunes:image>", itunesImage, cb, refApple).
			RequiredAttribute("href", urlValue).
			RemainingAttributes()
	}
	checkOptionalItunesText(channel, "explicit", ValueRule{func(s string) bool {
		lower := strings.ToLower(s)
		return lower == "true" || lower == "false" || lower == "yes" || lower == "no"
	}, "true, false, yes or no"}, cb)

	validatePodcastChannelTags(channel, cb, state)

	items := findChildElements(channel, plainQname("item"))
	state.itemCount = len(items)
	for _, item := range items {
		validateItem(item, cb, state)
	}

	liveItems := findChildElements(channel, podcastQnames("liveItem")...)
	state.liveItemCount = len(liveItems)
	for _, liveItem := range liveItems {
		validateLiveItem(liveItem, cb, state)
	}
}

func validateItem(item *xmltree.Node, cb *Callbacks, state *validationState) {
	titles := findChildElements(item, plainQname("title"))
	descriptions := findChildElements(item, plainQname("description"))
	if len(titles) == 0 && len(descriptions) == 0 {
		cb.warning(Message{Text: "Item has neither <title> nor <description>, at least one is required", Node: item, Reference: refRSS})
	}
	if len(titles) > 0 {
		checkElement("<item> <title>", titles[0], cb, refRSS).Value(notEmptyValue)
	}

	checkOptionalTextChild(item, "item", "link", urlValue, cb, refRSS)
	checkOptionalTextChild(item, "item", "pubDate", rfc2822Value, cb, refRSS)
	checkOptionalTextChild(item, "item", "author", emailValue, cb, refRSS)

	validateItemGuid(item, cb)
	validateItemEnclosure(item, cb, state)

	checkOptionalItunesText(item, "episodeType", ValueRule{func(s string) bool {
		return s == "full" || s == "trailer" || s == "bonus"
	}, "full, trailer or bonus"}, cb)

	validatePodcastItemTags(item, cb, state)
}

// appleEnclosureExtensions lists file extensions Apple Podcasts
// accepts for enclosures.
var appleEnclosureExtensions = []string{".m4a", ".mp3", ".mov", ".mp4", ".m4v", ".pdf"}

func validateItemEnclosure(item *xmltree.Node, cb *Callbacks, state *validationState) {
	enclosures := findChildElements(item, plainQname("enclosure"))
	if len(enclosures) == 0 {
		cb.warning(Message{Text: "Missing <enclosure> in <item>: podcast items need an enclosure to be playable", Node: item, Reference: refRSS})
		return
	}
	state.itemsWithEnclosureCount++
	if len(enclosures) > 1 {
		cb.warning(Message{Text: fmt.Sprintf("Found %d <enclosure> elements in <item>, expected 1", len(enclosures)), Node: item, Reference: refRSS})
	}
	enclosure := enclosures[0]
	checkElement("<enclosure>", enclosure, cb, refRSS).
		RequiredAttribute("url", urlValue).
		RequiredAttribute("length", nonNegativeIntValue).
		RequiredAttribute("type", mimeTypeValue).
		RemainingAttributes()

	if enclosureURL, ok := enclosure.Atts["url"]; ok && isURL(strings.TrimSpace(enclosureURL)) {
		if !hasAnySuffix(pathOf(strings.TrimSpace(enclosureURL)), appleEnclosureExtensions) {
			cb.warning(Message{
				Text:      fmt.Sprintf("Enclosure url %q does not use a file extension supported by Apple Podcasts (%s)", strings.TrimSpace(enclosureURL), strings.Join(appleEnclosureExtensions, ", ")),
				Node:      enclosure,
				Tag:       "enclosure-extension",
				Reference: refApple,
			})
		}
	}
}

func validateItemGuid(item *xmltree.Node, cb *Callbacks) {
	guid := findFirstChildElement(item, plainQname("guid"))
	if guid == nil {
		return
	}
	check := checkElement("<guid>", guid, cb, refRSS).Value(notEmptyValue)

	// Catch the frequent isPermaLink misspellings before the
	// closed-world sweep reports them as merely unexpected.
	for name := range guid.Atts {
		if name != "isPermaLink" && strings.EqualFold(name, "isPermaLink") {
			cb.warning(Message{
				Text:      fmt.Sprintf("Misspelled <guid> attribute %q, expected \"isPermaLink\"", name),
				Node:      guid,
				Reference: refRSS,
			})
		}
	}
	check.OptionalAttribute("isPermaLink", booleanValue).RemainingAttributes()

	// isPermaLink defaults to true, so a non-URL guid without
	// isPermaLink="false" is suspicious.
	text := strings.TrimSpace(guid.Text)
	if guid.Atts["isPermaLink"] != "false" && text != "" && !isURL(text) {
		cb.warning(Message{
			Text:      fmt.Sprintf("<guid> value %q is not a URL: either use a URL or set isPermaLink=\"false\"", text),
			Node:      guid,
			Reference: refRSS,
		})
	}
}

// tallyPodcastTags walks the whole channel subtree recording which
// podcast namespace tags appeared (known vs unrecognized) and which
// namespace URI variants were used.
func tallyPodcastTags(node *xmltree.Node, cb *Callbacks, state *validationState) {
	for _, child := range node.ChildNodes() {
		if isPodcastNamespace(child.Qname.NamespaceURI) {
			name := child.Qname.Name
			if knownPodcastNames[name] {
				state.knownPodcastTags[name] = true
			} else {
				state.unknownPodcastTags[name] = true
			}
			if child.Qname.NamespaceURI == NamespaceURIPodcastBadSlash && !state.misspelledNamespaceTags[name] {
				state.misspelledNamespaceTags[name] = true
				cb.warning(Message{
					Text:      fmt.Sprintf("<podcast:%s> uses namespace %q: drop the trailing slash, the namespace is %q", name, NamespaceURIPodcastBadSlash, NamespaceURIPodcast),
					Node:      child,
					Tag:       "podcast-namespace-slash-" + name,
					Reference: refPodcast(""),
				})
			}
		}
		tallyPodcastTags(child, cb, state)
	}
}

func checkRequiredTextChild(parent *xmltree.Node, parentName, name string, rule ValueRule, cb *Callbacks, ref *Reference) {
	children := findChildElements(parent, plainQname(name))
	if len(children) == 0 {
		cb.warning(Message{
			Text:      fmt.Sprintf("Missing <%s> in <%s>", name, parentName),
			Node:      parent,
			Reference: ref,
		})
		return
	}
	if len(children) > 1 {
		cb.warning(Message{
			Text:      fmt.Sprintf("Found %d <%s> elements in <%s>, expected 1", len(children), name, parentName),
			Node:      parent,
			Reference: ref,
		})
	}
	checkElement("<"+name+">", children[0], cb, ref).Value(orNotEmpty(rule))
}

func checkOptionalTextChild(parent *xmltree.Node, parentName, name string, rule ValueRule, cb *Callbacks, ref *Reference) {
	child := findFirstChildElement(parent, plainQname(name))
	if child == nil {
		return
	}
	checkElement("<"+name+">", child, cb, ref).Value(rule)
}

func checkOptionalItunesText(parent *xmltree.Node, name string, rule ValueRule, cb *Callbacks) {
	child := findFirstChildElement(parent, itunesQname(name))
	if child == nil {
		return
	}
	checkElement("<itunes:"+name+">", child, cb, refApple).Value(rule)
}

// orNotEmpty strengthens a rule so empty text always fails for
// required children.
func orNotEmpty(rule ValueRule) ValueRule {
	if rule.Test == nil {
		return notEmptyValue
	}
	return rule
}

func hasAnySuffix(s string, suffixes []string) bool {
	lower := strings.ToLower(s)
	for _, suffix := range suffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func pathOf(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
