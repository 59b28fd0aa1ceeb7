package validator

import (
	"fmt"
	"strings"

	"github.com/skymethod/livewire-validator-sub001/app/xmltree"
)

// Podcast namespace rule families. Each check follows the published
// tag documentation; the Reference anchors point at the per-tag
// sections of the namespace docs.

func validatePodcastChannelTags(channel *xmltree.Node, cb *Callbacks, state *validationState) {
	if guid := findFirstChildElement(channel, podcastQnames("guid")...); guid != nil {
		checkElement("<podcast:guid>", guid, cb, refPodcast("guid")).
			Value(uuidValue).
			RemainingAttributes()
	}

	if medium := findFirstChildElement(channel, podcastQnames("medium")...); medium != nil {
		checkElement("<podcast:medium>", medium, cb, refPodcast("medium")).
			Value(ValueRule{isMedium, "a medium slug such as podcast, music, video, film, audiobook, newsletter, blog or publisher"}).
			RemainingAttributes()
	}

	if locked := findFirstChildElement(channel, podcastQnames("locked")...); locked != nil {
		checkElement("<podcast:locked>", locked, cb, refPodcast("locked")).
			Value(yesNoValue).
			OptionalAttribute("owner", emailValue).
			RemainingAttributes()
	}

	for _, funding := range findChildElements(channel, podcastQnames("funding")...) {
		checkElement("<podcast:funding>", funding, cb, refPodcast("funding")).
			RequiredAttribute("url", urlValue).
			Value(notEmptyValue).
			RemainingAttributes()
	}

	for _, trailer := range findChildElements(channel, podcastQnames("trailer")...) {
		checkElement("<podcast:trailer>", trailer, cb, refPodcast("trailer")).
			RequiredAttribute("url", urlValue).
			RequiredAttribute("pubdate", rfc2822Value).
			OptionalAttribute("length", nonNegativeIntValue).
			OptionalAttribute("type", mimeTypeValue).
			OptionalAttribute("season", positiveIntValue).
			Value(notEmptyValue).
			RemainingAttributes()
	}

	if license := findFirstChildElement(channel, podcastQnames("license")...); license != nil {
		checkElement("<podcast:license>", license, cb, refPodcast("license")).
			OptionalAttribute("url", urlValue).
			Value(notEmptyValue).
			RemainingAttributes()
	}

	if images := findFirstChildElement(channel, podcastQnames("images")...); images != nil {
		checkElement("<podcast:images>", images, cb, refPodcast("images")).
			RequiredAttribute("srcset", notEmptyValue).
			RemainingAttributes()
	}

	if block := findFirstChildElement(channel, podcastQnames("block")...); block != nil {
		checkElement("<podcast:block>", block, cb, refPodcast("block")).
			Value(yesNoValue).
			OptionalAttribute("id", notEmptyValue).
			RemainingAttributes()
	}

	if complete := findFirstChildElement(channel, podcastQnames("complete")...); complete != nil {
		checkElement("<podcast:complete>", complete, cb, refPodcast("complete")).
			Value(yesNoValue).
			RemainingAttributes()
	}

	if podroll := findFirstChildElement(channel, podcastQnames("podroll")...); podroll != nil {
		checkElement("<podcast:podroll>", podroll, cb, refPodcast("podroll")).RemainingAttributes()
		remoteItems := findChildElements(podroll, podcastQnames("remoteItem")...)
		if len(remoteItems) == 0 {
			cb.warning(Message{
				Text:      "<podcast:podroll> requires at least one <podcast:remoteItem> child",
				Node:      podroll,
				Reference: refPodcast("podroll"),
			})
		}
		for _, remoteItem := range remoteItems {
			validateRemoteItem(remoteItem, cb)
		}
	}

	if updateFrequency := findFirstChildElement(channel, podcastQnames("updateFrequency")...); updateFrequency != nil {
		// dtstart becomes required when the rrule is bounded with a
		// COUNT, since the count needs an anchor date.
		rrule := strings.TrimSpace(updateFrequency.Atts["rrule"])
		checkElement("<podcast:updateFrequency>", updateFrequency, cb, refPodcast("updateFrequency")).
			Value(notEmptyValue).
			OptionalAttribute("complete", booleanValue).
			OptionalAttribute("rrule", recurrenceRuleValue).
			RequiredAttributeIf("dtstart", strings.Contains(rrule, "COUNT="), iso8601Value).
			RemainingAttributes()
	}

	if chat := findFirstChildElement(channel, podcastQnames("chat")...); chat != nil {
		validateChat(chat, cb)
	}

	for _, txt := range findChildElements(channel, podcastQnames("txt")...) {
		checkElement("<podcast:txt>", txt, cb, refPodcast("txt")).
			Value(notEmptyValue).
			OptionalAttribute("purpose", notEmptyValue).
			RemainingAttributes()
	}

	validateSharedTags(channel, cb)
}

func validatePodcastItemTags(item *xmltree.Node, cb *Callbacks, state *validationState) {
	for _, transcript := range findChildElements(item, podcastQnames("transcript")...) {
		checkElement("<podcast:transcript>", transcript, cb, refPodcast("transcript")).
			RequiredAttribute("url", urlValue).
			RequiredAttribute("type", mimeTypeValue).
			OptionalAttribute("language", languageTagValue).
			OptionalAttribute("rel", notEmptyValue).
			RemainingAttributes()
	}

	if chapters := findFirstChildElement(item, podcastQnames("chapters")...); chapters != nil {
		checkElement("<podcast:chapters>", chapters, cb, refPodcast("chapters")).
			RequiredAttribute("url", urlValue).
			RequiredAttribute("type", mimeTypeValue).
			RemainingAttributes()
	}

	for _, soundbite := range findChildElements(item, podcastQnames("soundbite")...) {
		checkElement("<podcast:soundbite>", soundbite, cb, refPodcast("soundbite")).
			RequiredAttribute("startTime", secondsValue).
			RequiredAttribute("duration", secondsValue).
			RemainingAttributes()
	}

	if season := findFirstChildElement(item, podcastQnames("season")...); season != nil {
		checkElement("<podcast:season>", season, cb, refPodcast("season")).
			Value(positiveIntValue).
			OptionalAttribute("name", notEmptyValue).
			RemainingAttributes()
	}

	if episode := findFirstChildElement(item, podcastQnames("episode")...); episode != nil {
		checkElement("<podcast:episode>", episode, cb, refPodcast("episode")).
			Value(decimalValue).
			OptionalAttribute("display", notEmptyValue).
			RemainingAttributes()
	}

	for _, alternateEnclosure := range findChildElements(item, podcastQnames("alternateEnclosure")...) {
		validateAlternateEnclosure(alternateEnclosure, cb)
	}

	for _, socialInteract := range findChildElements(item, podcastQnames("socialInteract")...) {
		validateSocialInteract(socialInteract, cb)
	}

	if chat := findFirstChildElement(item, podcastQnames("chat")...); chat != nil {
		validateChat(chat, cb)
	}

	validateSharedTags(item, cb)
}

// validateSharedTags checks tags allowed at both channel and item
// level.
func validateSharedTags(parent *xmltree.Node, cb *Callbacks) {
	for _, person := range findChildElements(parent, podcastQnames("person")...) {
		checkElement("<podcast:person>", person, cb, refPodcast("person")).
			Value(notEmptyValue).
			OptionalAttribute("role", notEmptyValue).
			OptionalAttribute("group", notEmptyValue).
			OptionalAttribute("img", urlValue).
			OptionalAttribute("href", urlValue).
			RemainingAttributes()
	}

	if location := findFirstChildElement(parent, podcastQnames("location")...); location != nil {
		checkElement("<podcast:location>", location, cb, refPodcast("location")).
			Value(notEmptyValue).
			OptionalAttribute("geo", ValueRule{isGeoURI, "a geo URI such as geo:30.1,-90.2"}).
			OptionalAttribute("osm", ValueRule{isOpenStreetMapIdentifier, "an OpenStreetMap identifier such as R148838"}).
			OptionalAttribute("rel", notEmptyValue).
			OptionalAttribute("country", notEmptyValue).
			RemainingAttributes()
	}

	for _, value := range findChildElements(parent, podcastQnames("value")...) {
		validateValue(value, cb)
	}

	for _, remoteItem := range findChildElements(parent, podcastQnames("remoteItem")...) {
		validateRemoteItem(remoteItem, cb)
	}
}

func validateValue(value *xmltree.Node, cb *Callbacks) {
	checkElement("<podcast:value>", value, cb, refPodcast("value")).
		RequiredAttribute("type", notEmptyValue).
		RequiredAttribute("method", notEmptyValue).
		OptionalAttribute("suggested", decimalValue).
		RemainingAttributes()

	recipients := findChildElements(value, podcastQnames("valueRecipient")...)
	remoteItems := findChildElements(value, podcastQnames("remoteItem")...)

	// Either a single remoteItem or one-or-more valueRecipient
	// children, never both and never neither.
	switch {
	case len(remoteItems) > 0 && len(recipients) > 0:
		cb.warning(Message{
			Text:      "<podcast:value> must not mix <podcast:remoteItem> and <podcast:valueRecipient> children",
			Node:      value,
			Reference: refPodcast("value"),
		})
	case len(remoteItems) > 1:
		cb.warning(Message{
			Text:      fmt.Sprintf("<podcast:value> allows a single <podcast:remoteItem> child, found %d", len(remoteItems)),
			Node:      value,
			Reference: refPodcast("value"),
		})
	case len(remoteItems) == 0 && len(recipients) == 0:
		cb.warning(Message{
			Text:      "<podcast:value> requires either one <podcast:remoteItem> or at least one <podcast:valueRecipient> child",
			Node:      value,
			Reference: refPodcast("value"),
		})
	}

	for _, recipient := range recipients {
		checkElement("<podcast:valueRecipient>", recipient, cb, refPodcast("value-recipient")).
			RequiredAttribute("type", notEmptyValue).
			RequiredAttribute("address", notEmptyValue).
			RequiredAttribute("split", nonNegativeIntValue).
			OptionalAttribute("name", notEmptyValue).
			OptionalAttribute("customKey", notEmptyValue).
			OptionalAttribute("customValue", notEmptyValue).
			OptionalAttribute("fee", booleanValue).
			RemainingAttributes()
	}
	for _, remoteItem := range remoteItems {
		validateRemoteItem(remoteItem, cb)
	}

	for _, timeSplit := range findChildElements(value, podcastQnames("valueTimeSplit")...) {
		checkElement("<podcast:valueTimeSplit>", timeSplit, cb, refPodcast("value-time-split")).
			RequiredAttribute("startTime", secondsValue).
			RequiredAttribute("duration", secondsValue).
			OptionalAttribute("remoteStartTime", secondsValue).
			OptionalAttribute("remotePercentage", nonNegativeIntValue).
			RemainingAttributes()
	}
}

func validateRemoteItem(remoteItem *xmltree.Node, cb *Callbacks) {
	checkElement("<podcast:remoteItem>", remoteItem, cb, refPodcast("remote-item")).
		AtLeastOneAttribute(map[string]ValueRule{
			"feedGuid": uuidValue,
			"feedUrl":  urlValue,
		}, "feedGuid", "feedUrl").
		OptionalAttribute("itemGuid", notEmptyValue).
		OptionalAttribute("medium", ValueRule{isMedium, "a medium slug"}).
		OptionalAttribute("title", notEmptyValue).
		RemainingAttributes()
}

func validateSocialInteract(socialInteract *xmltree.Node, cb *Callbacks) {
	protocol := strings.TrimSpace(socialInteract.Atts["protocol"])
	// uri is only optional when the tag explicitly disables comments.
	checkElement("<podcast:socialInteract>", socialInteract, cb, refPodcast("social-interact")).
		RequiredAttribute("protocol", ValueRule{isSocialProtocol, "disabled, activitypub, twitter, bluesky, nostr, lightning or hive"}).
		RequiredAttributeIf("uri", protocol != "disabled", uriValue).
		OptionalAttribute("accountId", notEmptyValue).
		OptionalAttribute("accountUrl", urlValue).
		OptionalAttribute("priority", nonNegativeIntValue).
		RemainingAttributes()
}

func validateChat(chat *xmltree.Node, cb *Callbacks) {
	checkElement("<podcast:chat>", chat, cb, refPodcast("chat")).
		RequiredAttribute("server", notEmptyValue).
		RequiredAttribute("protocol", notEmptyValue).
		OptionalAttribute("accountId", notEmptyValue).
		OptionalAttribute("space", notEmptyValue).
		RemainingAttributes()
}

func validateAlternateEnclosure(alternateEnclosure *xmltree.Node, cb *Callbacks) {
	checkElement("<podcast:alternateEnclosure>", alternateEnclosure, cb, refPodcast("alternate-enclosure")).
		RequiredAttribute("type", mimeTypeValue).
		OptionalAttribute("length", nonNegativeIntValue).
		OptionalAttribute("bitrate", decimalValue).
		OptionalAttribute("height", positiveIntValue).
		OptionalAttribute("lang", languageTagValue).
		OptionalAttribute("title", notEmptyValue).
		OptionalAttribute("rel", notEmptyValue).
		OptionalAttribute("codecs", notEmptyValue).
		OptionalAttribute("default", booleanValue).
		RemainingAttributes()

	sources := findChildElements(alternateEnclosure, podcastQnames("source")...)
	if len(sources) == 0 {
		cb.warning(Message{
			Text:      "<podcast:alternateEnclosure> requires at least one <podcast:source> child",
			Node:      alternateEnclosure,
			Reference: refPodcast("alternate-enclosure"),
		})
	}
	for _, source := range sources {
		checkElement("<podcast:source>", source, cb, refPodcast("source")).
			RequiredAttribute("uri", uriValue).
			OptionalAttribute("contentType", mimeTypeValue).
			RemainingAttributes()
	}

	if integrity := findFirstChildElement(alternateEnclosure, podcastQnames("integrity")...); integrity != nil {
		checkElement("<podcast:integrity>", integrity, cb, refPodcast("integrity")).
			RequiredAttribute("type", ValueRule{func(s string) bool {
				return s == "sri" || s == "pgp-signature"
			}, "sri or pgp-signature"}).
			RequiredAttribute("value", notEmptyValue).
			RemainingAttributes()
	}
}

func validateLiveItem(liveItem *xmltree.Node, cb *Callbacks, state *validationState) {
	checkElement("<podcast:liveItem>", liveItem, cb, refPodcast("live-item")).
		RequiredAttribute("status", ValueRule{func(s string) bool {
			lower := strings.ToLower(s)
			return lower == "pending" || lower == "live" || lower == "ended"
		}, "pending, live or ended"}).
		RequiredAttribute("start", iso8601Value).
		OptionalAttribute("end", iso8601Value).
		RemainingAttributes()

	for _, contentLink := range findChildElements(liveItem, podcastQnames("contentLink")...) {
		checkElement("<podcast:contentLink>", contentLink, cb, refPodcast("content-link")).
			RequiredAttribute("href", urlValue).
			Value(notEmptyValue).
			RemainingAttributes()
	}

	// A liveItem carries item-style children, but it is not an <item>:
	// it stays out of the item and enclosure tallies.
	validatePodcastItemTags(liveItem, cb, state)
}

var mediumSlugs = map[string]bool{
	"podcast": true, "music": true, "video": true, "film": true,
	"audiobook": true, "newsletter": true, "blog": true, "publisher": true,
	"course": true, "mixed": true,
	"podcastL": true, "musicL": true, "videoL": true, "filmL": true,
	"audiobookL": true, "newsletterL": true, "blogL": true,
}

func isMedium(s string) bool {
	return mediumSlugs[s]
}

var socialProtocols = map[string]bool{
	"disabled": true, "activitypub": true, "twitter": true, "bluesky": true,
	"nostr": true, "lightning": true, "hive": true, "matrix": true, "atproto": true,
}

func isSocialProtocol(s string) bool {
	return socialProtocols[s]
}
