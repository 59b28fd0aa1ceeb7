package validator

import (
	"strings"
	"testing"

	"github.com/skymethod/livewire-validator-sub001/app/xmltree"
)

type recorder struct {
	goods    []Message
	infos    []Message
	warnings []Message
	errors   []Message

	itemCount               int
	itemsWithEnclosureCount int
	liveItemCount           int
	itemsFoundCalls         int
	knownNames              []string
	unknownNames            []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnGood:    func(m Message) { r.goods = append(r.goods, m) },
		OnInfo:    func(m Message) { r.infos = append(r.infos, m) },
		OnWarning: func(m Message) { r.warnings = append(r.warnings, m) },
		OnError:   func(m Message) { r.errors = append(r.errors, m) },
		OnRssItemsFound: func(itemCount, itemsWithEnclosuresCount int) {
			r.itemsFoundCalls++
			r.itemCount = itemCount
			r.itemsWithEnclosureCount = itemsWithEnclosuresCount
		},
		OnPodcastIndexTagNamesFound: func(known, unknown []string) {
			r.knownNames = known
			r.unknownNames = unknown
		},
		OnPodcastIndexLiveItemsFound: func(count int) { r.liveItemCount = count },
	}
}

func (r *recorder) warningTexts() []string {
	texts := make([]string, 0, len(r.warnings))
	for _, m := range r.warnings {
		texts = append(texts, m.Text)
	}
	return texts
}

func (r *recorder) warningsContaining(substr string) []Message {
	var out []Message
	for _, m := range r.warnings {
		if strings.Contains(m.Text, substr) {
			out = append(out, m)
		}
	}
	return out
}

func validate(t *testing.T, xml string) *recorder {
	t.Helper()
	root, err := xmltree.Parse(xml)
	if err != nil {
		t.Fatalf("Expected no parse error, got: %v", err)
	}
	if err := xmltree.ApplyQnames(root); err != nil {
		t.Fatalf("Expected no qname error, got: %v", err)
	}
	rec := &recorder{}
	ValidateFeed(root, rec.callbacks())
	return rec
}

const minimalValidFeed = `<rss version="2.0"><channel><title>T</title><link>https://x.test</link><description>D</description><item><title>E1</title><enclosure url="https://x.test/e1.mp3" length="100" type="audio/mpeg"/><guid>https://x.test/1</guid></item></channel></rss>`

func TestValidateMinimalFeed(t *testing.T) {
	rec := validate(t, minimalValidFeed)
	if len(rec.errors) != 0 {
		t.Errorf("Expected zero errors, got: %v", rec.errors)
	}
	if len(rec.warnings) != 0 {
		t.Errorf("Expected zero warnings, got: %v", rec.warningTexts())
	}
	if rec.itemsFoundCalls != 1 {
		t.Errorf("Expected OnRssItemsFound to fire exactly once, got: %d", rec.itemsFoundCalls)
	}
	if rec.itemCount != 1 || rec.itemsWithEnclosureCount != 1 {
		t.Errorf("Expected (1, 1), got: (%d, %d)", rec.itemCount, rec.itemsWithEnclosureCount)
	}
}

func TestValidateEnclosureMissingLength(t *testing.T) {
	xml := strings.Replace(minimalValidFeed, ` length="100"`, "", 1)
	rec := validate(t, xml)
	if len(rec.errors) != 0 {
		t.Errorf("Expected zero errors, got: %v", rec.errors)
	}
	lengthWarnings := rec.warningsContaining("length attribute")
	if len(lengthWarnings) != 1 {
		t.Fatalf("Expected exactly one length warning, got: %v", rec.warningTexts())
	}
	if len(rec.warnings) != 1 {
		t.Errorf("Expected the document to be otherwise unaffected, got: %v", rec.warningTexts())
	}
}

func TestValidateBadRootIsError(t *testing.T) {
	rec := validate(t, `<notrss/>`)
	if len(rec.errors) != 1 {
		t.Fatalf("Expected one error, got: %v", rec.errors)
	}
	if !strings.Contains(rec.errors[0].Text, "notrss") {
		t.Errorf("Expected error to name the bad root, got: %q", rec.errors[0].Text)
	}
}

func TestValidateMissingChannelIsError(t *testing.T) {
	rec := validate(t, `<rss version="2.0"></rss>`)
	if len(rec.errors) != 1 {
		t.Fatalf("Expected one error, got: %v", rec.errors)
	}
	if !strings.Contains(rec.errors[0].Text, "channel") {
		t.Errorf("Expected error to name the missing channel, got: %q", rec.errors[0].Text)
	}
}

func TestValidateAtomFeedIsInfoOnly(t *testing.T) {
	rec := validate(t, `<feed xmlns="http://www.w3.org/2005/Atom"><title>T</title></feed>`)
	if len(rec.errors) != 0 || len(rec.warnings) != 0 {
		t.Errorf("Expected no errors or warnings for Atom, got: %v %v", rec.errors, rec.warningTexts())
	}
	if len(rec.infos) != 1 {
		t.Errorf("Expected one info, got: %v", rec.infos)
	}
}

func TestValidateAttributeClosure(t *testing.T) {
	xml := strings.Replace(minimalValidFeed, `type="audio/mpeg"/>`, `type="audio/mpeg" frobnicate="yes"/>`, 1)
	rec := validate(t, xml)
	unexpected := rec.warningsContaining("frobnicate")
	if len(unexpected) != 1 {
		t.Fatalf("Expected exactly one warning naming the unknown attribute, got: %v", rec.warningTexts())
	}
}

func TestValidateNamespaceAliasing(t *testing.T) {
	feedWithNamespace := func(uri string) string {
		return `<rss version="2.0" xmlns:podcast="` + uri + `"><channel><title>T</title><link>https://x.test</link><description>D</description><podcast:funding url="https://x.test/support">Support us</podcast:funding></channel></rss>`
	}

	for _, uri := range []string{NamespaceURIPodcast, NamespaceURIPodcastGithub} {
		rec := validate(t, feedWithNamespace(uri))
		if len(rec.warnings) != 0 {
			t.Errorf("Expected no warnings under %s, got: %v", uri, rec.warningTexts())
		}
		if len(rec.knownNames) != 1 || rec.knownNames[0] != "funding" {
			t.Errorf("Expected funding to be recognized under %s, got: %v", uri, rec.knownNames)
		}
	}

	rec := validate(t, feedWithNamespace(NamespaceURIPodcastBadSlash))
	slashWarnings := rec.warningsContaining("trailing slash")
	if len(slashWarnings) != 1 {
		t.Fatalf("Expected exactly one trailing-slash warning, got: %v", rec.warningTexts())
	}
	if len(rec.knownNames) != 1 || rec.knownNames[0] != "funding" {
		t.Errorf("Expected funding to still be recognized, got: %v", rec.knownNames)
	}
}

func TestValidateUnknownPodcastTag(t *testing.T) {
	xml := `<rss version="2.0" xmlns:podcast="` + NamespaceURIPodcast + `"><channel><title>T</title><link>https://x.test</link><description>D</description><podcast:frobnicator/></channel></rss>`
	rec := validate(t, xml)
	if len(rec.unknownNames) != 1 || rec.unknownNames[0] != "frobnicator" {
		t.Errorf("Expected frobnicator to be unrecognized, got: %v", rec.unknownNames)
	}
}

func podcastItemFeed(itemContent string) string {
	return `<rss version="2.0" xmlns:podcast="` + NamespaceURIPodcast + `"><channel><title>T</title><link>https://x.test</link><description>D</description><item><title>E1</title><enclosure url="https://x.test/e1.mp3" length="100" type="audio/mpeg"/><guid isPermaLink="false">e1</guid>` + itemContent + `</item></channel></rss>`
}

func TestValidateSocialInteract(t *testing.T) {
	// disabled: uri not required
	rec := validate(t, podcastItemFeed(`<podcast:socialInteract protocol="disabled"/>`))
	if len(rec.warnings) != 0 {
		t.Errorf("Expected no warnings for disabled socialInteract, got: %v", rec.warningTexts())
	}

	// other protocols require a uri
	rec = validate(t, podcastItemFeed(`<podcast:socialInteract protocol="activitypub"/>`))
	uriWarnings := rec.warningsContaining("uri")
	if len(uriWarnings) != 1 {
		t.Errorf("Expected a uri warning, got: %v", rec.warningTexts())
	}

	rec = validate(t, podcastItemFeed(`<podcast:socialInteract protocol="activitypub" uri="https://pod.test/users/a/statuses/1"/>`))
	if len(rec.warnings) != 0 {
		t.Errorf("Expected no warnings, got: %v", rec.warningTexts())
	}
}

func TestValidateValueRecipientExclusivity(t *testing.T) {
	// valid: recipients only
	rec := validate(t, podcastItemFeed(`<podcast:value type="lightning" method="keysend"><podcast:valueRecipient type="node" address="abc" split="100"/></podcast:value>`))
	if len(rec.warnings) != 0 {
		t.Errorf("Expected no warnings, got: %v", rec.warningTexts())
	}

	// valid: single remoteItem only
	rec = validate(t, podcastItemFeed(`<podcast:value type="lightning" method="keysend"><podcast:remoteItem feedGuid="917393e3-1b1e-5cef-ace4-edaa54e1f810"/></podcast:value>`))
	if len(rec.warnings) != 0 {
		t.Errorf("Expected no warnings, got: %v", rec.warningTexts())
	}

	// invalid: both
	rec = validate(t, podcastItemFeed(`<podcast:value type="lightning" method="keysend"><podcast:remoteItem feedGuid="917393e3-1b1e-5cef-ace4-edaa54e1f810"/><podcast:valueRecipient type="node" address="abc" split="100"/></podcast:value>`))
	if len(rec.warningsContaining("must not mix")) != 1 {
		t.Errorf("Expected exclusivity warning, got: %v", rec.warningTexts())
	}

	// invalid: neither
	rec = validate(t, podcastItemFeed(`<podcast:value type="lightning" method="keysend"/>`))
	if len(rec.warningsContaining("requires either")) != 1 {
		t.Errorf("Expected missing-children warning, got: %v", rec.warningTexts())
	}
}

func TestValidatePodrollRequiresRemoteItem(t *testing.T) {
	xml := `<rss version="2.0" xmlns:podcast="` + NamespaceURIPodcast + `"><channel><title>T</title><link>https://x.test</link><description>D</description><podcast:podroll/></channel></rss>`
	rec := validate(t, xml)
	if len(rec.warningsContaining("podroll")) != 1 {
		t.Errorf("Expected podroll warning, got: %v", rec.warningTexts())
	}
}

func TestValidateUpdateFrequencyCountRequiresDtstart(t *testing.T) {
	channelTag := func(tag string) string {
		return `<rss version="2.0" xmlns:podcast="` + NamespaceURIPodcast + `"><channel><title>T</title><link>https://x.test</link><description>D</description>` + tag + `</channel></rss>`
	}

	rec := validate(t, channelTag(`<podcast:updateFrequency rrule="FREQ=WEEKLY">Weekly</podcast:updateFrequency>`))
	if len(rec.warnings) != 0 {
		t.Errorf("Expected no warnings without COUNT, got: %v", rec.warningTexts())
	}

	rec = validate(t, channelTag(`<podcast:updateFrequency rrule="FREQ=WEEKLY;COUNT=10">Ten weeks</podcast:updateFrequency>`))
	if len(rec.warningsContaining("dtstart")) != 1 {
		t.Errorf("Expected dtstart warning with COUNT, got: %v", rec.warningTexts())
	}

	rec = validate(t, channelTag(`<podcast:updateFrequency rrule="FREQ=WEEKLY;COUNT=10" dtstart="2024-01-01">Ten weeks</podcast:updateFrequency>`))
	if len(rec.warnings) != 0 {
		t.Errorf("Expected no warnings with dtstart present, got: %v", rec.warningTexts())
	}
}

func TestValidateLiveItems(t *testing.T) {
	xml := `<rss version="2.0" xmlns:podcast="` + NamespaceURIPodcast + `"><channel><title>T</title><link>https://x.test</link><description>D</description><podcast:liveItem status="live" start="2024-06-01T19:00:00Z"><podcast:contentLink href="https://x.test/live">Watch</podcast:contentLink></podcast:liveItem></channel></rss>`
	rec := validate(t, xml)
	if len(rec.warnings) != 0 {
		t.Errorf("Expected no warnings, got: %v", rec.warningTexts())
	}
	if rec.liveItemCount != 1 {
		t.Errorf("Expected 1 live item, got: %d", rec.liveItemCount)
	}
}

func TestValidateGuidPermalinkHeuristic(t *testing.T) {
	xml := strings.Replace(minimalValidFeed, `<guid>https://x.test/1</guid>`, `<guid>not-a-url</guid>`, 1)
	rec := validate(t, xml)
	if len(rec.warningsContaining("isPermaLink")) != 1 {
		t.Errorf("Expected isPermaLink heuristic warning, got: %v", rec.warningTexts())
	}
}

func TestValidateAbsentOptionalParentIsNoOp(t *testing.T) {
	// No podcast tags at all: the chains short-circuit without
	// cascading diagnostics.
	rec := validate(t, minimalValidFeed)
	if len(rec.knownNames) != 0 || len(rec.unknownNames) != 0 {
		t.Errorf("Expected no podcast tags, got: %v %v", rec.knownNames, rec.unknownNames)
	}
}
