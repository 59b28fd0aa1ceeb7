package validator

import (
	"github.com/skymethod/livewire-validator-sub001/app/xmltree"
)

// Namespace URIs recognized by the rule sets.
const (
	NamespaceURIPodcast = "https://podcastindex.org/namespace/1.0"
	// Historical alias pointing at the GitHub copy of the docs.
	NamespaceURIPodcastGithub = "https://github.com/Podcastindex-org/podcast-namespace/blob/main/docs/1.0.md"
	// Common misspelling with a trailing slash. Matched as equivalent,
	// flagged with a warning.
	NamespaceURIPodcastBadSlash = "https://podcastindex.org/namespace/1.0/"

	NamespaceURIItunes   = "http://www.itunes.com/dtds/podcast-1.0.dtd"
	NamespaceURIMediaRSS = "http://search.yahoo.com/mrss/"
	NamespaceURIAtom     = "http://www.w3.org/2005/Atom"
	NamespaceURIContent  = "http://purl.org/rss/1.0/modules/content/"
)

// podcastNamespaceURIs lists every URI treated as the podcast
// namespace, canonical form first.
var podcastNamespaceURIs = []string{
	NamespaceURIPodcast,
	NamespaceURIPodcastGithub,
	NamespaceURIPodcastBadSlash,
}

// knownPodcastNames are the podcast namespace element names the rule
// set recognizes; anything else under the namespace is reported as
// unrecognized.
var knownPodcastNames = map[string]bool{
	"alternateEnclosure": true,
	"block":              true,
	"chapters":           true,
	"chat":               true,
	"complete":           true,
	"contentLink":        true,
	"episode":            true,
	"funding":            true,
	"guid":               true,
	"hiveAccount":        true,
	"images":             true,
	"integrity":          true,
	"license":            true,
	"liveItem":           true,
	"location":           true,
	"locked":             true,
	"medium":             true,
	"person":             true,
	"podping":            true,
	"podroll":            true,
	"publisher":          true,
	"remoteItem":         true,
	"season":             true,
	"socialInteract":     true,
	"soundbite":          true,
	"source":             true,
	"trailer":            true,
	"transcript":         true,
	"txt":                true,
	"updateFrequency":    true,
	"value":              true,
	"valueRecipient":     true,
	"valueTimeSplit":     true,
}

func isPodcastNamespace(uri string) bool {
	for _, known := range podcastNamespaceURIs {
		if uri == known {
			return true
		}
	}
	return false
}

// podcastQnames expands a local name into a qname per podcast
// namespace URI variant, so lookups match all three.
func podcastQnames(name string) []xmltree.Qname {
	qnames := make([]xmltree.Qname, 0, len(podcastNamespaceURIs))
	for _, uri := range podcastNamespaceURIs {
		qnames = append(qnames, xmltree.Qname{Name: name, NamespaceURI: uri})
	}
	return qnames
}

func plainQname(name string) xmltree.Qname {
	return xmltree.Qname{Name: name}
}

func itunesQname(name string) xmltree.Qname {
	return xmltree.Qname{Name: name, NamespaceURI: NamespaceURIItunes}
}

// findChildElements returns the children of parent whose resolved
// qname matches any of the given qnames, in document order.
func findChildElements(parent *xmltree.Node, qnames ...xmltree.Qname) []*xmltree.Node {
	if parent == nil {
		return nil
	}
	var out []*xmltree.Node
	for _, child := range parent.ChildNodes() {
		for _, q := range qnames {
			if child.Qname == q {
				out = append(out, child)
				break
			}
		}
	}
	return out
}

// findFirstChildElement returns the first matching child or nil.
func findFirstChildElement(parent *xmltree.Node, qnames ...xmltree.Qname) *xmltree.Node {
	matches := findChildElements(parent, qnames...)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}
