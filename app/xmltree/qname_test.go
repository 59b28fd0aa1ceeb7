package xmltree

import (
	"testing"
)

func TestApplyQnamesDefaultAndPrefixed(t *testing.T) {
	xml := `<rss version="2.0" xmlns:podcast="https://podcastindex.org/namespace/1.0">
  <channel>
    <title>T</title>
    <podcast:funding url="https://x.test/支援">Support</podcast:funding>
  </channel>
</rss>`
	root := mustParse(t, xml)
	if err := ApplyQnames(root); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	rss, _ := root.GetSingleChild("rss")
	if rss.Qname.NamespaceURI != "" || rss.Qname.Name != "rss" {
		t.Errorf("Expected rss in no namespace, got: %v", rss.Qname)
	}
	channel, _ := rss.GetSingleChild("channel")
	funding := channel.Children["podcast:funding"][0]
	if funding.Qname.Name != "funding" {
		t.Errorf("Expected local name 'funding', got: %s", funding.Qname.Name)
	}
	if funding.Qname.NamespaceURI != "https://podcastindex.org/namespace/1.0" {
		t.Errorf("Expected podcast namespace, got: %s", funding.Qname.NamespaceURI)
	}
	if funding.Atts["url"] == "" {
		t.Error("Expected url in cleaned attribute map")
	}
	if _, ok := rss.Atts["xmlns:podcast"]; ok {
		t.Error("Expected xmlns declarations to be stripped from Atts")
	}
}

func TestApplyQnamesDefaultNamespaceScoping(t *testing.T) {
	xml := `<feed xmlns="http://www.w3.org/2005/Atom"><entry><title>T</title></entry></feed>`
	root := mustParse(t, xml)
	if err := ApplyQnames(root); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	feed, _ := root.GetSingleChild("feed")
	entry, _ := feed.GetSingleChild("entry")
	title, _ := entry.GetSingleChild("title")
	if title.Qname.NamespaceURI != "http://www.w3.org/2005/Atom" {
		t.Errorf("Expected inherited default namespace, got: %q", title.Qname.NamespaceURI)
	}
}

func TestApplyQnamesInnerRedeclaration(t *testing.T) {
	xml := `<a xmlns:p="urn:one"><b xmlns:p="urn:two"><p:c/></b><p:d/></a>`
	root := mustParse(t, xml)
	if err := ApplyQnames(root); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	a, _ := root.GetSingleChild("a")
	b, _ := a.GetSingleChild("b")
	c := b.Children["p:c"][0]
	d := a.Children["p:d"][0]
	if c.Qname.NamespaceURI != "urn:two" {
		t.Errorf("Expected inner scope to win, got: %s", c.Qname.NamespaceURI)
	}
	if d.Qname.NamespaceURI != "urn:one" {
		t.Errorf("Expected outer scope after pop, got: %s", d.Qname.NamespaceURI)
	}
}

func TestApplyQnamesIdempotent(t *testing.T) {
	xml := `<rss xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"><channel><itunes:author>A</itunes:author></channel></rss>`
	root := mustParse(t, xml)
	if err := ApplyQnames(root); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	first := collectQnames(root)
	if err := ApplyQnames(root); err != nil {
		t.Fatalf("Expected no error on second pass, got: %v", err)
	}
	second := collectQnames(root)
	if len(first) != len(second) {
		t.Fatalf("Expected identical qname counts, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Expected identical qnames, got %v and %v", first[i], second[i])
		}
	}
}

func TestApplyQnamesUndeclaredPrefix(t *testing.T) {
	root := mustParse(t, `<a><p:b/></a>`)
	if err := ApplyQnames(root); err == nil {
		t.Error("Expected error for undeclared prefix")
	}
}

func collectQnames(n *Node) []Qname {
	out := []Qname{n.Qname}
	for _, child := range n.ChildNodes() {
		out = append(out, collectQnames(child)...)
	}
	return out
}
