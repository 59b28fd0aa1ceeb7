// Package xmltree builds a navigable node tree from raw XML text and
// provides an independent well-formedness scanner plus namespace
// resolution. It is deliberately not a streaming parser: the whole
// document is materialized so the feed validator can walk it freely.
package xmltree

import (
	"fmt"
	"regexp"
	"strings"
)

// RootTagName is the tag name of the synthetic document root returned
// by Parse. The actual document element(s) are its children.
const RootTagName = "!xml"

// Node is one element in a parsed document. Children are always
// grouped as "one or more" keyed by tag name; callers that expect
// exactly one child must use GetSingleChild.
type Node struct {
	TagName    string
	Parent     *Node
	Attributes map[string]string
	Children   map[string][]*Node
	Text       string

	// Qname and Atts are populated by ApplyQnames.
	Qname Qname
	Atts  map[string]string

	childOrder []*Node
	runs       []textRun
}

type textRun struct {
	text  string
	cdata bool
}

// ChildNodes returns all child elements in document order, across tag
// names.
func (n *Node) ChildNodes() []*Node {
	return n.childOrder
}

// GetSingleChild returns the only child with the given tag name, or an
// error when it is absent or repeated.
func (n *Node) GetSingleChild(tagName string) (*Node, error) {
	children := n.Children[tagName]
	if len(children) == 0 {
		return nil, fmt.Errorf("expected single <%s> child of <%s>, found none", tagName, n.TagName)
	}
	if len(children) > 1 {
		return nil, fmt.Errorf("expected single <%s> child of <%s>, found %d", tagName, n.TagName, len(children))
	}
	return children[0], nil
}

// ParseOptions controls tag value post-processing.
type ParseOptions struct {
	// ValueTransform is applied to element text (after trimming) and to
	// attribute values. CDATA content bypasses it.
	ValueTransform func(string) string
}

// Parse builds a node tree from xmlText, rooted at a synthetic "!xml"
// node. It only fails on unrecoverable structural problems (an
// unterminated tag, comment, CDATA section or DOCTYPE); run Validate
// first to get a diagnosable message for malformed input.
func Parse(xmlText string) (*Node, error) {
	return ParseWithOptions(xmlText, ParseOptions{ValueTransform: DecodeEntities})
}

var attributePattern = regexp.MustCompile(`([^\s=]+)\s*(=\s*(?:"([^"]*)"|'([^']*)'))?`)

// ParseWithOptions is Parse with explicit options.
func ParseWithOptions(xmlText string, opts ParseOptions) (*Node, error) {
	root := newNode(RootTagName, nil)
	current := root
	var textBuf strings.Builder

	flushText := func() {
		if textBuf.Len() > 0 {
			current.runs = append(current.runs, textRun{text: textBuf.String()})
			textBuf.Reset()
		}
	}

	s := xmlText
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '<' {
			textBuf.WriteByte(ch)
			continue
		}
		switch {
		case strings.HasPrefix(s[i:], "</"):
			end := strings.IndexByte(s[i+2:], '>')
			if end < 0 {
				return nil, fmt.Errorf("closing sequence not found for closing tag at offset %d", i)
			}
			flushText()
			closeNode(current, opts)
			if current.Parent != nil {
				current = current.Parent
			}
			i += 2 + end
		case strings.HasPrefix(s[i:], "<?"):
			end := strings.Index(s[i+2:], "?>")
			if end < 0 {
				return nil, fmt.Errorf("closing sequence not found for processing instruction at offset %d", i)
			}
			i += 2 + end + 1
		case strings.HasPrefix(s[i:], "<!--"):
			end := strings.Index(s[i+4:], "-->")
			if end < 0 {
				return nil, fmt.Errorf("closing sequence not found for comment at offset %d", i)
			}
			i += 4 + end + 2
		case strings.HasPrefix(s[i:], "<![CDATA["):
			end := strings.Index(s[i+9:], "]]>")
			if end < 0 {
				return nil, fmt.Errorf("closing sequence not found for CDATA section at offset %d", i)
			}
			flushText()
			current.runs = append(current.runs, textRun{text: s[i+9 : i+9+end], cdata: true})
			i += 9 + end + 2
		case strings.HasPrefix(s[i:], "<!"):
			end, err := skipDoctype(s, i)
			if err != nil {
				return nil, err
			}
			i = end
		default:
			end := findTagClose(s, i+1)
			if end < 0 {
				return nil, fmt.Errorf("closing sequence not found for tag at offset %d", i)
			}
			raw := s[i+1 : end]
			selfClosing := strings.HasSuffix(raw, "/")
			if selfClosing {
				raw = raw[:len(raw)-1]
			}
			tagName, attrText := splitTag(raw)
			flushText()
			child := newNode(tagName, current)
			parseAttributes(child, attrText, opts)
			attach(current, child)
			if !selfClosing {
				current = child
			} else {
				closeNode(child, opts)
			}
			i = end
		}
	}
	flushText()
	closeNode(root, opts)
	return root, nil
}

func newNode(tagName string, parent *Node) *Node {
	return &Node{
		TagName:    tagName,
		Parent:     parent,
		Attributes: make(map[string]string),
		Children:   make(map[string][]*Node),
	}
}

func attach(parent, child *Node) {
	parent.Children[child.TagName] = append(parent.Children[child.TagName], child)
	parent.childOrder = append(parent.childOrder, child)
}

// closeNode runs the tag value pipeline over the accumulated text
// runs: concatenate in order (no separator), entity-transform the
// non-CDATA runs, trim the result.
func closeNode(n *Node, opts ParseOptions) {
	if len(n.runs) == 0 {
		return
	}
	var sb strings.Builder
	for _, run := range n.runs {
		if run.cdata || opts.ValueTransform == nil {
			sb.WriteString(run.text)
		} else {
			sb.WriteString(opts.ValueTransform(run.text))
		}
	}
	n.Text = strings.TrimSpace(sb.String())
	n.runs = nil
}

// splitTag splits the raw contents of an opening tag into the tag name
// and the attribute text at the first whitespace.
func splitTag(raw string) (string, string) {
	for i := 0; i < len(raw); i++ {
		if isXMLWhitespace(raw[i]) {
			return raw[:i], strings.TrimSpace(raw[i+1:])
		}
	}
	return raw, ""
}

func parseAttributes(n *Node, attrText string, opts ParseOptions) {
	if attrText == "" {
		return
	}
	for _, m := range attributePattern.FindAllStringSubmatch(attrText, -1) {
		name := m[1]
		if m[2] == "" {
			// Valueless (boolean) attribute: not part of XML, dropped
			// here and reported by the well-formedness scanner.
			continue
		}
		value := m[3]
		if value == "" {
			value = m[4]
		}
		if opts.ValueTransform != nil {
			value = opts.ValueTransform(value)
		}
		n.Attributes[name] = value
	}
}

// findTagClose locates the '>' ending an opening tag, skipping quoted
// attribute values.
func findTagClose(s string, from int) int {
	var quote byte
	for i := from; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '>':
			return i
		}
	}
	return -1
}

// skipDoctype consumes a <!DOCTYPE ...> declaration starting at start,
// counting angle brackets so a bracketed internal subset ([...]>) does
// not terminate the scan early. Returns the index of the closing '>'.
func skipDoctype(s string, start int) (int, error) {
	depth := 0
	for i := start + 2; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth == 0 {
				return i, nil
			}
			depth--
		}
	}
	return 0, fmt.Errorf("closing sequence not found for doctype at offset %d", start)
}

func isXMLWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// DecodeEntities resolves the five predefined XML entities and numeric
// character references. Unrecognized references pass through verbatim.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '&' {
			sb.WriteByte(s[i])
			continue
		}
		end := strings.IndexByte(s[i:], ';')
		if end < 0 || end > 24 {
			sb.WriteByte(s[i])
			continue
		}
		ref := s[i+1 : i+end]
		if decoded, ok := decodeEntityRef(ref); ok {
			sb.WriteString(decoded)
			i += end
		} else {
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func decodeEntityRef(ref string) (string, bool) {
	switch ref {
	case "amp":
		return "&", true
	case "lt":
		return "<", true
	case "gt":
		return ">", true
	case "quot":
		return `"`, true
	case "apos":
		return "'", true
	}
	if strings.HasPrefix(ref, "#") {
		digits := ref[1:]
		base := 10
		if strings.HasPrefix(digits, "x") || strings.HasPrefix(digits, "X") {
			digits = digits[1:]
			base = 16
		}
		if digits == "" {
			return "", false
		}
		var code rune
		for _, ch := range digits {
			var d rune
			switch {
			case ch >= '0' && ch <= '9':
				d = ch - '0'
			case base == 16 && ch >= 'a' && ch <= 'f':
				d = ch - 'a' + 10
			case base == 16 && ch >= 'A' && ch <= 'F':
				d = ch - 'A' + 10
			default:
				return "", false
			}
			code = code*rune(base) + d
			if code > 0x10FFFF {
				return "", false
			}
		}
		return string(code), true
	}
	return "", false
}
