package xmltree

import (
	"fmt"
	"regexp"
	"strings"
)

// SyntaxError describes the first well-formedness problem found in a
// document. Scanning is fail-fast: only one error is ever reported.
type SyntaxError struct {
	Code    string
	Message string
	Line    int
	Col     int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s (line %d, col %d)", e.Code, e.Message, e.Line, e.Col)
}

// Codes used by Validate.
const (
	CodeInvalidTag    = "InvalidTag"
	CodeInvalidAttr   = "InvalidAttr"
	CodeInvalidXml    = "InvalidXml"
	CodeInvalidChar   = "InvalidChar"
	CodeInvalidEntity = "InvalidEntity"
)

// ValidateOptions controls scanning behavior.
type ValidateOptions struct {
	// AllowBooleanAttributes accepts attributes without a value.
	AllowBooleanAttributes bool
}

// XML Name production, covering the Unicode name-start and name-char
// classes.
var xmlNamePattern = regexp.MustCompile(`^[:A-Za-z_\x{C0}-\x{D6}\x{D8}-\x{F6}\x{F8}-\x{2FF}\x{370}-\x{37D}\x{37F}-\x{1FFF}\x{200C}-\x{200D}\x{2070}-\x{218F}\x{2C00}-\x{2FEF}\x{3001}-\x{D7FF}\x{F900}-\x{FDCF}\x{FDF0}-\x{FFFD}][:A-Za-z0-9_.\x{B7}\x{C0}-\x{D6}\x{D8}-\x{F6}\x{F8}-\x{2FF}\x{300}-\x{36F}\x{370}-\x{37D}\x{37F}-\x{1FFF}\x{200C}-\x{200D}\x{203F}-\x{2040}\x{2070}-\x{218F}\x{2C00}-\x{2FEF}\x{3001}-\x{D7FF}\x{F900}-\x{FDCF}\x{FDF0}-\x{FFFD}-]*$`)

var entityRefPattern = regexp.MustCompile(`^(#[0-9]+|#x[0-9a-fA-F]+|\w{1,20});`)

type openTag struct {
	name string
	pos  int
}

// Validate re-scans xmlText independently of Parse and returns nil
// when the document is well-formed, otherwise the first *SyntaxError
// found. Any input accepted here is safe to hand to Parse.
func Validate(xmlText string) error {
	return ValidateWithOptions(xmlText, ValidateOptions{})
}

// ValidateWithOptions is Validate with explicit options.
func ValidateWithOptions(xmlText string, opts ValidateOptions) error {
	s := xmlText
	var stack []openTag
	rootClosed := false
	sawRoot := false

	fail := func(code, message string, at int) error {
		line, col := lineCol(s, at)
		return &SyntaxError{Code: code, Message: message, Line: line, Col: col}
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '<' {
			if ch == '&' {
				rest := s[i+1:]
				if !entityRefPattern.MatchString(rest) {
					return fail(CodeInvalidChar, "bare '&' is not allowed, use '&amp;' or a valid entity reference", i)
				}
				i += len(entityRefPattern.FindString(rest))
				continue
			}
			if len(stack) == 0 && !isXMLWhitespace(ch) {
				return fail(CodeInvalidChar, fmt.Sprintf("character %q is not allowed outside the root element", ch), i)
			}
			continue
		}
		switch {
		case strings.HasPrefix(s[i:], "</"):
			end := strings.IndexByte(s[i+2:], '>')
			if end < 0 {
				return fail(CodeInvalidTag, "unterminated closing tag", i)
			}
			name := strings.TrimSpace(s[i+2 : i+2+end])
			if len(stack) == 0 {
				return fail(CodeInvalidTag, fmt.Sprintf("unexpected closing tag </%s>, no element is open", name), i)
			}
			top := stack[len(stack)-1]
			if top.name != name {
				openLine, openCol := lineCol(s, top.pos)
				return fail(CodeInvalidTag, fmt.Sprintf("closing tag </%s> does not match open element <%s> (opened at line %d, col %d)", name, top.name, openLine, openCol), i)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				rootClosed = true
			}
			i += 2 + end
		case strings.HasPrefix(s[i:], "<?"):
			end := strings.Index(s[i+2:], "?>")
			if end < 0 {
				return fail(CodeInvalidXml, "unterminated processing instruction", i)
			}
			i += 2 + end + 1
		case strings.HasPrefix(s[i:], "<!--"):
			end := strings.Index(s[i+4:], "-->")
			if end < 0 {
				return fail(CodeInvalidXml, "unterminated comment", i)
			}
			i += 4 + end + 2
		case strings.HasPrefix(s[i:], "<![CDATA["):
			end := strings.Index(s[i+9:], "]]>")
			if end < 0 {
				return fail(CodeInvalidXml, "unterminated CDATA section", i)
			}
			if len(stack) == 0 {
				return fail(CodeInvalidXml, "CDATA section outside the root element", i)
			}
			i += 9 + end + 2
		case strings.HasPrefix(s[i:], "<!"):
			end, err := skipDoctype(s, i)
			if err != nil {
				return fail(CodeInvalidXml, "unterminated doctype declaration", i)
			}
			i = end
		default:
			end := findTagClose(s, i+1)
			if end < 0 {
				return fail(CodeInvalidTag, "unterminated tag", i)
			}
			raw := s[i+1 : end]
			selfClosing := strings.HasSuffix(raw, "/")
			if selfClosing {
				raw = raw[:len(raw)-1]
			}
			name, attrText := splitTag(raw)
			if name == "" {
				return fail(CodeInvalidTag, "tag has no name", i)
			}
			if !xmlNamePattern.MatchString(name) {
				return fail(CodeInvalidTag, fmt.Sprintf("%q is not a valid tag name", name), i)
			}
			if rootClosed {
				return fail(CodeInvalidXml, fmt.Sprintf("element <%s> after the root element, a document must have exactly one root", name), i)
			}
			if err := validateAttributes(attrText, opts, func(code, message string) error {
				return fail(code, message, i)
			}); err != nil {
				return err
			}
			sawRoot = true
			if !selfClosing {
				stack = append(stack, openTag{name: name, pos: i})
			} else if len(stack) == 0 {
				rootClosed = true
			}
			i = end
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return fail(CodeInvalidTag, fmt.Sprintf("element <%s> is never closed", top.name), top.pos)
	}
	if !sawRoot {
		return fail(CodeInvalidXml, "document has no root element", 0)
	}
	return nil
}

func validateAttributes(attrText string, opts ValidateOptions, fail func(code, message string) error) error {
	seen := make(map[string]bool)
	i := 0
	skipWS := func() {
		for i < len(attrText) && isXMLWhitespace(attrText[i]) {
			i++
		}
	}
	for {
		skipWS()
		if i >= len(attrText) {
			return nil
		}
		start := i
		for i < len(attrText) && !isXMLWhitespace(attrText[i]) && attrText[i] != '=' {
			i++
		}
		name := attrText[start:i]
		if !xmlNamePattern.MatchString(name) {
			return fail(CodeInvalidAttr, fmt.Sprintf("%q is not a valid attribute name", name))
		}
		if seen[name] {
			return fail(CodeInvalidAttr, fmt.Sprintf("duplicate attribute %q", name))
		}
		seen[name] = true
		skipWS()
		if i >= len(attrText) || attrText[i] != '=' {
			if !opts.AllowBooleanAttributes {
				return fail(CodeInvalidAttr, fmt.Sprintf("attribute %q has no value", name))
			}
			continue
		}
		i++
		skipWS()
		if i >= len(attrText) || (attrText[i] != '"' && attrText[i] != '\'') {
			return fail(CodeInvalidAttr, fmt.Sprintf("value of attribute %q is not quoted", name))
		}
		quote := attrText[i]
		i++
		end := strings.IndexByte(attrText[i:], quote)
		if end < 0 {
			return fail(CodeInvalidAttr, fmt.Sprintf("unbalanced quotes in value of attribute %q", name))
		}
		i += end + 1
	}
}

// lineCol converts a byte offset into a 1-based line and column.
func lineCol(s string, at int) (int, int) {
	if at > len(s) {
		at = len(s)
	}
	line := 1
	col := 1
	for i := 0; i < at; i++ {
		if s[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
