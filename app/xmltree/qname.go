package xmltree

import (
	"fmt"
	"strings"
)

// Qname is a namespace-qualified element or attribute name. An empty
// NamespaceURI means the name is in no namespace.
type Qname struct {
	Name         string
	NamespaceURI string
}

func (q Qname) String() string {
	if q.NamespaceURI == "" {
		return q.Name
	}
	return "{" + q.NamespaceURI + "}" + q.Name
}

// ApplyQnames decorates every element of the tree in place with its
// resolved Qname and a namespace-stripped attribute map (Atts, with
// all xmlns declarations removed). Resolution uses a stack of
// prefix-to-URI scopes, the usual lexical scoping of XML namespaces.
// Running it twice yields identical assignments.
func ApplyQnames(root *Node) error {
	var stack []map[string]string
	if err := applyQnames(root, &stack); err != nil {
		return err
	}
	if len(stack) != 0 {
		return fmt.Errorf("namespace scope stack not unwound, %d scopes remain", len(stack))
	}
	return nil
}

func applyQnames(n *Node, stack *[]map[string]string) error {
	scope := make(map[string]string)
	for name, value := range n.Attributes {
		if name == "xmlns" {
			scope[""] = value
		} else if strings.HasPrefix(name, "xmlns:") {
			scope[name[len("xmlns:"):]] = value
		}
	}
	*stack = append(*stack, scope)

	qname, err := resolveQname(n.TagName, *stack, true)
	if err != nil {
		return fmt.Errorf("element <%s>: %w", n.TagName, err)
	}
	n.Qname = qname

	n.Atts = make(map[string]string, len(n.Attributes))
	for name, value := range n.Attributes {
		if name == "xmlns" || strings.HasPrefix(name, "xmlns:") {
			continue
		}
		local := name
		if i := strings.IndexByte(name, ':'); i >= 0 {
			local = name[i+1:]
		}
		n.Atts[local] = value
	}

	for _, child := range n.ChildNodes() {
		if err := applyQnames(child, stack); err != nil {
			return err
		}
	}

	*stack = (*stack)[:len(*stack)-1]
	return nil
}

// resolveQname looks a prefixed name up through the scope stack,
// innermost scope first. An unprefixed element name resolves to the
// default namespace in scope, which may be none.
func resolveQname(name string, stack []map[string]string, useDefault bool) (Qname, error) {
	prefix := ""
	local := name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		prefix = name[:i]
		local = name[i+1:]
	}
	if prefix == "" && !useDefault {
		return Qname{Name: local}, nil
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if uri, ok := stack[i][prefix]; ok {
			return Qname{Name: local, NamespaceURI: uri}, nil
		}
	}
	if prefix != "" && prefix != "xml" {
		return Qname{}, fmt.Errorf("namespace prefix %q is not declared", prefix)
	}
	return Qname{Name: local}, nil
}
