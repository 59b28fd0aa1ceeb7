package validator

import (
	"fmt"
	"strings"

	"github.com/skymethod/livewire-validator-sub001/app/xmltree"
)

// ValueRule is a pure predicate over trimmed attribute or element
// text, with a human description for diagnostics.
type ValueRule struct {
	Test func(string) bool
	What string
}

// ElementCheck validates one element: required/optional attributes,
// element text, and finally a closed-world sweep of any attribute not
// consumed by an earlier check. Checks on a nil node are no-ops, so an
// entirely absent optional element never cascades into diagnostics.
type ElementCheck struct {
	label     string
	node      *xmltree.Node
	callbacks *Callbacks
	ref       *Reference
	remaining map[string]bool
}

func checkElement(label string, node *xmltree.Node, callbacks *Callbacks, ref *Reference) *ElementCheck {
	check := &ElementCheck{label: label, node: node, callbacks: callbacks, ref: ref}
	if node != nil {
		check.remaining = make(map[string]bool, len(node.Atts))
		for name := range node.Atts {
			check.remaining[name] = true
		}
	}
	return check
}

func (c *ElementCheck) warn(format string, args ...any) {
	c.callbacks.warning(Message{
		Text:      fmt.Sprintf(format, args...),
		Node:      c.node,
		Tag:       c.label,
		Reference: c.ref,
	})
}

// RequiredAttribute warns when the attribute is missing or its trimmed
// value fails the rule.
func (c *ElementCheck) RequiredAttribute(name string, rule ValueRule) *ElementCheck {
	if c.node == nil {
		return c
	}
	delete(c.remaining, name)
	value, ok := c.node.Atts[name]
	if !ok {
		c.warn("Missing %s %s attribute", c.label, name)
		return c
	}
	c.checkAttributeValue(name, value, rule)
	return c
}

// RequiredAttributeIf behaves like RequiredAttribute when cond holds,
// like OptionalAttribute otherwise.
func (c *ElementCheck) RequiredAttributeIf(name string, cond bool, rule ValueRule) *ElementCheck {
	if cond {
		return c.RequiredAttribute(name, rule)
	}
	return c.OptionalAttribute(name, rule)
}

// OptionalAttribute warns only when the attribute is present with a
// value failing the rule.
func (c *ElementCheck) OptionalAttribute(name string, rule ValueRule) *ElementCheck {
	if c.node == nil {
		return c
	}
	delete(c.remaining, name)
	if value, ok := c.node.Atts[name]; ok {
		c.checkAttributeValue(name, value, rule)
	}
	return c
}

// AtLeastOneAttribute warns unless at least one of the named
// attributes is present, then applies the per-name rules.
func (c *ElementCheck) AtLeastOneAttribute(rules map[string]ValueRule, names ...string) *ElementCheck {
	if c.node == nil {
		return c
	}
	found := false
	for _, name := range names {
		delete(c.remaining, name)
		value, ok := c.node.Atts[name]
		if !ok {
			continue
		}
		found = true
		if rule, hasRule := rules[name]; hasRule {
			c.checkAttributeValue(name, value, rule)
		}
	}
	if !found {
		c.warn("Missing %s attribute: expected at least one of %s", c.label, strings.Join(names, ", "))
	}
	return c
}

// Value warns when the element's text fails the rule. An empty rule
// What means any non-empty text is accepted.
func (c *ElementCheck) Value(rule ValueRule) *ElementCheck {
	if c.node == nil {
		return c
	}
	text := strings.TrimSpace(c.node.Text)
	if rule.Test != nil && !rule.Test(text) {
		c.warn("Bad %s value: %q, expected %s", c.label, text, rule.What)
	}
	return c
}

// RemainingAttributes flags every attribute not consumed by a prior
// check. Unknown attributes are warnings, never silently ignored.
func (c *ElementCheck) RemainingAttributes() *ElementCheck {
	if c.node == nil {
		return c
	}
	for name := range c.remaining {
		c.warn("Unexpected %s attribute: %s", c.label, name)
	}
	return c
}

func (c *ElementCheck) checkAttributeValue(name, value string, rule ValueRule) {
	trimmed := strings.TrimSpace(value)
	if rule.Test != nil && !rule.Test(trimmed) {
		c.warn("Bad %s %s attribute value: %q, expected %s", c.label, name, trimmed, rule.What)
	}
}
