package css

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Value represents a parsed declaration value.
type Value struct {
	Raw     string  // Original value text
	Value   float64 // Numeric value (if applicable)
	Unit    string  // Unit (px, %, etc.)
	Keyword string  // Keyword value (scroll, hidden, etc.)
}

// IsNumeric returns true if the value has a numeric component.
func (v Value) IsNumeric() bool {
	return v.Keyword == "" && v.Raw != ""
}

// IsKeyword returns true if the value is a keyword.
func (v Value) IsKeyword() bool {
	return v.Keyword != ""
}

// String returns value as it goes into computed style.
func (v Value) String() string {
	if v.IsKeyword() {
		return v.Keyword
	}
	if v.Raw == "" {
		return ""
	}
	return strconv.FormatFloat(v.Value, 'f', -1, 64) + v.Unit
}

// Selector is a compound selector "tag#id.class1.class2", optionally
// preceded by descendant ancestors.
type Selector struct {
	Raw      string
	Element  string // tag name, empty or "*" matches any
	ID       string
	Classes  []string
	Ancestor *Selector
}

// IsSimple returns true if selector can be matched against an element.
func (s Selector) IsSimple() bool {
	return s.Element != "" || s.ID != "" || len(s.Classes) > 0
}

// IsDescendant returns true if selector requires an ancestor match.
func (s Selector) IsDescendant() bool {
	return s.Ancestor != nil
}

// Specificity returns selector weight packed as ids, classes, elements.
func (s Selector) Specificity() int {
	specificity := 0
	for cur := &s; cur != nil; cur = cur.Ancestor {
		if cur.ID != "" {
			specificity += 10000
		}
		specificity += 100 * len(cur.Classes)
		if cur.Element != "" && cur.Element != "*" {
			specificity++
		}
	}
	return specificity
}

// Rule represents a single CSS rule with selector and properties.
type Rule struct {
	Selector   Selector
	Properties map[string]Value
}

// GetProperty returns a property value by name.
func (r Rule) GetProperty(name string) (Value, bool) {
	v, ok := r.Properties[name]
	return v, ok
}

// Stylesheet holds rules in source order.
type Stylesheet struct {
	Rules    []Rule
	Warnings []string
}

// RulesBySelector returns all rules matching a selector.
func (s *Stylesheet) RulesBySelector(selector string) []Rule {
	if s == nil {
		return nil
	}
	var result []Rule
	for _, r := range s.Rules {
		if r.Selector.Raw == selector {
			result = append(result, r)
		}
	}
	return result
}

// WriteTo writes stylesheet back as CSS text, properties sorted by name.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i := range s.Rules {
		n, err := writeRule(w, &s.Rules[i])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Stylesheet) String() string {
	var b strings.Builder
	_, _ = s.WriteTo(&b)
	return b.String()
}

func writeRule(w io.Writer, rule *Rule) (int, error) {
	var b strings.Builder
	b.WriteString(rule.Selector.Raw)
	b.WriteString(" {\n")
	for _, name := range slices.Sorted(maps.Keys(rule.Properties)) {
		fmt.Fprintf(&b, "  %s: %s;\n", name, rule.Properties[name].Raw)
	}
	b.WriteString("}\n")
	return io.WriteString(w, b.String())
}
