package css

import (
	"maps"
	"slices"

	"xpo/host"
)

// Element is what selectors are matched against.
type Element struct {
	Tag     string
	ID      string
	Classes []string
	Parent  *Element
}

func (s *Selector) matchCompound(el *Element) bool {
	if s.Element != "" && s.Element != "*" && s.Element != el.Tag {
		return false
	}
	if s.ID != "" && s.ID != el.ID {
		return false
	}
	for _, c := range s.Classes {
		if !slices.Contains(el.Classes, c) {
			return false
		}
	}
	return true
}

// Matches reports whether selector applies to element.
func (s *Selector) Matches(el *Element) bool {
	if el == nil || !s.matchCompound(el) {
		return false
	}
	if s.Ancestor == nil {
		return true
	}
	for a := el.Parent; a != nil; a = a.Parent {
		if s.Ancestor.Matches(a) {
			return true
		}
	}
	return false
}

// Compute resolves style of the element: matching rules are applied by
// specificity then source order, inline declarations override everything.
func (s *Stylesheet) Compute(el *Element, inline map[string]string) host.Style {
	style := make(host.Style)

	if s != nil {
		var matched []int
		for i := range s.Rules {
			if s.Rules[i].Selector.Matches(el) {
				matched = append(matched, i)
			}
		}
		slices.SortStableFunc(matched, func(a, b int) int {
			return s.Rules[a].Selector.Specificity() - s.Rules[b].Selector.Specificity()
		})
		for _, i := range matched {
			for name, v := range s.Rules[i].Properties {
				style[PropertyName(name)] = v.String()
			}
		}
	}
	maps.Copy(style, inline)
	return style
}
