package engine

import (
	"xpo/geom"
)

// prunable decides whether subtree of a node may be skipped during forced
// re-check: it was invisible and is still fully outside of the clip, or it
// was visible and is still fully inside.
func prunable(s Status, r, clip geom.Rect) bool {
	if s == Invisible && r.Disjoint(clip) {
		return true
	}
	return s == Visible && r.ContainedIn(clip)
}

// prunedInWindow applies pruning in window frame. Never use it for nodes
// inside lists or scroll views: node may leave its container clip while
// still being inside window.
func (e *Engine) prunedInWindow(el *element) bool {
	root := e.reg.root
	if root == nil || root.rectInWindow == nil || el.rectInWindow == nil {
		// let measurement report the problem
		return false
	}
	return prunable(el.current, *el.rectInWindow, *root.rectInWindow)
}

func prunedInClip(el *element, clip geom.Rect) bool {
	if el.rectInScroll == nil {
		return false
	}
	return prunable(el.current, *el.rectInScroll, clip)
}
