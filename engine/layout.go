package engine

import (
	"go.uber.org/zap"

	"xpo/geom"
	"xpo/host"
)

// onLayout processes layout event once engine is ready.
func (e *Engine) onLayout(el *element, ev host.LayoutEvent) error {
	el.layoutCount++
	e.updateLayout(el, ev)

	if el.layoutCount > 1 {
		// node moved, everything below it moved too
		return e.measureOnLayoutUpdated(el)
	}
	// First layout only computes geometry, exposure is reported on attach.
	// Host sometimes attaches nodes before laying them out, catch up here.
	if el.attachedCount > 0 {
		return e.measureOnAttached(el)
	}
	return nil
}

// updateLayout runs propagation pipeline, order of steps is significant.
func (e *Engine) updateLayout(el *element, ev host.LayoutEvent) {
	e.layoutInParent(el, ev)
	e.layoutInWindow(el)
	e.initScrollContent(el)
	e.layoutInScroll(el)

	if el.rectInWindow != nil && e.fetch != nil {
		e.fetch.invalidate(el.id)
	}

	if el.kind == KindSwiper {
		// slides never move relative to swiper, only resolve paging
		e.runPendingPage(el)
		return
	}
	if el.layoutCount > 1 {
		e.updateDescendantLayout(el)
	}
}

func (e *Engine) layoutInParent(el *element, ev host.LayoutEvent) {
	r := geom.Rect{X: ev.Left, Y: ev.Top, Width: ev.Width, Height: ev.Height}
	el.rectInParent = &r

	if el.kind == KindPullHeader {
		if anc := e.ancestorOf(el); anc != nil {
			anc.pullHeaderRect = &r
			// correct initial clip only, scroll handler compensates later
			if anc.clippedRect != nil && anc.clippedRect.Y == 0 {
				c := *anc.clippedRect
				c.Y = r.Height + r.Y
				anc.clippedRect = &c
			}
		}
	}
	e.trace(phaseLayout, "Layout in parent", el, rectField("rect", el.rectInParent))
}

func (e *Engine) layoutInWindow(el *element) {
	if el.rectInParent == nil {
		return
	}
	if el.node.IsRoot() {
		r := *el.rectInParent
		el.rectInWindow = &r
		el.ratioInWindow = 1.0
		return
	}

	parent := e.parentElement(el.node)
	if parent == nil || parent.rectInWindow == nil {
		// parent is not laid out yet, later event will retry
		e.trace(phaseLayout, "Parent is not in window", el)
		return
	}
	r := el.rectInParent.Offset(parent.rectInWindow.Origin())
	el.rectInWindow = &r
	e.trace(phaseLayout, "Layout in window", el, rectField("rect", el.rectInWindow))
}

// initScrollContent sets initial content offset and clip of a container.
// Both are later maintained by scroll handlers.
func (e *Engine) initScrollContent(el *element) {
	if !el.kind.IsContainer() {
		return
	}
	if el.contentOffset == nil {
		el.contentOffset = &geom.Point{}
	}
	if el.clippedRect == nil {
		var size geom.Size
		if el.rectInParent != nil {
			size = el.rectInParent.Size()
		}
		c := geom.FromSize(size).At(*el.contentOffset)
		el.clippedRect = &c
		e.trace(phaseLayout, "Container clip initialized", el, rectField("clip", el.clippedRect))
	}
}

func (e *Engine) layoutInScroll(el *element) {
	if el.rectInParent == nil {
		return
	}
	parent := e.parentElement(el.node)
	parentScrolls := parent != nil && parent.kind.IsScrollView()

	if !el.kind.IsContainer() && (el.kind == KindListItem || parentScrolls) {
		// direct content of container shares its clip origin
		r := *el.rectInParent
		el.rectInScroll = &r
	} else if parent != nil && parent.rectInScroll != nil {
		r := el.rectInParent.Offset(parent.rectInScroll.Origin())
		el.rectInScroll = &r
	}
	e.trace(phaseLayout, "Layout in scroll", el, rectField("rect", el.rectInScroll))
}

// updateDescendantLayout recomputes window and container rectangles of the
// whole subtree after node moved. Visibility is not touched here.
func (e *Engine) updateDescendantLayout(el *element) {
	stack := e.childElements(el)
	for len(stack) > 0 {
		sub := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !e.valid(sub) {
			continue
		}
		e.layoutInWindow(sub)
		e.layoutInScroll(sub)
		stack = append(stack, e.childElements(sub)...)
	}
	e.trace(phaseLayout, "Descendants updated", el, zap.Int("layouts", el.layoutCount))
}
