package engine

import (
	"xpo/geom"
	"xpo/host"
)

// Status is visibility state of the tracked node.
type Status uint8

const (
	Invisible Status = iota
	Visible
)

func (s Status) String() string {
	if s == Visible {
		return "visible"
	}
	return "invisible"
}

// element is shadow record kept for every recorded native node.
type element struct {
	node host.Node
	id   host.NodeID

	// topology, immutable after creation
	kind     Kind
	inList   bool
	inScroll bool
	inSwiper bool
	// nearest enclosing list, scroll or swiper record, may outlive its node
	// until collector runs, see Engine.ancestorOf
	ancestor *element

	rectInParent *geom.Rect
	rectInWindow *geom.Rect
	rectInScroll *geom.Rect

	// containers only
	contentOffset  *geom.Point
	clippedRect    *geom.Rect
	pullHeaderRect *geom.Rect

	ratioInWindow     float64
	lastRatioInWindow float64
	ratioInScroll     float64
	lastRatioInScroll float64

	current Status
	last    Status

	layoutCount   int
	attachedCount int

	selectedIndex int // swiper
	slideIndex    int // swiper slide, -1 until paged

	listened uint32 // bit per host.EventKind
	removed  bool
}

func newElement(n host.Node, kind Kind, parent *element) *element {
	el := &element{
		node:       n,
		id:         n.ID(),
		kind:       kind,
		slideIndex: -1,
	}
	if parent == nil {
		return el
	}

	switch {
	case kind == KindListItem || kind == KindPullHeader:
		el.ancestor = parent
		el.inList = true
	case parent.kind.IsContainer():
		el.ancestor = parent
		el.inScroll = true
		el.inSwiper = parent.kind == KindSwiper
	default:
		// propagate from parent, parent here is never a container itself
		el.ancestor = parent.ancestor
		el.inList = parent.inList || parent.kind == KindListItem
		el.inScroll = parent.inScroll
		el.inSwiper = parent.inSwiper || parent.kind == KindSwiperSlide
	}
	return el
}

func (el *element) listening(k host.EventKind) bool {
	return el.listened&(1<<uint(k)) != 0
}

func (el *element) listen(k host.EventKind) {
	if !k.IsValid() {
		return
	}
	el.listened |= 1 << uint(k)
}

// Exposure is a snapshot of tracked node state.
type Exposure struct {
	Node   host.Node
	ID     host.NodeID
	Kind   Kind
	Status Status
	// Last is status before the most recent transition.
	Last Status

	RatioInWindow float64
	RatioInScroll float64

	InList   bool
	InScroll bool
	InSwiper bool

	// RectInWindow is zero until node layout reached window.
	RectInWindow geom.Rect

	// For swiper slides: index among siblings (-1 when unknown) and paging
	// container node.
	SlideIndex int
	Swiper     host.Node
}

// Ratio returns intersection ratio relevant for the node: container one when
// it lives inside list or scroll view, window one otherwise.
func (x Exposure) Ratio() float64 {
	if x.InList || x.InScroll {
		return x.RatioInScroll
	}
	return x.RatioInWindow
}

func (x Exposure) Visible() bool {
	return x.Status == Visible
}

func (e *Engine) snapshot(el *element) Exposure {
	x := Exposure{
		Node:          el.node,
		ID:            el.id,
		Kind:          el.kind,
		Status:        el.current,
		Last:          el.last,
		RatioInWindow: el.ratioInWindow,
		RatioInScroll: el.ratioInScroll,
		InList:        el.inList,
		InScroll:      el.inScroll,
		InSwiper:      el.inSwiper,
		SlideIndex:    el.slideIndex,
	}
	if el.rectInWindow != nil {
		x.RectInWindow = *el.rectInWindow
	}
	if el.kind == KindSwiperSlide {
		if anc := e.ancestorOf(el); anc != nil && anc.kind == KindSwiper {
			x.Swiper = anc.node
		}
	}
	return x
}
