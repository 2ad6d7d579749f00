package engine

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"xpo/geom"
)

// frame names clipping context of scroll relative measurement, used for
// tracing and to select membership test during traversal.
type frame uint8

const (
	frameList frame = iota
	frameScroll
)

func (f frame) String() string {
	if f == frameList {
		return "list"
	}
	return "scroll"
}

func (f frame) contains(el *element) bool {
	if f == frameList {
		return el.inList
	}
	return el.inScroll
}

// swiperAhead diverts paging related nodes from generic measurement. Swiper
// is measured by its own path, slides and their content are driven by page
// selection.
func (e *Engine) swiperAhead(el *element) bool {
	switch {
	case el.kind == KindSwiper:
		e.measureSwiperSelf(el)
		return true
	case el.kind == KindSwiperSlide:
		return true
	case el.inScroll:
		if anc := e.ancestorOf(el); anc != nil && anc.kind == KindSwiper {
			return true
		}
	}
	return false
}

// measurePlain measures node outside of any list or scroll view against
// window. Does not descend.
func (e *Engine) measurePlain(el *element) error {
	if el.inList || el.inScroll {
		return nil
	}
	if e.swiperAhead(el) {
		return nil
	}

	root := e.reg.root
	if root == nil {
		return ErrRootMissing
	}
	if root.rectInWindow == nil {
		return ErrRootUnsized
	}
	if el.rectInWindow == nil {
		e.trace(phaseMeasure, "Node is not in window yet", el)
		return nil
	}

	ratio := geom.IntersectionRatio(*el.rectInWindow, *root.rectInWindow)
	last := el.ratioInWindow
	el.lastRatioInWindow, el.ratioInWindow = last, ratio

	e.trace(phaseMeasure, "Measured in window", el, rectField("rect", el.rectInWindow), rectField("clip", root.rectInWindow), zap.Float64("ratio", ratio))
	e.poll(el, last, ratio)
	return nil
}

// measureInClip measures node inside list or scroll view against container
// clip captured when event arrived. Does not descend.
func (e *Engine) measureInClip(el *element, clip *geom.Rect, f frame) error {
	if clip == nil {
		e.trace(phaseMeasure, "Container clip is not set", el, zap.Stringer("frame", f))
		return nil
	}
	if el.rectInScroll == nil {
		e.trace(phaseMeasure, "Node is not in container yet", el, zap.Stringer("frame", f))
		return nil
	}
	if e.swiperAhead(el) {
		return nil
	}

	ratio := geom.IntersectionRatio(*el.rectInScroll, *clip)
	last := el.ratioInScroll
	el.lastRatioInScroll, el.ratioInScroll = last, ratio

	e.trace(phaseMeasure, "Measured in container", el, zap.Stringer("frame", f), rectField("rect", el.rectInScroll), rectField("clip", clip), zap.Float64("ratio", ratio))
	e.poll(el, last, ratio)
	return nil
}

// measureInClipDeep measures subtree against container clip, pruning
// branches whose state could not have changed.
func (e *Engine) measureInClipDeep(start *element, clip geom.Rect, f frame) error {
	return e.walk(start, func(el *element) (bool, error) {
		if !f.contains(el) {
			return false, nil
		}
		if prunedInClip(el, clip) {
			return false, nil
		}
		if e.swiperAhead(el) {
			return false, nil
		}
		return true, e.measureInClip(el, &clip, f)
	})
}

// measureOnLayoutUpdated re-checks subtree of a node which got new layout.
func (e *Engine) measureOnLayoutUpdated(el *element) error {
	return e.walk(el, e.layoutUpdatedStep)
}

func (e *Engine) layoutUpdatedStep(el *element) (bool, error) {
	if e.swiperAhead(el) {
		return false, nil
	}
	switch {
	case el.inList:
		if clip := e.ancestorClip(el); clip != nil {
			return false, e.measureInClipDeep(el, *clip, frameList)
		}
		return false, nil
	case el.inScroll:
		if clip := e.ancestorClip(el); clip != nil {
			return false, e.measureInClipDeep(el, *clip, frameScroll)
		}
		return false, nil
	}

	if e.prunedInWindow(el) {
		return false, nil
	}
	return true, e.measurePlain(el)
}

// measureOnAttached reports node which was attached to window.
func (e *Engine) measureOnAttached(el *element) error {
	anc := e.ancestorOf(el)
	if anc != nil && anc.kind == KindSwiper {
		// paging content, handled on page selection
		return nil
	}

	if !el.inList {
		if el.inScroll {
			return e.measureInClip(el, e.ancestorClip(el), frameScroll)
		}
		err := e.measurePlain(el)
		if el.kind.IsScrollView() {
			// content container of scroll view gets layout but never
			// reports attach, measure it together with its scroll view
			if c := e.firstChildElement(el); c != nil {
				err = multierr.Append(err, e.measureInClip(c, e.ancestorClip(c), frameScroll))
			}
		}
		return err
	}

	if el.kind == KindListItem {
		// recycled list items normally never report attach
		return e.measurePlain(el)
	}

	if anc == nil || anc.clippedRect == nil {
		return nil
	}
	clip := anc.clippedRect
	var err error
	if parent := e.parentElement(el.node); parent != nil && parent.kind == KindListItem {
		// some platforms do not attach list items, report item first
		err = e.measureInClip(parent, clip, frameList)
	}
	return multierr.Append(err, e.measureInClip(el, clip, frameList))
}
