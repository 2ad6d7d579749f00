package engine

import (
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"xpo/geom"
	"xpo/host"
)

var (
	commonEvents = []host.EventKind{
		host.EventKindLayout,
		host.EventKindAttachedToWindow,
		host.EventKindDetachedFromWindow,
	}
	listItemEvents = []host.EventKind{
		host.EventKindAppear,
		host.EventKindDisAppear,
		host.EventKindWillAppear,
		host.EventKindWillDisappear,
	}
	scrollEvents = []host.EventKind{
		host.EventKindScroll,
		host.EventKindMomentumScrollBegin,
		host.EventKindMomentumScrollEnd,
		host.EventKindScrollBeginDrag,
		host.EventKindScrollEndDrag,
	}
)

// subscribe attaches listeners for the record, at most once per event kind.
// Host calls are made after engine lock is released.
func (e *Engine) subscribe(el *element) {
	if e.sub == nil {
		return
	}

	kinds := commonEvents
	if el.kind == KindListItem {
		kinds = append(kinds[:len(kinds):len(kinds)], listItemEvents...)
	}
	switch el.kind {
	case KindSwiper:
		kinds = append(kinds[:len(kinds):len(kinds)], host.EventKindPageSelected)
	case KindList, KindScroll:
		kinds = append(kinds[:len(kinds):len(kinds)], scrollEvents...)
	}

	for _, k := range kinds {
		if el.listening(k) {
			continue
		}
		el.listen(k)
		n, l := el.node, e.listener(el, k)
		e.after = append(e.after, func() { e.sub.AddEventListener(n, k, l) })
	}
}

// listener binds handler to the record it was created for. Records replaced
// after collection get their own listeners, stale ones go silent.
func (e *Engine) listener(el *element, kind host.EventKind) host.Listener {
	return func(ev host.Event) {
		_ = e.locked(func() error {
			if el.removed {
				return nil
			}
			e.report(kind.String(), el, e.guard(el, func() error {
				return e.handle(el, kind, ev)
			}))
			return nil
		})
	}
}

func (e *Engine) handle(el *element, kind host.EventKind, ev host.Event) error {
	switch kind {
	case host.EventKindLayout:
		e.trace(phaseLayout, "Layout received", el, zap.Float64("left", ev.Layout.Left), zap.Float64("top", ev.Layout.Top), zap.Float64("width", ev.Layout.Width), zap.Float64("height", ev.Layout.Height))
		if !e.ready {
			e.postpone(el, phaseOnLayout, ev.Layout)
			return nil
		}
		return e.onLayout(el, ev.Layout)

	case host.EventKindAttachedToWindow:
		el.attachedCount++
		e.trace(phaseAttach, "Attached to window", el, zap.Int("count", el.attachedCount))
		if !e.ready {
			e.postpone(el, phaseOnAttached, host.LayoutEvent{})
			return nil
		}
		return e.measureOnAttached(el)

	case host.EventKindScroll:
		if el.kind == KindList {
			return e.onListScroll(el, ev.Scroll)
		}
		return e.onScrollViewScroll(el, ev.Scroll)

	case host.EventKindPageSelected:
		e.onPageSelected(el, ev.Page)
		return nil
	}

	// Detach and appearance events are reported unreliably by hosts,
	// drag and momentum phases carry nothing scroll does not.
	e.trace(phaseAttach, "Event ignored", el, zap.Stringer("event", kind))
	return nil
}

// roundOffset rounds half up, the same way native side reports offsets.
func roundOffset(v float64) float64 {
	return math.Floor(v + 0.5)
}

func (e *Engine) onListScroll(el *element, ev host.ScrollEvent) error {
	if el.clippedRect == nil {
		return nil
	}
	ox, oy := roundOffset(ev.OffsetX), roundOffset(ev.OffsetY)

	// content is shifted down by pull header
	var recoup float64
	if el.pullHeaderRect != nil {
		recoup = el.pullHeaderRect.Height + el.pullHeaderRect.Y
	}
	el.contentOffset = &geom.Point{X: ox, Y: oy}
	clip := el.clippedRect.At(geom.Point{X: ox, Y: oy + recoup})
	el.clippedRect = &clip
	e.trace(phaseMeasure, "List scrolled", el, rectField("clip", &clip))

	if e.isCustomScroll(el) {
		return nil
	}
	var errs []error
	for _, sub := range e.childElements(el) {
		errs = append(errs, e.measureInClipDeep(sub, clip, frameList))
	}
	return multierr.Combine(errs...)
}

func (e *Engine) onScrollViewScroll(el *element, ev host.ScrollEvent) error {
	if el.clippedRect == nil {
		return nil
	}
	ox, oy := roundOffset(ev.OffsetX), roundOffset(ev.OffsetY)

	el.contentOffset = &geom.Point{X: ox, Y: oy}
	clip := el.clippedRect.At(*el.contentOffset)
	el.clippedRect = &clip
	e.trace(phaseMeasure, "Scroll view scrolled", el, rectField("clip", &clip))

	if e.isCustomScroll(el) {
		return nil
	}
	container := e.firstChildElement(el)
	if container == nil {
		return nil
	}
	errs := []error{e.measureInClip(container, &clip, frameScroll)}
	for _, sub := range e.childElements(container) {
		errs = append(errs, e.measureInClipDeep(sub, clip, frameScroll))
	}
	return multierr.Combine(errs...)
}
