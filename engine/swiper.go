package engine

import (
	"go.uber.org/zap"

	"xpo/geom"
	"xpo/host"
)

// slides returns records of swiper pages by page index. Untracked pages are
// kept as nil to preserve indexes.
func (e *Engine) slides(sw *element) []*element {
	var out []*element
	for _, c := range sw.node.Children() {
		if c == nil || !c.Native() || c.Tag() != e.cfg.Tags.SwiperSlide {
			continue
		}
		out = append(out, e.reg.get(c.ID()))
	}
	return out
}

// measureSwiperSelf measures paging container in its own clipping context
// and drives page visibility on its edges.
func (e *Engine) measureSwiperSelf(sw *element) {
	root := e.reg.root
	if root == nil || root.rectInWindow == nil {
		return
	}
	if sw.clippedRect == nil {
		// not laid out yet
		return
	}
	if sw.rectInWindow == nil && sw.rectInScroll == nil {
		return
	}

	ratio := -1.0
	if clip := e.ancestorClip(sw); sw.rectInScroll != nil && clip != nil {
		// swiper itself scrolls inside another container
		ratio = geom.IntersectionRatio(*sw.rectInScroll, *clip)
		sw.lastRatioInScroll, sw.ratioInScroll = sw.ratioInScroll, ratio
	} else if sw.rectInWindow != nil {
		ratio = geom.IntersectionRatio(*sw.rectInWindow, *root.rectInWindow)
		sw.lastRatioInWindow, sw.ratioInWindow = sw.ratioInWindow, ratio
	}
	e.trace(phaseMeasure, "Measured swiper", sw, zap.Float64("ratio", ratio), zap.Int("selected", sw.selectedIndex))

	was := sw.current
	if ratio > 0 {
		e.setStatus(sw, Visible, was != Visible)
		if was != Visible {
			// single page never pages, selected index covers it as well
			e.slideVisible(sw, sw.selectedIndex)
		}
		return
	}
	e.setStatus(sw, Invisible, was == Visible)
	if was == Visible {
		e.slidesInvisible(sw)
	}
}

// slideVisible makes page at index the only visible one. Selected page is
// always reported, carousels re-select the same page periodically.
func (e *Engine) slideVisible(sw *element, index int) {
	pages := e.slides(sw)
	if index < 0 || index >= len(pages) {
		return
	}
	cur := pages[index]
	if cur == nil {
		return
	}
	cur.slideIndex = index
	e.setStatus(cur, Visible, true)

	for i, p := range pages {
		if i == index || p == nil {
			continue
		}
		p.slideIndex = i
		e.setStatus(p, Invisible, p.current == Visible)
	}
}

func (e *Engine) slidesInvisible(sw *element) {
	for i, p := range e.slides(sw) {
		if p == nil {
			continue
		}
		p.slideIndex = i
		e.setStatus(p, Invisible, p.current == Visible)
	}
}

// onPageSelected handles page selection reported by swiper.
func (e *Engine) onPageSelected(sw *element, ev host.PageEvent) {
	if !e.ready {
		return
	}

	// host may report the same selection several times in a row
	now, prev := e.now(), e.lastPage
	e.lastPage = pageStamp{id: sw.id, at: now, set: true}
	if prev.set && prev.id == sw.id && now.Sub(prev.at).Abs() < e.cfg.PageDebounce {
		e.trace(phaseMeasure, "Page selection debounced", sw, zap.Int("slide", ev.CurrentSlide))
		return
	}

	if sw.rectInParent == nil {
		e.pages[sw.id] = ev
		e.trace(phaseMeasure, "Page selection postponed", sw, zap.Int("slide", ev.CurrentSlide))
		return
	}
	e.measureSwiperPage(sw, ev)
}

func (e *Engine) measureSwiperPage(sw *element, ev host.PageEvent) {
	if ev.CurrentSlide < 0 || ev.CurrentSlide >= len(e.slides(sw)) {
		e.trace(phaseMeasure, "Page selection out of range", sw, zap.Int("slide", ev.CurrentSlide))
		return
	}
	sw.selectedIndex = ev.CurrentSlide
	if sw.current == Visible {
		// swiper status itself is maintained by measurement paths
		e.slideVisible(sw, ev.CurrentSlide)
	}
}

// runPendingPage consumes postponed page selection once swiper has layout.
func (e *Engine) runPendingPage(sw *element) {
	ev, ok := e.pages[sw.id]
	if !ok {
		return
	}
	delete(e.pages, sw.id)
	e.measureSwiperPage(sw, ev)
}
