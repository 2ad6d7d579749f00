package plugin

import (
	"go.uber.org/zap"

	"xpo/engine"
	"xpo/host"
)

// staticCheck tells whether bound node may be reported right now. Called
// with lock held.
func (p *Plugin) staticCheck(n host.Node) bool {
	if !p.pageShow || !p.eng.IsReady() {
		return false
	}
	x, ok := p.eng.Query(n)
	if !ok || !x.Visible() {
		return false
	}
	return x.Ratio() >= p.cfg.ExposureRatioThreshold
}

// tryVisible reports binding once until it is invalidated.
func (p *Plugin) tryVisible(b *binding) *delivery {
	switch {
	case p.visible == nil,
		!p.staticCheck(b.node),
		b.Exposed,
		!b.Enable,
		b.Data == nil:
		return nil
	}
	b.Exposed = true
	return &delivery{fn: p.visible, node: b.node, data: b.Data}
}

// tryInvisible does not look at page visibility: background refresh may
// change layout of a hidden page.
func (p *Plugin) tryInvisible(b *binding) *delivery {
	if p.cfg.ReNotifyWhenReVisible {
		b.Exposed = false
	}
	if p.invisible == nil || !p.eng.IsReady() {
		return nil
	}
	return &delivery{fn: p.invisible, node: b.node, data: b.Data}
}

// force reports binding ignoring earlier reports.
func (p *Plugin) force(b *binding, checkEnable bool) *delivery {
	switch {
	case p.visible == nil,
		!p.eng.IsReady(),
		b.Data == nil,
		checkEnable && !b.Enable,
		!p.staticCheck(b.node):
		return nil
	}
	return &delivery{fn: p.visible, node: b.node, data: b.Data}
}

// Visible implements engine.Observer.
func (p *Plugin) Visible(x engine.Exposure) {
	if !p.PageShow() {
		return
	}
	p.emitTransition(x, true)

	p.locked(func() *delivery {
		if b, ok := p.bindings[x.ID]; ok {
			return p.tryVisible(b)
		}
		return nil
	})
}

// Invisible implements engine.Observer.
func (p *Plugin) Invisible(x engine.Exposure) {
	p.emitTransition(x, false)

	p.locked(func() *delivery {
		if b, ok := p.bindings[x.ID]; ok {
			return p.tryInvisible(b)
		}
		return nil
	})
}

func (p *Plugin) emitTransition(x engine.Exposure, visible bool) {
	ev := VisibilityEvent{Node: x.Node, RatioInClipped: x.RatioInScroll, RatioInWindow: x.RatioInWindow}
	name := EventInvisible
	if visible {
		name = EventVisible
	}
	p.emit(x.Node, name, ev)

	if x.Kind != engine.KindSwiperSlide || x.Swiper == nil || x.SlideIndex < 0 {
		return
	}
	name = EventSwiperInvisible
	if visible {
		name = EventSwiperVisible
	}
	p.log.Debug("Slide transition", zap.Stringer("swiper", x.Swiper.ID()), zap.Int("index", x.SlideIndex), zap.Bool("visible", visible))
	p.emit(x.Swiper, name, SlideEvent{Slide: x.Node, Visible: visible, Index: x.SlideIndex})
}
