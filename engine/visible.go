package engine

import (
	"go.uber.org/zap"
)

// RatioTolerance is minimal ratio growth of an already visible node which
// is reported again when ratio checking is enabled.
const RatioTolerance = 0.001

// setStatus commits new status keeping one step of history and queues
// notification when requested. Nothing else changes element status.
func (e *Engine) setStatus(el *element, s Status, notify bool) {
	el.last = el.current
	el.current = s
	if !notify {
		return
	}
	e.trace(phaseVisible, "Status reported", el, zap.Stringer("status", s), zap.Float64("window", el.ratioInWindow), zap.Float64("scroll", el.ratioInScroll))
	e.outbox = append(e.outbox, notice{visible: s == Visible, x: e.snapshot(el)})
}

// poll drives visibility state machine with freshly measured ratio.
func (e *Engine) poll(el *element, last, ratio float64) {
	if ratio > 0 {
		e.pollVisible(el, last, ratio)
		return
	}
	e.pollInvisible(el)
}

func (e *Engine) pollVisible(el *element, last, ratio float64) {
	notify := el.current != Visible
	if !notify && e.cfg.CheckRatio && last != 0 {
		// noticeably larger part is exposed now
		notify = ratio-last > RatioTolerance
	}
	e.setStatus(el, Visible, notify)
}

func (e *Engine) pollInvisible(el *element) {
	e.setStatus(el, Invisible, el.current == Visible)
}
