package engine

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"xpo/host"
)

type phase uint8

const (
	phaseOnLayout phase = iota
	phaseOnAttached
)

func (p phase) String() string {
	if p == phaseOnLayout {
		return "layout"
	}
	return "attached"
}

// backlogEntry is an event received before engine became ready.
type backlogEntry struct {
	el     *element
	phase  phase
	layout host.LayoutEvent
}

func (e *Engine) postpone(el *element, p phase, ev host.LayoutEvent) {
	e.backlog = append(e.backlog, backlogEntry{el: el, phase: p, layout: ev})
}

// drainBacklog replays postponed events in arrival order. Records collected
// in the meantime are skipped.
func (e *Engine) drainBacklog() error {
	var errs error
	for len(e.backlog) > 0 {
		b := e.backlog[0]
		e.backlog[0] = backlogEntry{}
		e.backlog = e.backlog[1:]

		if b.el.removed {
			e.trace(phaseElement, "Skipping collected element", b.el, zap.Stringer("backlog", b.phase))
			continue
		}
		errs = multierr.Append(errs, e.guard(b.el, func() error {
			if b.phase == phaseOnLayout {
				return e.onLayout(b.el, b.layout)
			}
			return e.measureOnAttached(b.el)
		}))
	}
	e.backlog = nil
	return errs
}
