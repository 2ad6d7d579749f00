package engine

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"xpo/geom"
	"xpo/host"
	"xpo/utils/debug"
)

// tracing phases, reported as "phase" field
const (
	phaseElement = "element"
	phaseLayout  = "layout"
	phaseAttach  = "attach"
	phaseMeasure = "measure"
	phaseVisible = "visible"
)

// trace emits debug entry when engine debugging is enabled.
func (e *Engine) trace(phase, msg string, el *element, fields ...zap.Field) {
	if !e.cfg.Debug {
		return
	}
	ce := e.log.Check(zap.DebugLevel, msg)
	if ce == nil {
		return
	}
	all := make([]zap.Field, 0, len(fields)+3)
	all = append(all, zap.String("phase", phase))
	if el != nil {
		all = append(all, zap.Stringer("node", el.id), zap.String("tag", el.node.Tag()))
	}
	ce.Write(append(all, fields...)...)
}

func rectField(key string, r *geom.Rect) zap.Field {
	if r == nil {
		return zap.Skip()
	}
	return zap.Stringer(key, *r)
}

type treeWriter struct {
	*debug.TreeWriter
}

// Dump renders registry as indented tree following host hierarchy. Records
// whose parents are not tracked are listed as separate roots.
func (e *Engine) Dump() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	tw := treeWriter{debug.NewTreeWriter()}
	tw.Line(0, "Registry ready=%t elements=%d backlog=%d pending-pages=%d", e.ready, e.reg.len(), len(e.backlog), len(e.pages))

	var tops []*element
	for _, el := range e.reg.ordered() {
		if e.parentElement(el.node) == nil {
			tops = append(tops, el)
		}
	}
	for _, el := range tops {
		tw.element(e, el, 1)
	}
	if len(e.pages) > 0 {
		tw.Line(1, "Pending pages")
		for _, id := range slices.Sorted(maps.Keys(e.pages)) {
			tw.Line(2, "swiper=%s slide=%d", id, e.pages[id].CurrentSlide)
		}
	}
	return tw.String()
}

func (tw treeWriter) element(e *Engine, root *element, depth int) {
	type item struct {
		el    *element
		depth int
	}
	stack := []item{{root, depth}}
	visited := make(map[host.NodeID]bool)
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[it.el.id] {
			continue
		}
		visited[it.el.id] = true

		el := it.el
		tw.Line(it.depth, "%s <%s> kind=%s status=%s last=%s", el.id, el.node.Tag(), el.kind, el.current, el.last)
		if el.rectInWindow != nil {
			tw.Line(it.depth+1, "window=%s ratio=%g", *el.rectInWindow, el.ratioInWindow)
		}
		if el.rectInScroll != nil {
			tw.Line(it.depth+1, "scroll=%s ratio=%g", *el.rectInScroll, el.ratioInScroll)
		}
		if el.clippedRect != nil {
			tw.Line(it.depth+1, "clip=%s", *el.clippedRect)
		}
		if el.kind == KindSwiper {
			tw.Line(it.depth+1, "selected=%d", el.selectedIndex)
		}
		if el.kind == KindSwiperSlide && el.slideIndex >= 0 {
			tw.Line(it.depth+1, "slide=%d", el.slideIndex)
		}
		if id := el.node.ElementID(); len(id) > 0 {
			tw.TextBlock(it.depth+1, "id", id)
		}

		kids := e.childElements(el)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, item{kids[i], it.depth + 1})
		}
	}
}
