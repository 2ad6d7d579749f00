package engine

import (
	"go.uber.org/zap"

	"xpo/host"
)

// collector throttles registry sweeps: one pending sweep at a time and a
// cooldown window after each run.
type collector struct {
	scheduled bool
	cooling   bool
	sweeps    int
}

// scheduleCollect requests idle sweep, called with lock held.
func (e *Engine) scheduleCollect() {
	if e.gc.scheduled || e.gc.cooling || e.sched == nil {
		return
	}
	e.gc.scheduled = true
	e.after = append(e.after, func() {
		e.sched.RequestIdle(e.cfg.GC.IdleTimeout, e.idleCollect)
	})
}

func (e *Engine) idleCollect() {
	_ = e.locked(func() error {
		e.sweep()
		e.gc.scheduled = false
		e.gc.cooling = true
		e.after = append(e.after, func() {
			e.sched.AfterFunc(e.cfg.GC.Cooldown, func() {
				e.mu.Lock()
				e.gc.cooling = false
				e.mu.Unlock()
			})
		})
		return nil
	})
}

// Collect sweeps registry immediately regardless of throttling and returns
// number of removed records.
func (e *Engine) Collect() int {
	var n int
	_ = e.locked(func() error {
		n = e.sweep()
		return nil
	})
	return n
}

// detached reports node which is no longer reachable through its parent.
func detached(n host.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return !n.IsRoot()
	}
	id := n.ID()
	for _, c := range parent.Children() {
		if c != nil && c.ID() == id {
			return false
		}
	}
	return true
}

func (e *Engine) sweep() int {
	e.gc.sweeps++
	visited := make(map[host.NodeID]struct{})

	removed := 0
	for _, el := range e.reg.ordered() {
		if _, ok := visited[el.id]; ok {
			continue
		}
		if detached(el.node) {
			removed += e.removeSubtree(el.node, visited)
		}
	}
	if removed > 0 {
		e.log.Debug("Registry swept", zap.Int("removed", removed), zap.Int("left", e.reg.len()), zap.Int("sweep", e.gc.sweeps))
	}
	return removed
}

// removeSubtree drops records of the node and its former descendants, children
// first. Removed records are flagged so anything still holding them turns
// into no-op.
func (e *Engine) removeSubtree(n host.Node, visited map[host.NodeID]struct{}) int {
	type item struct {
		node     host.Node
		expanded bool
	}

	removed := 0
	stack := []item{{node: n}}
	for len(stack) > 0 {
		top := len(stack) - 1
		it := stack[top]
		id := it.node.ID()

		if it.expanded {
			stack = stack[:top]
			if el := e.reg.get(id); el != nil {
				el.removed = true
				e.reg.remove(el)
				delete(e.pages, id)
				if e.fetch != nil {
					e.fetch.forget(id)
				}
				e.trace(phaseElement, "Element collected", el)
				removed++
			}
			continue
		}

		if _, seen := visited[id]; seen || e.reg.get(id) == nil {
			stack = stack[:top]
			continue
		}
		visited[id] = struct{}{}
		stack[top].expanded = true
		for _, c := range it.node.Children() {
			if c != nil {
				stack = append(stack, item{node: c})
			}
		}
	}
	return removed
}
