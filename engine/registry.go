package engine

import (
	"maps"
	"slices"

	"xpo/host"
)

// registry maps host nodes to their shadow records.
type registry struct {
	elements map[host.NodeID]*element
	// root anchors window coordinates, rootContainer is the application
	// container selected by configured element id
	root          *element
	rootContainer *element
}

func newRegistry() registry {
	return registry{elements: make(map[host.NodeID]*element)}
}

func (r *registry) get(id host.NodeID) *element {
	return r.elements[id]
}

func (r *registry) add(el *element) {
	r.elements[el.id] = el
}

func (r *registry) remove(el *element) {
	if cur, ok := r.elements[el.id]; ok && cur == el {
		delete(r.elements, el.id)
	}
	if r.rootContainer == el {
		r.rootContainer = nil
	}
	if r.root == el {
		r.root = nil
	}
}

func (r *registry) len() int {
	return len(r.elements)
}

// ordered returns records sorted by node id, so sweeps and dumps are
// deterministic.
func (r *registry) ordered() []*element {
	ids := slices.Sorted(maps.Keys(r.elements))
	out := make([]*element, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.elements[id])
	}
	return out
}
