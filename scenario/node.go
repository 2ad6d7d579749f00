package scenario

import (
	"xpo/geom"
	"xpo/host"
)

// Node is element of the simulated UI tree.
type Node struct {
	id      host.NodeID
	tag     string
	key     string
	eid     string
	classes []string
	inline  map[string]string
	style   host.Style
	virtual bool
	root    bool
	// bounding rectangle reported through the bridge, overrides layout
	rect *geom.Rect
	bind *bindSpec

	// host side geometry maintained by simulator
	layout *geom.Rect
	offset geom.Point

	parent *Node
	kids   []*Node
}

type bindSpec struct {
	data   string
	enable *bool
}

func (b *bindSpec) arg() any {
	if b.enable == nil {
		return nil
	}
	return *b.enable
}

func (n *Node) ID() host.NodeID   { return n.id }
func (n *Node) Tag() string       { return n.tag }
func (n *Node) ElementID() string { return n.eid }
func (n *Node) IsRoot() bool      { return n.root }
func (n *Node) Native() bool      { return !n.virtual }

// Key is the name scripts refer to node by.
func (n *Node) Key() string { return n.key }

// Style is computed style node is recorded with.
func (n *Node) Style() host.Style { return n.style }

func (n *Node) Parent() host.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) Children() []host.Node {
	out := make([]host.Node, 0, len(n.kids))
	for _, k := range n.kids {
		out = append(out, k)
	}
	return out
}

// detach removes node from its parent, subtree stays intact.
func (n *Node) detach() {
	p := n.parent
	if p == nil {
		return
	}
	for i, k := range p.kids {
		if k == n {
			p.kids = append(p.kids[:i:i], p.kids[i+1:]...)
			break
		}
	}
	n.parent = nil
}

func (n *Node) appendChild(c *Node) {
	c.parent = n
	n.kids = append(n.kids, c)
}

// preorder returns subtree in document order.
func (n *Node) preorder() []*Node {
	var out []*Node
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		for i := len(cur.kids) - 1; i >= 0; i-- {
			stack = append(stack, cur.kids[i])
		}
	}
	return out
}
