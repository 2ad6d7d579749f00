package plugin

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"xpo/config"
	"xpo/engine"
	"xpo/geom"
	"xpo/host"
)

type node struct {
	id      host.NodeID
	tag     string
	root    bool
	virtual bool
	parent  *node
	kids    []*node
}

func (n *node) ID() host.NodeID   { return n.id }
func (n *node) Tag() string       { return n.tag }
func (n *node) ElementID() string { return "" }
func (n *node) IsRoot() bool      { return n.root }
func (n *node) Native() bool      { return !n.virtual }

func (n *node) Parent() host.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *node) Children() []host.Node {
	out := make([]host.Node, 0, len(n.kids))
	for _, k := range n.kids {
		out = append(out, k)
	}
	return out
}

type emitted struct {
	node    host.NodeID
	name    string
	payload any
}

type fakeHost struct {
	mu        sync.Mutex
	next      host.NodeID
	listeners map[host.NodeID]map[host.EventKind]host.Listener
	events    []emitted
}

func (h *fakeHost) AddEventListener(n host.Node, kind host.EventKind, l host.Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listeners == nil {
		h.listeners = make(map[host.NodeID]map[host.EventKind]host.Listener)
	}
	if h.listeners[n.ID()] == nil {
		h.listeners[n.ID()] = make(map[host.EventKind]host.Listener)
	}
	h.listeners[n.ID()][kind] = l
}

func (h *fakeHost) Emit(n host.Node, name string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, emitted{node: n.ID(), name: name, payload: payload})
}

// named returns emitted events with given name and clears the log.
func (h *fakeHost) named(name string) []emitted {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []emitted
	for _, e := range h.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

func (h *fakeHost) fire(t *testing.T, n host.Node, ev host.Event) {
	t.Helper()
	h.mu.Lock()
	l := h.listeners[n.ID()][ev.Kind]
	h.mu.Unlock()
	if l == nil {
		t.Fatalf("node %s does not listen for %s", n.ID(), ev.Kind)
	}
	l(ev)
}

// place lays node out and attaches it.
func (h *fakeHost) place(t *testing.T, n host.Node, x, y, w, height float64) {
	t.Helper()
	h.fire(t, n, host.Event{Kind: host.EventKindLayout, Layout: host.LayoutEvent{Left: x, Top: y, Width: w, Height: height}})
	h.fire(t, n, host.Event{Kind: host.EventKindAttachedToWindow})
}

type call struct {
	node host.NodeID
	data any
}

type calls struct {
	mu      sync.Mutex
	visible []call
	hidden  []call
}

func (c *calls) onVisible(n host.Node, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = append(c.visible, call{n.ID(), data})
}

func (c *calls) onInvisible(n host.Node, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden = append(c.hidden, call{n.ID(), data})
}

func (c *calls) take() (visible, hidden []call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	visible, hidden = c.visible, c.hidden
	c.visible, c.hidden = nil, nil
	return visible, hidden
}

// idleNever keeps collector from running behind test back.
type idleNever struct{}

func (idleNever) RequestIdle(time.Duration, func()) {}
func (idleNever) AfterFunc(time.Duration, func())   {}

type fixture struct {
	host  *fakeHost
	calls *calls
	p     *Plugin
	root  *node
}

func newFixture(t *testing.T, tune func(*config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{
		Version: 1,
		Engine:  config.DefaultEngineConfig(),
		Plugin:  config.DefaultPluginConfig(),
	}
	if tune != nil {
		tune(cfg)
	}
	f := &fixture{host: &fakeHost{}, calls: &calls{}}
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	f.p = New(cfg, f.host, log,
		WithVisibleNotify(f.calls.onVisible),
		WithInvisibleNotify(f.calls.onInvisible),
		WithEngineOptions(engine.WithScheduler(idleNever{})),
	)

	f.host.next++
	f.root = &node{id: f.host.next, tag: "div", root: true}
	f.p.Record(f.root, nil)
	return f
}

func (f *fixture) add(parent *node, tag string) *node {
	f.host.next++
	n := &node{id: f.host.next, tag: tag, parent: parent}
	parent.kids = append(parent.kids, n)
	f.p.Record(n, nil)
	return n
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	f.p.SetPageShow(true)
	if err := f.p.Start(geom.Size{Width: 400, Height: 800}); err != nil {
		t.Fatalf("Start: %v", err)
	}
}
