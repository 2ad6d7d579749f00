package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"xpo/config"
	"xpo/geom"
	"xpo/host"
)

type fakeNode struct {
	id      host.NodeID
	tag     string
	eid     string
	root    bool
	virtual bool
	parent  *fakeNode
	kids    []*fakeNode
}

func (n *fakeNode) ID() host.NodeID   { return n.id }
func (n *fakeNode) Tag() string       { return n.tag }
func (n *fakeNode) ElementID() string { return n.eid }
func (n *fakeNode) IsRoot() bool      { return n.root }
func (n *fakeNode) Native() bool      { return !n.virtual }

func (n *fakeNode) Parent() host.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *fakeNode) Children() []host.Node {
	out := make([]host.Node, 0, len(n.kids))
	for _, k := range n.kids {
		out = append(out, k)
	}
	return out
}

// fakeTree is minimal host: node factory and event subscriber.
type fakeTree struct {
	mu        sync.Mutex
	next      host.NodeID
	listeners map[host.NodeID]map[host.EventKind]host.Listener
	subs      int
}

func newFakeTree() *fakeTree {
	return &fakeTree{listeners: make(map[host.NodeID]map[host.EventKind]host.Listener)}
}

func (t *fakeTree) AddEventListener(n host.Node, kind host.EventKind, l host.Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.listeners[n.ID()]
	if !ok {
		m = make(map[host.EventKind]host.Listener)
		t.listeners[n.ID()] = m
	}
	m[kind] = l
	t.subs++
}

func (t *fakeTree) listening(n host.Node) []host.EventKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	var kinds []host.EventKind
	for k := range t.listeners[n.ID()] {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func (t *fakeTree) root() *fakeNode {
	t.next++
	return &fakeNode{id: t.next, tag: "div", root: true}
}

func (t *fakeTree) add(parent *fakeNode, tag string) *fakeNode {
	t.next++
	n := &fakeNode{id: t.next, tag: tag, parent: parent}
	parent.kids = append(parent.kids, n)
	return n
}

func detach(n *fakeNode) {
	if p := n.parent; p != nil {
		p.kids = slices.DeleteFunc(p.kids, func(k *fakeNode) bool { return k == n })
	}
	n.parent = nil
}

func (t *fakeTree) fire(tb testing.TB, n host.Node, ev host.Event) {
	tb.Helper()
	t.mu.Lock()
	l := t.listeners[n.ID()][ev.Kind]
	t.mu.Unlock()
	if l == nil {
		tb.Fatalf("node %s does not listen for %s", n.ID(), ev.Kind)
	}
	l(ev)
}

func (t *fakeTree) layout(tb testing.TB, n host.Node, x, y, w, h float64) {
	tb.Helper()
	t.fire(tb, n, host.Event{Kind: host.EventKindLayout, Layout: host.LayoutEvent{Left: x, Top: y, Width: w, Height: h}})
}

func (t *fakeTree) attach(tb testing.TB, n host.Node) {
	tb.Helper()
	t.fire(tb, n, host.Event{Kind: host.EventKindAttachedToWindow})
}

func (t *fakeTree) scroll(tb testing.TB, n host.Node, x, y float64) {
	tb.Helper()
	t.fire(tb, n, host.Event{Kind: host.EventKindScroll, Scroll: host.ScrollEvent{OffsetX: x, OffsetY: y}})
}

func (t *fakeTree) page(tb testing.TB, n host.Node, slide int) {
	tb.Helper()
	t.fire(tb, n, host.Event{Kind: host.EventKindPageSelected, Page: host.PageEvent{CurrentSlide: slide}})
}

// recorder collects notifications as "visible 3" strings.
type recorder struct {
	mu    sync.Mutex
	seen  []string
	last  map[host.NodeID]Exposure
	panic host.NodeID
}

func (r *recorder) add(visible bool, x Exposure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		r.last = make(map[host.NodeID]Exposure)
	}
	r.last[x.ID] = x
	s := "invisible"
	if visible {
		s = "visible"
	}
	r.seen = append(r.seen, fmt.Sprintf("%s %s", s, x.ID))
	if r.panic != 0 && r.panic == x.ID {
		panic("observer failure")
	}
}

func (r *recorder) Visible(x Exposure)   { r.add(true, x) }
func (r *recorder) Invisible(x Exposure) { r.add(false, x) }

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.seen
	r.seen = nil
	return out
}

// manualScheduler runs deferred work only when test asks for it.
type manualScheduler struct {
	idle   []func()
	timers []func()
}

func (s *manualScheduler) RequestIdle(_ time.Duration, fn func()) { s.idle = append(s.idle, fn) }
func (s *manualScheduler) AfterFunc(_ time.Duration, fn func())   { s.timers = append(s.timers, fn) }

func (s *manualScheduler) runIdle() {
	fns := s.idle
	s.idle = nil
	for _, fn := range fns {
		fn()
	}
}

func (s *manualScheduler) runTimers() {
	fns := s.timers
	s.timers = nil
	for _, fn := range fns {
		fn()
	}
}

type fakeQuerier struct {
	mu      sync.Mutex
	calls   int
	rect    geom.Rect
	err     error
	started chan struct{}
	release chan struct{}
}

func (q *fakeQuerier) BoundingClientRect(ctx context.Context, n host.Node) (geom.Rect, error) {
	q.mu.Lock()
	q.calls++
	q.mu.Unlock()
	if q.started != nil {
		q.started <- struct{}{}
	}
	if q.release != nil {
		<-q.release
	}
	return q.rect, q.err
}

func (q *fakeQuerier) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

type fixture struct {
	tree  *fakeTree
	eng   *Engine
	obs   *recorder
	sched *manualScheduler
	root  *fakeNode
}

func testConfig() config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.Debug = true
	return cfg
}

func newFixture(t *testing.T, cfg config.EngineConfig, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		tree:  newFakeTree(),
		obs:   &recorder{},
		sched: &manualScheduler{},
	}
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	opts = append([]Option{WithObserver(f.obs), WithScheduler(f.sched)}, opts...)
	f.eng = New(cfg, f.tree, log, opts...)
	f.root = f.tree.root()
	f.eng.Record(f.root, nil)
	return f
}

// add creates and records node.
func (f *fixture) add(parent *fakeNode, tag string, style host.Style) *fakeNode {
	n := f.tree.add(parent, tag)
	f.eng.Record(n, style)
	return n
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.eng.Start(geom.Size{Width: 400, Height: 800}); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func (f *fixture) element(n host.Node) *element {
	f.eng.mu.Lock()
	defer f.eng.mu.Unlock()
	return f.eng.reg.get(n.ID())
}

func expectSeen(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("notifications = %q, want %q", got, want)
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
