// Package engine keeps shadow registry of host UI nodes and computes their
// exposure from layout, scroll and paging events.
package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"xpo/config"
	"xpo/geom"
	"xpo/host"
)

// Observer receives edge-triggered notifications. Methods are called without
// engine lock held, so they may query engine.
type Observer interface {
	Visible(Exposure)
	Invisible(Exposure)
}

type Option func(*Engine)

// WithRectQuerier enables asynchronous bounding rectangle fallback.
func WithRectQuerier(q host.RectQuerier) Option {
	return func(e *Engine) {
		if q != nil {
			e.fetch = newRectFetcher(q)
		}
	}
}

// WithScheduler replaces runtime timers used by collector.
func WithScheduler(s host.Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.sched = s
		}
	}
}

// WithClock replaces time source used for paging debounce.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.obs = o
	}
}

type notice struct {
	visible bool
	x       Exposure
}

type pageStamp struct {
	id  host.NodeID
	at  time.Time
	set bool
}

// Engine is a single exposure tracking context. All exported methods are safe
// for concurrent use, host events are processed one at a time.
type Engine struct {
	cfg   config.EngineConfig
	log   *zap.Logger
	sub   host.Subscriber
	sched host.Scheduler
	now   func() time.Time
	obs   Observer
	fetch *rectFetcher

	mu       sync.Mutex
	reg      registry
	ready    bool
	rootSize *geom.Size
	custom   []string
	backlog  []backlogEntry
	pages    map[host.NodeID]host.PageEvent
	lastPage pageStamp
	gc       collector

	// filled while lock is held, drained after it is released
	outbox []notice
	after  []func()
}

// New creates engine. Subscriber is used to listen for events of recorded
// nodes, it may be nil when caller feeds events directly.
func New(cfg config.EngineConfig, sub host.Subscriber, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		cfg:    cfg,
		log:    log.Named("engine"),
		sub:    sub,
		sched:  host.TimerScheduler{},
		now:    time.Now,
		reg:    newRegistry(),
		custom: slices.Clone(cfg.CustomScrollTags),
		pages:  make(map[host.NodeID]host.PageEvent),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// locked runs fn under engine lock and afterwards delivers queued
// notifications and deferred host calls.
func (e *Engine) locked(fn func() error) error {
	e.mu.Lock()
	err := fn()
	out, after := e.outbox, e.after
	e.outbox, e.after = nil, nil
	e.mu.Unlock()

	for _, f := range after {
		f()
	}
	e.deliver(out)
	return err
}

func (e *Engine) deliver(out []notice) {
	if e.obs == nil {
		return
	}
	for _, n := range out {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("Exposure observer failed", zap.Stringer("node", n.x.ID), zap.Any("panic", r))
				}
			}()
			if n.visible {
				e.obs.Visible(n.x)
			} else {
				e.obs.Invisible(n.x)
			}
		}()
	}
}

// Record registers node before it is inserted into native hierarchy. It is
// safe to call repeatedly for the same node.
func (e *Engine) Record(n host.Node, style host.Style) {
	_ = e.locked(func() error {
		e.scheduleCollect()

		if n == nil || !n.Native() {
			return nil
		}
		el := e.reg.get(n.ID())
		if el != nil {
			el.node = n
		} else {
			el = newElement(n, classify(n, style, &e.cfg.Tags, e.custom), e.parentElement(n))
			e.reg.add(el)
			e.adopt(el)
			e.trace(phaseElement, "Element recorded", el, zap.Stringer("kind", el.kind), zap.Bool("inList", el.inList), zap.Bool("inScroll", el.inScroll))
		}
		e.subscribe(el)
		return nil
	})
}

// adopt checks whether new record is one of the window anchors.
func (e *Engine) adopt(el *element) {
	anchor := false
	if e.reg.root == nil && el.node.IsRoot() {
		e.reg.root, anchor = el, true
	}
	if len(e.cfg.RootID) > 0 && e.reg.rootContainer == nil && el.node.ElementID() == e.cfg.RootID {
		e.reg.rootContainer, anchor = el, true
	}
	if anchor && e.rootSize != nil {
		sizeAnchor(el, *e.rootSize)
	}
}

func sizeAnchor(el *element, size geom.Size) {
	r := geom.FromSize(size)
	el.rectInParent = &r
	el.rectInWindow = &r
	el.ratioInWindow = 1.0
}

// Start establishes window size, marks engine ready and replays events
// received so far. Subsequent calls do nothing.
func (e *Engine) Start(size geom.Size) error {
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("unable to start with window %gx%g: %w", size.Width, size.Height, ErrRootUnsized)
	}
	return e.locked(func() error {
		if e.ready {
			return nil
		}
		e.rootSize = &size
		if e.reg.root == nil {
			e.log.Warn("Starting before root element is recorded")
		} else {
			sizeAnchor(e.reg.root, size)
		}
		if e.reg.rootContainer != nil {
			sizeAnchor(e.reg.rootContainer, size)
		}
		e.ready = true
		e.log.Debug("Engine is ready", zap.Float64("width", size.Width), zap.Float64("height", size.Height), zap.Int("backlog", len(e.backlog)))

		e.report("backlog", nil, e.drainBacklog())
		return nil
	})
}

// StartFromHost starts engine using root bounding rectangle obtained from the
// host bridge.
func (e *Engine) StartFromHost(ctx context.Context) error {
	e.mu.Lock()
	ready, root := e.ready, e.reg.root
	e.mu.Unlock()

	if ready {
		return nil
	}
	if root == nil {
		return ErrRootMissing
	}
	r, err := e.RectInWindow(ctx, root.node)
	if err != nil {
		return fmt.Errorf("unable to query root size: %w", err)
	}
	return e.Start(r.Size())
}

func (e *Engine) IsReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Query returns current state of the node.
func (e *Engine) Query(n host.Node) (Exposure, bool) {
	if n == nil {
		return Exposure{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	el := e.reg.get(n.ID())
	if el == nil {
		return Exposure{}, false
	}
	return e.snapshot(el), true
}

// IsVisible reports whether node is currently exposed.
func (e *Engine) IsVisible(n host.Node) bool {
	x, ok := e.Query(n)
	return ok && x.Visible()
}

// RegisterCustomScrollTags replaces list of tags treated as scroll views.
// Affects nodes recorded afterwards. Scroll events of such views update
// offsets but do not trigger measurement.
func (e *Engine) RegisterCustomScrollTags(tags ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.custom = slices.Clone(tags)
}

// Len returns number of tracked nodes.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.len()
}

func (e *Engine) isCustomScroll(el *element) bool {
	return slices.Contains(e.custom, el.node.Tag())
}

// valid is the check every queued or resumed operation makes before touching
// the record.
func (e *Engine) valid(el *element) bool {
	return el != nil && !el.removed && e.reg.get(el.id) == el
}

func (e *Engine) parentElement(n host.Node) *element {
	p := n.Parent()
	if p == nil {
		return nil
	}
	return e.reg.get(p.ID())
}

// ancestorOf returns enclosing container record unless it was collected.
func (e *Engine) ancestorOf(el *element) *element {
	if el.ancestor == nil || el.ancestor.removed {
		return nil
	}
	return el.ancestor
}

// ancestorClip returns current clip of enclosing container.
func (e *Engine) ancestorClip(el *element) *geom.Rect {
	if anc := e.ancestorOf(el); anc != nil {
		return anc.clippedRect
	}
	return nil
}

// skipNode filters nodes which are never recorded.
func (e *Engine) skipNode(n host.Node) bool {
	return n == nil || !n.Native() || n.Tag() == e.cfg.Tags.Comment
}

// childElements returns records of tracked children in host order.
func (e *Engine) childElements(el *element) []*element {
	kids := el.node.Children()
	out := make([]*element, 0, len(kids))
	for _, c := range kids {
		if e.skipNode(c) {
			continue
		}
		sub := e.reg.get(c.ID())
		if sub == nil {
			e.trace(phaseMeasure, "Child is not tracked", el, zap.Stringer("child", c.ID()))
			continue
		}
		out = append(out, sub)
	}
	return out
}

// firstChildElement returns content container of scroll view.
func (e *Engine) firstChildElement(el *element) *element {
	for _, c := range el.node.Children() {
		if e.skipNode(c) {
			continue
		}
		return e.reg.get(c.ID())
	}
	return nil
}

// guard isolates failure of a single node.
func (e *Engine) guard(el *element, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node %s (%s): panic: %v", el.id, el.kind, r)
		}
	}()
	if err = fn(); err != nil {
		err = fmt.Errorf("node %s (%s): %w", el.id, el.kind, err)
	}
	return err
}

// stepFunc processes a single record during traversal and tells whether its
// children should be visited.
type stepFunc func(el *element) (descend bool, err error)

// walk visits subtree depth first in host order using explicit stack.
// Records which became invalid while traversal was in progress are skipped.
func (e *Engine) walk(start *element, step stepFunc) error {
	var errs error

	stack := []*element{start}
	for len(stack) > 0 {
		el := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !e.valid(el) {
			continue
		}

		var kids []*element
		err := e.guard(el, func() error {
			descend, err := step(el)
			if descend {
				kids = e.childElements(el)
			}
			return err
		})
		errs = multierr.Append(errs, err)

		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return errs
}

// report logs errors collected while processing an event, nothing ever
// propagates to the host.
func (e *Engine) report(op string, el *element, err error) {
	if err == nil {
		return
	}
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if el != nil {
		fields = append(fields, zap.Stringer("node", el.id))
	}
	if structural(err) {
		e.log.Error("Exposure measurement failed", fields...)
		return
	}
	e.log.Warn("Exposure measurement incomplete", fields...)
}
