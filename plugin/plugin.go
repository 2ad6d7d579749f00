// Package plugin binds caller data to tracked nodes and turns engine
// transitions into user notifications and host events.
package plugin

import (
	"context"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"xpo/config"
	"xpo/engine"
	"xpo/geom"
	"xpo/host"
)

// Events emitted to host nodes.
const (
	EventRenderToNative  = "renderToNative"
	EventVisible         = "hippyVisible"
	EventInvisible       = "hippyInvisible"
	EventSwiperVisible   = "swiperVisibleChanged"
	EventSwiperInvisible = "swiperInvisibleChanged"
)

// VisibilityEvent is payload of EventVisible and EventInvisible.
type VisibilityEvent struct {
	Node           host.Node
	RatioInClipped float64
	RatioInWindow  float64
}

// SlideEvent is payload of swiper events, emitted on the swiper node.
type SlideEvent struct {
	Slide   host.Node
	Visible bool
	Index   int
}

// Host is everything plugin needs from the embedding runtime.
type Host interface {
	host.Subscriber
	host.Emitter
}

// NotifyFunc receives bound node and its data.
type NotifyFunc func(n host.Node, data any)

type Option func(*Plugin)

func WithVisibleNotify(fn NotifyFunc) Option {
	return func(p *Plugin) {
		p.visible = fn
	}
}

func WithInvisibleNotify(fn NotifyFunc) Option {
	return func(p *Plugin) {
		p.invisible = fn
	}
}

// WithEngineOptions passes options to underlying engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(p *Plugin) {
		p.engOpts = append(p.engOpts, opts...)
	}
}

// Binding is state of caller data attached to a node.
type Binding struct {
	Data    any
	Enable  bool
	Exposed bool
}

type binding struct {
	node host.Node
	Binding
}

type delivery struct {
	fn   NotifyFunc
	node host.Node
	data any
}

// Plugin owns one engine instance and bindings of its nodes.
type Plugin struct {
	cfg     config.PluginConfig
	comment string
	log     *zap.Logger
	emitter host.Emitter
	eng     *engine.Engine
	engOpts []engine.Option

	visible   NotifyFunc
	invisible NotifyFunc

	mu       sync.Mutex
	pageShow bool
	bindings map[host.NodeID]*binding
}

// New creates plugin and its engine. Engine notifications are routed through
// the plugin.
func New(cfg *config.Config, h Host, log *zap.Logger, opts ...Option) *Plugin {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Plugin{
		cfg:      cfg.Plugin,
		comment:  cfg.Engine.Tags.Comment,
		log:      log.Named("plugin"),
		bindings: make(map[host.NodeID]*binding),
	}
	var sub host.Subscriber
	if h != nil {
		sub, p.emitter = h, h
	}
	for _, opt := range opts {
		opt(p)
	}
	p.eng = engine.New(cfg.Engine, sub, log, append(p.engOpts, engine.WithObserver(p))...)
	return p
}

// Engine gives access to underlying engine.
func (p *Plugin) Engine() *engine.Engine {
	return p.eng
}

// Record is the hook host calls before node is rendered to native.
func (p *Plugin) Record(n host.Node, style host.Style) {
	if n == nil {
		return
	}
	p.emit(n, EventRenderToNative, n)
	p.eng.Record(n, style)
}

func (p *Plugin) Start(size geom.Size) error {
	return p.eng.Start(size)
}

func (p *Plugin) StartFromHost(ctx context.Context) error {
	return p.eng.StartFromHost(ctx)
}

func (p *Plugin) IsReady() bool {
	return p.eng.IsReady()
}

// SetPageShow tells whether page hosting the tree is on screen. Nothing is
// reported visible while page is hidden.
func (p *Plugin) SetPageShow(show bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageShow = show
}

func (p *Plugin) PageShow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageShow
}

// RegisterCustomScrollComponents marks tags of custom components which behave
// as scroll views.
func (p *Plugin) RegisterCustomScrollComponents(tags ...string) {
	p.eng.RegisterCustomScrollTags(tags...)
}

// QueryElementVisible is non-strict visibility query: ratio threshold is not
// considered.
func (p *Plugin) QueryElementVisible(n host.Node) bool {
	if !p.PageShow() || !p.eng.IsReady() {
		return false
	}
	return p.eng.IsVisible(n)
}

// Bind attaches data to node. Existing binding is left intact.
func (p *Plugin) Bind(n host.Node, arg, data any) {
	if n == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.bindings[n.ID()]; ok {
		return
	}
	p.bindings[n.ID()] = &binding{node: n, Binding: Binding{Data: data, Enable: EnableFromArg(arg)}}
	p.log.Debug("Node bound", zap.Stringer("node", n.ID()), zap.Int("bindings", len(p.bindings)))
}

// Update replaces binding data. Binding which becomes enabled is checked
// regardless of earlier reports, otherwise the usual check is made.
func (p *Plugin) Update(n host.Node, arg, data any) {
	if n == nil {
		return
	}
	p.locked(func() *delivery {
		b, ok := p.bindings[n.ID()]
		if !ok {
			return nil
		}
		enable := EnableFromArg(arg)
		force := enable && !b.Enable
		b.Enable, b.Data = enable, data
		if force {
			return p.force(b, true)
		}
		return p.tryVisible(b)
	})
}

func (p *Plugin) Unbind(n host.Node) {
	if n == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.bindings, n.ID())
}

// Binding returns copy of node binding.
func (p *Plugin) Binding(n host.Node) (Binding, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.bindings[n.ID()]
	if !ok {
		return Binding{}, false
	}
	return b.Binding, true
}

// SetInvalid allows node, and optionally its bound descendants, to be
// reported visible again.
func (p *Plugin) SetInvalid(n host.Node, deep bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.traverse(n, deep, func(b *binding) {
		b.Exposed = false
	})
}

// Trigger attempts visible notification of node, and optionally of its
// bound descendants.
func (p *Plugin) Trigger(n host.Node, deep bool) {
	var ds []*delivery
	p.mu.Lock()
	p.traverse(n, deep, func(b *binding) {
		if _, ok := p.eng.Query(b.node); !ok {
			return
		}
		ds = append(ds, p.tryVisible(b))
	})
	p.mu.Unlock()
	p.deliver(ds...)
}

// ForceExposureForAll reports every bound visible node ignoring earlier
// reports. Disabled bindings are skipped when checkEnable is set.
func (p *Plugin) ForceExposureForAll(checkEnable bool) {
	var ds []*delivery
	p.mu.Lock()
	if p.pageShow && p.eng.IsReady() {
		for _, id := range slices.Sorted(maps.Keys(p.bindings)) {
			ds = append(ds, p.force(p.bindings[id], checkEnable))
		}
	}
	p.mu.Unlock()
	p.deliver(ds...)
}

// ForceExposureForElement is ForceExposureForAll for a single node.
func (p *Plugin) ForceExposureForElement(n host.Node, checkEnable bool) {
	if n == nil {
		return
	}
	p.locked(func() *delivery {
		if !p.pageShow || !p.eng.IsReady() {
			return nil
		}
		if b, ok := p.bindings[n.ID()]; ok {
			return p.force(b, checkEnable)
		}
		return nil
	})
}

// traverse calls fn for bound node and, when deep, for bound nodes below it.
// Walk stops at nodes without binding. Called with lock held.
func (p *Plugin) traverse(n host.Node, deep bool, fn func(*binding)) {
	if n == nil {
		return
	}
	stack := []host.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b, ok := p.bindings[cur.ID()]
		if !ok {
			continue
		}
		fn(b)
		if !deep {
			continue
		}
		kids := cur.Children()
		for i := len(kids) - 1; i >= 0; i-- {
			if c := kids[i]; c != nil && c.Native() && c.Tag() != p.comment {
				stack = append(stack, c)
			}
		}
	}
}

// locked runs fn under lock and delivers its result after lock is released,
// notification callbacks may call plugin back.
func (p *Plugin) locked(fn func() *delivery) {
	p.mu.Lock()
	d := fn()
	p.mu.Unlock()
	p.deliver(d)
}

func (p *Plugin) deliver(ds ...*delivery) {
	for _, d := range ds {
		if d == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("Exposure notification failed", zap.Stringer("node", d.node.ID()), zap.Any("panic", r))
				}
			}()
			d.fn(d.node, d.data)
		}()
	}
}

func (p *Plugin) emit(n host.Node, name string, payload any) {
	if p.emitter == nil || n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Event listener failed", zap.String("event", name), zap.Stringer("node", n.ID()), zap.Any("panic", r))
		}
	}()
	p.emitter.Emit(n, name, payload)
}
