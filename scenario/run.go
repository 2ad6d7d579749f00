package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"xpo/config"
	"xpo/engine"
	"xpo/host"
	"xpo/plugin"
)

// ratioTolerance is used when comparing ratios in expectations.
const ratioTolerance = 1e-6

// Notification is a delivered visible or invisible notification of bound node.
type Notification struct {
	Seq     int     `yaml:"seq" ion:"seq"`
	Visible bool    `yaml:"visible" ion:"visible"`
	Node    string  `yaml:"node" ion:"node"`
	Data    string  `yaml:"data,omitempty" ion:"data,omitempty"`
	Ratio   float64 `yaml:"ratio" ion:"ratio"`
}

// Failure is an expectation which was not met.
type Failure struct {
	Step    string `yaml:"step" ion:"step"`
	Message string `yaml:"message" ion:"message"`
}

func (f Failure) String() string {
	return f.Step + ": " + f.Message
}

// Result is outcome of a single scenario run.
type Result struct {
	Name          string         `yaml:"name" ion:"name"`
	Source        string         `yaml:"source" ion:"source"`
	Session       string         `yaml:"session,omitempty" ion:"session,omitempty"`
	Steps         int            `yaml:"steps" ion:"steps"`
	Notifications []Notification `yaml:"notifications" ion:"notifications"`
	Events        []Emitted      `yaml:"events,omitempty" ion:"events,omitempty"`
	Failures      []Failure      `yaml:"failures,omitempty" ion:"failures,omitempty"`
	Dumps         []string       `yaml:"dumps,omitempty" ion:"dumps,omitempty"`
	Registry      string         `yaml:"registry,omitempty" ion:"registry,omitempty"`
}

func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// Err returns ErrFailed wrapped with failure details when expectations were
// not met.
func (r *Result) Err() error {
	if r.Passed() {
		return nil
	}
	msgs := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		msgs = append(msgs, f.String())
	}
	return fmt.Errorf("%s: %w: %s", r.Name, ErrFailed, strings.Join(msgs, "; "))
}

type runner struct {
	sc  *Scenario
	sim *Sim
	p   *plugin.Plugin
	log *zap.Logger
	res *Result

	mu   sync.Mutex
	seq  int
	mark int
}

// Run plays scenario script against fresh plugin instance driven by
// simulated host. Unmet expectations are reported in result, error is
// returned only when scenario could not be played. Script modifies scenario
// tree, scenario has to be loaded again to be replayed.
func Run(ctx context.Context, sc *Scenario, cfg *config.Config, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &runner{
		sc:  sc,
		sim: NewSim(),
		log: log.Named("scenario").With(zap.String("scenario", sc.Name)),
		res: &Result{Name: sc.Name, Source: sc.Source},
	}
	r.sim.detail = describe

	c := sc.configure(cfg)
	r.p = plugin.New(c, r.sim, log,
		plugin.WithVisibleNotify(r.notify(true)),
		plugin.WithInvisibleNotify(r.notify(false)),
		plugin.WithEngineOptions(
			engine.WithRectQuerier(r.sim),
			engine.WithScheduler(r.sim),
			engine.WithClock(r.sim.Now),
		),
	)
	r.p.SetPageShow(sc.PageShow)

	for _, n := range sc.Root.preorder() {
		r.record(n)
	}

	for _, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scenario %s interrupted at step %s: %w", sc.Name, st, err)
		}
		if err := r.exec(ctx, st); err != nil {
			return nil, fmt.Errorf("scenario %s, step %s: %w", sc.Name, st, err)
		}
		r.res.Steps++
	}

	r.res.Events = r.sim.Emitted()
	if c.Replay.DumpRegistry {
		r.res.Registry = r.p.Engine().Dump()
	}
	r.log.Debug("Scenario played", zap.Int("steps", r.res.Steps), zap.Int("notifications", len(r.res.Notifications)), zap.Int("failures", len(r.res.Failures)))
	return r.res, nil
}

// configure applies scenario overrides to a copy of configuration.
func (sc *Scenario) configure(cfg *config.Config) *config.Config {
	var c config.Config
	if cfg != nil {
		c = *cfg
	} else {
		c.Engine, c.Plugin = config.DefaultEngineConfig(), config.DefaultPluginConfig()
	}
	c.Engine.CustomScrollTags = append(slices.Clone(c.Engine.CustomScrollTags), sc.CustomScroll...)
	if len(sc.RootID) > 0 {
		c.Engine.RootID = sc.RootID
	}
	if sc.CheckRatio != nil {
		c.Engine.CheckRatio = *sc.CheckRatio
	}
	if sc.PageDebounce != nil {
		c.Engine.PageDebounce = *sc.PageDebounce
	}
	if sc.Threshold != nil {
		c.Plugin.ExposureRatioThreshold = *sc.Threshold
	}
	if sc.Renotify != nil {
		c.Plugin.ReNotifyWhenReVisible = *sc.Renotify
	}
	return &c
}

func (r *runner) record(n *Node) {
	r.p.Record(n, n.style)
	if n.bind != nil {
		r.p.Bind(n, n.bind.arg(), n.bind.data)
	}
}

func (r *runner) notify(visible bool) plugin.NotifyFunc {
	return func(hn host.Node, data any) {
		var ratio float64
		if x, ok := r.p.Engine().Query(hn); ok {
			ratio = x.Ratio()
		}
		key := hn.ID().String()
		if n, ok := hn.(*Node); ok {
			key = n.key
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		r.seq++
		r.res.Notifications = append(r.res.Notifications, Notification{
			Seq:     r.seq,
			Visible: visible,
			Node:    key,
			Data:    fmt.Sprint(data),
			Ratio:   ratio,
		})
	}
}

func (r *runner) failf(st Step, format string, args ...any) {
	f := Failure{Step: st.String(), Message: fmt.Sprintf(format, args...)}
	r.log.Warn("Expectation failed", zap.String("step", f.Step), zap.String("reason", f.Message))
	r.res.Failures = append(r.res.Failures, f)
}

func (r *runner) node(key string) (*Node, error) {
	n, ok := r.sc.nodes[key]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", key)
	}
	return n, nil
}

func (r *runner) exec(ctx context.Context, st Step) error {
	var n *Node
	if len(st.Node) > 0 && st.Op != OpAppend {
		var err error
		if n, err = r.node(st.Node); err != nil {
			return err
		}
	}

	switch st.Op {
	case OpLayout:
		r.sim.Fire(n, host.Event{Kind: host.EventKindLayout, Layout: host.LayoutEvent{Left: st.X, Top: st.Y, Width: st.W, Height: st.H}})
	case OpAttach:
		r.sim.Fire(n, host.Event{Kind: host.EventKindAttachedToWindow})
	case OpDetach:
		r.sim.Fire(n, host.Event{Kind: host.EventKindDetachedFromWindow})
	case OpScroll:
		r.sim.Fire(n, host.Event{Kind: host.EventKindScroll, Scroll: host.ScrollEvent{OffsetX: st.X, OffsetY: st.Y}})
	case OpPage:
		r.sim.Fire(n, host.Event{Kind: host.EventKindPageSelected, Page: host.PageEvent{CurrentSlide: st.Slide}})
	case OpStart:
		var err error
		if st.Flag {
			err = r.p.StartFromHost(ctx)
		} else {
			err = r.p.Start(r.sc.Window)
		}
		if err != nil {
			r.failf(st, "engine did not start: %v", err)
		}
	case OpPageShow:
		r.p.SetPageShow(st.Flag)
	case OpBind:
		r.p.Bind(n, enableArg(st.Enable), deref(st.Data))
	case OpUpdate:
		r.p.Update(n, enableArg(st.Enable), deref(st.Data))
	case OpUnbind:
		r.p.Unbind(n)
	case OpInvalidate:
		r.p.SetInvalid(n, st.Deep)
	case OpTrigger:
		r.p.Trigger(n, st.Deep)
	case OpForce:
		if n == nil {
			r.p.ForceExposureForAll(st.Check)
		} else {
			r.p.ForceExposureForElement(n, st.Check)
		}
	case OpRemove:
		if n.root {
			return errors.New("root node cannot be removed")
		}
		n.detach()
	case OpAppend:
		return r.append(st)
	case OpCustomScroll:
		r.p.RegisterCustomScrollComponents(st.Tags...)
	case OpIdle:
		r.sim.Idle()
	case OpAdvance:
		r.sim.Advance(st.Duration)
	case OpCollect:
		r.p.Engine().Collect()
	case OpExpect:
		r.expect(st, n)
	case OpExpectNotify:
		r.expectNotify(st)
	case OpExpectEvent:
		r.expectEvent(st, n)
	case OpDump:
		r.res.Dumps = append(r.res.Dumps, r.p.Engine().Dump())
	default:
		return fmt.Errorf("unsupported instruction %s", st.Op)
	}
	return nil
}

func (r *runner) append(st Step) error {
	parent, err := r.node(st.Parent)
	if err != nil {
		return err
	}
	el := etree.NewElement(st.Tag)
	for _, kv := range [][2]string{{"key", st.Node}, {"id", st.ID}, {"class", st.Class}, {"style", st.Style}} {
		if len(kv[1]) > 0 {
			el.CreateAttr(kv[0], kv[1])
		}
	}
	n, err := r.sc.newNode(el.Tag, attrs{el: el}, parent)
	if err != nil {
		return err
	}
	n.rect = st.Rect
	r.record(n)
	return nil
}

func (r *runner) expect(st Step, n *Node) {
	x, tracked := r.p.Engine().Query(n)
	if len(st.Status) > 0 {
		got := "untracked"
		if tracked {
			got = x.Status.String()
		}
		if got != st.Status {
			r.failf(st, "status is %s, expected %s", got, st.Status)
		}
	}
	if st.Ratio != nil {
		switch {
		case !tracked:
			r.failf(st, "node is not tracked, expected ratio %g", *st.Ratio)
		case math.Abs(x.Ratio()-*st.Ratio) > ratioTolerance:
			r.failf(st, "ratio is %g, expected %g", x.Ratio(), *st.Ratio)
		}
	}
	if st.Exposed != nil {
		b, ok := r.p.Binding(n)
		if !ok {
			r.failf(st, "node is not bound")
		} else if b.Exposed != *st.Exposed {
			r.failf(st, "exposed is %t, expected %t", b.Exposed, *st.Exposed)
		}
	}
	if st.Query != nil {
		if got := r.p.QueryElementVisible(n); got != *st.Query {
			r.failf(st, "visibility query returned %t, expected %t", got, *st.Query)
		}
	}
	for _, k := range st.Listens {
		if r.sim.Listening(n, k) == 0 {
			r.failf(st, "node does not listen for %s", k)
		}
	}
}

// expectNotify checks notifications delivered since previous check.
func (r *runner) expectNotify(st Step) {
	r.mu.Lock()
	fresh := r.res.Notifications[r.mark:]
	r.mark = len(r.res.Notifications)
	r.mu.Unlock()

	var visible, hidden []string
	for _, n := range fresh {
		if n.Visible {
			visible = append(visible, n.Node)
		} else {
			hidden = append(hidden, n.Node)
		}
	}
	if !slices.Equal(visible, st.Visible) {
		r.failf(st, "visible notifications [%s], expected [%s]", strings.Join(visible, ","), strings.Join(st.Visible, ","))
	}
	if !slices.Equal(hidden, st.Hidden) {
		r.failf(st, "invisible notifications [%s], expected [%s]", strings.Join(hidden, ","), strings.Join(st.Hidden, ","))
	}
}

func (r *runner) expectEvent(st Step, n *Node) {
	count := 0
	for _, e := range r.sim.Emitted() {
		if e.Node == n.key && e.Name == st.Event {
			count++
		}
	}
	if count != st.Count {
		r.failf(st, "%d %s events dispatched, expected %d", count, st.Event, st.Count)
	}
}

func enableArg(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// describe renders payload of events emitted by plugin.
func describe(payload any) string {
	switch v := payload.(type) {
	case plugin.VisibilityEvent:
		return fmt.Sprintf("clipped=%g window=%g", v.RatioInClipped, v.RatioInWindow)
	case plugin.SlideEvent:
		slide := ""
		if n, ok := v.Slide.(*Node); ok {
			slide = n.key
		}
		return fmt.Sprintf("slide=%s visible=%t index=%d", slide, v.Visible, v.Index)
	}
	return ""
}
