package scenario

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"xpo/geom"
	"xpo/host"
)

// Emitted is a custom event dispatched to a simulated node.
type Emitted struct {
	Seq    int    `yaml:"seq" ion:"seq"`
	Node   string `yaml:"node" ion:"node"`
	Name   string `yaml:"name" ion:"name"`
	Detail string `yaml:"detail,omitempty" ion:"detail,omitempty"`
}

type deferred struct {
	at  time.Time
	seq int
	fn  func()
}

// Sim is simulated host: it keeps listeners, dispatches events, answers
// bounding rectangle queries and runs deferred work on a virtual clock.
// Callbacks are always invoked with simulator lock released.
type Sim struct {
	mu        sync.Mutex
	now       time.Time
	seq       int
	listeners map[host.NodeID]map[host.EventKind][]host.Listener
	emitted   []Emitted
	detail    func(payload any) string
	idle      []deferred
	timers    []deferred
}

var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func NewSim() *Sim {
	return &Sim{
		now:       epoch,
		listeners: make(map[host.NodeID]map[host.EventKind][]host.Listener),
	}
}

func (s *Sim) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Sim) AddEventListener(n host.Node, kind host.EventKind, l host.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.listeners[n.ID()]
	if !ok {
		m = make(map[host.EventKind][]host.Listener)
		s.listeners[n.ID()] = m
	}
	m[kind] = append(m[kind], l)
}

// Listening returns number of listeners node has for event kind.
func (s *Sim) Listening(n host.Node, kind host.EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners[n.ID()][kind])
}

// Fire delivers event to node listeners.
func (s *Sim) Fire(n *Node, ev host.Event) {
	switch ev.Kind {
	case host.EventKindLayout:
		r := geom.Rect{X: ev.Layout.Left, Y: ev.Layout.Top, Width: ev.Layout.Width, Height: ev.Layout.Height}
		s.mu.Lock()
		n.layout = &r
		s.mu.Unlock()
	case host.EventKindScroll:
		s.mu.Lock()
		n.offset = geom.Point{X: ev.Scroll.OffsetX, Y: ev.Scroll.OffsetY}
		s.mu.Unlock()
	}

	s.mu.Lock()
	ls := slices.Clone(s.listeners[n.ID()][ev.Kind])
	s.mu.Unlock()

	for _, l := range ls {
		l(ev)
	}
}

func (s *Sim) Emit(n host.Node, name string, payload any) {
	key := n.ID().String()
	if sn, ok := n.(*Node); ok {
		key = sn.key
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := Emitted{Seq: len(s.emitted) + 1, Node: key, Name: name}
	if s.detail != nil {
		e.Detail = s.detail(payload)
	}
	s.emitted = append(s.emitted, e)
}

// Emitted returns copy of events dispatched so far.
func (s *Sim) Emitted() []Emitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.emitted)
}

// BoundingClientRect returns explicit node rectangle when it has one,
// otherwise rectangle is derived from host layouts and scroll offsets of
// ancestors.
func (s *Sim) BoundingClientRect(ctx context.Context, hn host.Node) (geom.Rect, error) {
	if err := ctx.Err(); err != nil {
		return geom.Rect{}, err
	}
	n, ok := hn.(*Node)
	if !ok {
		return geom.Rect{}, fmt.Errorf("foreign node %s", hn.ID())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n.rect != nil {
		return *n.rect, nil
	}
	if n.layout == nil {
		return geom.Rect{}, fmt.Errorf("node %s: %w", n.key, ErrNoGeometry)
	}
	r := *n.layout
	for p := n.parent; p != nil; p = p.parent {
		if p.layout == nil && p.rect == nil {
			return geom.Rect{}, fmt.Errorf("ancestor %s of node %s: %w", p.key, n.key, ErrNoGeometry)
		}
		r = r.Offset(geom.Point{X: -p.offset.X, Y: -p.offset.Y})
		if p.rect != nil {
			r = r.Offset(p.rect.Origin())
			break
		}
		r = r.Offset(p.layout.Origin())
	}
	return r, nil
}

func (s *Sim) RequestIdle(timeout time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.idle = append(s.idle, deferred{at: s.now.Add(timeout), seq: s.seq, fn: fn})
}

func (s *Sim) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.timers = append(s.timers, deferred{at: s.now.Add(d), seq: s.seq, fn: fn})
}

// Idle lets host become idle: pending idle requests run immediately.
func (s *Sim) Idle() int {
	s.mu.Lock()
	pending := s.idle
	s.idle = nil
	s.mu.Unlock()

	for _, d := range pending {
		d.fn()
	}
	return len(pending)
}

// Advance moves virtual clock forward running timers and idle requests
// whose deadline passes, in deadline order.
func (s *Sim) Advance(d time.Duration) int {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	ran := 0
	for {
		s.mu.Lock()
		next, ok := s.popDue(target)
		if !ok {
			s.now = target
			s.mu.Unlock()
			return ran
		}
		if next.at.After(s.now) {
			s.now = next.at
		}
		s.mu.Unlock()

		next.fn()
		ran++
	}
}

// popDue removes earliest deferred entry due before target. Called with lock
// held.
func (s *Sim) popDue(target time.Time) (deferred, bool) {
	var (
		bq *[]deferred
		bi = -1
	)
	for _, q := range []*[]deferred{&s.timers, &s.idle} {
		for i, d := range *q {
			if d.at.After(target) {
				continue
			}
			if bi < 0 || earlier(d, (*bq)[bi]) {
				bq, bi = q, i
			}
		}
	}
	if bi < 0 {
		return deferred{}, false
	}
	d := (*bq)[bi]
	*bq = slices.Delete(*bq, bi, bi+1)
	return d, true
}

func earlier(a, b deferred) bool {
	return a.at.Before(b.at) || a.at.Equal(b.at) && a.seq < b.seq
}
