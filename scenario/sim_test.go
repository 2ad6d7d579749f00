package scenario

import (
	"errors"
	"strings"
	"testing"
	"time"

	"xpo/geom"
	"xpo/host"
)

func TestSimAdvanceOrder(t *testing.T) {
	s := NewSim()
	var got []string
	add := func(name string) func() {
		return func() { got = append(got, name+"@"+s.Now().Sub(epoch).String()) }
	}

	s.AfterFunc(300*time.Millisecond, add("timer300"))
	s.RequestIdle(100*time.Millisecond, add("idle100"))
	s.AfterFunc(100*time.Millisecond, add("timer100"))
	s.RequestIdle(time.Second, add("idle1s"))

	if n := s.Advance(50 * time.Millisecond); n != 0 {
		t.Errorf("ran %d entries early", n)
	}
	if n := s.Advance(250 * time.Millisecond); n != 3 {
		t.Errorf("ran %d entries, want 3", n)
	}
	want := "idle100@100ms timer100@100ms timer300@300ms"
	if strings.Join(got, " ") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
	if now := s.Now().Sub(epoch); now != 300*time.Millisecond {
		t.Errorf("clock = %s", now)
	}

	// idle host runs remaining idle requests at once
	if n := s.Idle(); n != 1 || got[len(got)-1] != "idle1s@300ms" {
		t.Errorf("idle ran %d, got %v", n, got)
	}
	if n := s.Advance(time.Hour); n != 0 {
		t.Errorf("ran %d entries, want none", n)
	}
}

func TestSimNestedScheduling(t *testing.T) {
	s := NewSim()
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			s.AfterFunc(10*time.Millisecond, tick)
		}
	}
	s.AfterFunc(10*time.Millisecond, tick)
	s.Advance(time.Second)
	if count != 3 {
		t.Errorf("ticks = %d, want 3", count)
	}
}

func TestSimListeners(t *testing.T) {
	sc := mustParse(t, `<scenario window="400x800"><tree><div key="r"><div key="a"/></div></tree></scenario>`)
	a, _ := sc.Node("a")
	s := NewSim()

	var seen []host.EventKind
	s.AddEventListener(a, host.EventKindLayout, func(ev host.Event) { seen = append(seen, ev.Kind) })
	s.AddEventListener(a, host.EventKindLayout, func(ev host.Event) { seen = append(seen, ev.Kind) })
	s.AddEventListener(a, host.EventKindScroll, func(ev host.Event) { seen = append(seen, ev.Kind) })

	if n := s.Listening(a, host.EventKindLayout); n != 2 {
		t.Errorf("listening = %d, want 2", n)
	}
	s.Fire(a, host.Event{Kind: host.EventKindLayout, Layout: host.LayoutEvent{Top: 5, Width: 10, Height: 10}})
	s.Fire(a, host.Event{Kind: host.EventKindAttachedToWindow})
	if len(seen) != 2 {
		t.Errorf("delivered = %v", seen)
	}
	if a.layout == nil || a.layout.Y != 5 {
		t.Errorf("layout = %v", a.layout)
	}
}

func TestSimBoundingClientRect(t *testing.T) {
	sc := mustParse(t, `<scenario window="400x800">
  <tree>
    <div key="root">
      <div key="sv">
        <div key="item"/>
        <div key="fixed" rect="1,2,3,4"/>
      </div>
      <div key="orphan-parent"><div key="orphan"/></div>
    </div>
  </tree>
</scenario>`)
	node := func(key string) *Node {
		n, _ := sc.Node(key)
		return n
	}
	s := NewSim()
	ctx := t.Context()

	s.Fire(node("sv"), host.Event{Kind: host.EventKindLayout, Layout: host.LayoutEvent{Left: 10, Top: 100, Width: 300, Height: 600}})
	s.Fire(node("item"), host.Event{Kind: host.EventKindLayout, Layout: host.LayoutEvent{Top: 250, Width: 300, Height: 100}})
	s.Fire(node("sv"), host.Event{Kind: host.EventKindScroll, Scroll: host.ScrollEvent{OffsetY: 200}})

	r, err := s.BoundingClientRect(ctx, node("item"))
	if err != nil {
		t.Fatal(err)
	}
	if want := (geom.Rect{X: 10, Y: 150, Width: 300, Height: 100}); r != want {
		t.Errorf("item rect = %v, want %v", r, want)
	}
	if r, _ := s.BoundingClientRect(ctx, node("fixed")); r != (geom.Rect{X: 1, Y: 2, Width: 3, Height: 4}) {
		t.Errorf("fixed rect = %v", r)
	}
	if r, _ := s.BoundingClientRect(ctx, sc.Root); r != geom.FromSize(sc.Window) {
		t.Errorf("root rect = %v", r)
	}

	s.Fire(node("orphan"), host.Event{Kind: host.EventKindLayout, Layout: host.LayoutEvent{Width: 1, Height: 1}})
	for _, key := range []string{"orphan-parent", "orphan"} {
		if _, err := s.BoundingClientRect(ctx, node(key)); !errors.Is(err, ErrNoGeometry) {
			t.Errorf("%s: error = %v, want ErrNoGeometry", key, err)
		}
	}
}

func TestSimEmit(t *testing.T) {
	sc := mustParse(t, `<scenario><tree><div key="r"><div key="a"/></div></tree></scenario>`)
	a, _ := sc.Node("a")
	s := NewSim()
	s.detail = describe

	s.Emit(a, "renderToNative", a)
	s.Emit(sc.Root, "custom", 42)

	got := s.Emitted()
	if len(got) != 2 {
		t.Fatalf("emitted = %v", got)
	}
	if got[0] != (Emitted{Seq: 1, Node: "a", Name: "renderToNative"}) {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Node != "r" || got[1].Detail != "" {
		t.Errorf("second = %+v", got[1])
	}
}
