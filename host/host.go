// Package host defines the boundary between exposure engine and the UI tree
// it observes. Everything here is implemented by the embedding runtime.
package host

import (
	"context"
	"strconv"
	"time"

	"xpo/geom"
)

// NodeID identifies node in the host tree, stable for the node lifetime.
type NodeID int64

func (id NodeID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Node is a live element of the host UI tree. Engine never owns nodes, host
// tree may drop them at any moment.
type Node interface {
	ID() NodeID
	// Tag is lower case element tag name ("div", "ul", "hi-swiper"...).
	Tag() string
	// ElementID is value of the "id" attribute, may be empty.
	ElementID() string
	IsRoot() bool
	// Parent returns nil for detached nodes and for the root.
	Parent() Node
	Children() []Node
	// Native reports whether node is an element which is inserted into
	// native view hierarchy (text and other virtual nodes are not).
	Native() bool
}

// Style is computed style of a node at the time it is rendered to native.
type Style map[string]string

func (s Style) Get(name string) string {
	if s == nil {
		return ""
	}
	return s[name]
}

// Listener receives events subscribed for a particular node.
type Listener func(Event)

// Subscriber attaches listeners to host nodes.
type Subscriber interface {
	AddEventListener(n Node, kind EventKind, l Listener)
}

// RectQuerier asks native side for the node bounding rectangle relative to
// the root container. Call may block.
type RectQuerier interface {
	BoundingClientRect(ctx context.Context, n Node) (geom.Rect, error)
}

// Emitter dispatches named custom events to listeners of a node.
type Emitter interface {
	Emit(n Node, name string, payload any)
}

// Scheduler runs deferred work. RequestIdle runs fn when host is idle but no
// later than timeout.
type Scheduler interface {
	RequestIdle(timeout time.Duration, fn func())
	AfterFunc(d time.Duration, fn func())
}

// TimerScheduler is Scheduler based on runtime timers. There is no notion of
// idle time here, so idle requests fire on timeout.
type TimerScheduler struct{}

func (TimerScheduler) RequestIdle(timeout time.Duration, fn func()) {
	time.AfterFunc(timeout, fn)
}

func (TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
