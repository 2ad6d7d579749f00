package scenario

import (
	"fmt"
	"time"

	"xpo/geom"
	"xpo/host"
)

// Op is script instruction.
type Op int

const (
	OpLayout Op = iota
	OpAttach
	OpDetach
	OpScroll
	OpPage
	OpStart
	OpPageShow
	OpBind
	OpUpdate
	OpUnbind
	OpInvalidate
	OpTrigger
	OpForce
	OpRemove
	OpAppend
	OpCustomScroll
	OpIdle
	OpAdvance
	OpCollect
	OpExpect
	OpExpectNotify
	OpExpectEvent
	OpDump

	opCount
)

var opNames = [...]string{
	OpLayout:       "layout",
	OpAttach:       "attach",
	OpDetach:       "detach",
	OpScroll:       "scroll",
	OpPage:         "page",
	OpStart:        "start",
	OpPageShow:     "page-show",
	OpBind:         "bind",
	OpUpdate:       "update",
	OpUnbind:       "unbind",
	OpInvalidate:   "invalidate",
	OpTrigger:      "trigger",
	OpForce:        "force",
	OpRemove:       "remove",
	OpAppend:       "append",
	OpCustomScroll: "custom-scroll",
	OpIdle:         "idle",
	OpAdvance:      "advance",
	OpCollect:      "collect",
	OpExpect:       "expect",
	OpExpectNotify: "expect-notify",
	OpExpectEvent:  "expect-event",
	OpDump:         "dump",
}

func (o Op) String() string {
	if o >= 0 && o < opCount {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ParseOp converts script element name to Op.
func ParseOp(name string) (Op, error) {
	for o, n := range opNames {
		if n == name {
			return Op(o), nil
		}
	}
	return 0, fmt.Errorf("unknown script instruction %q", name)
}

// Step is a single script instruction. Only fields relevant to Op are set.
type Step struct {
	Op    Op
	Index int // 1-based position in script

	Node   string
	Parent string
	Tag    string
	Class  string
	ID     string
	Style  string
	Rect   *geom.Rect

	X, Y, W, H float64
	Slide      int
	Duration   time.Duration
	Flag       bool // page-show value, start from host
	Deep       bool
	Check      bool // force with check-enable
	Tags       []string

	Data    *string
	Enable  *bool
	Status  string
	Ratio   *float64
	Exposed *bool
	Query   *bool
	Visible []string
	Hidden  []string
	Event   string
	Count   int
	Listens []host.EventKind
}

func (s Step) String() string {
	if s.Node != "" {
		return fmt.Sprintf("#%d %s(%s)", s.Index, s.Op, s.Node)
	}
	return fmt.Sprintf("#%d %s", s.Index, s.Op)
}
