package host

//go:generate go tool go-enum --names

// EventKind enumerates host events engine subscribes to. Names are the ones
// host uses for listener registration.
// ENUM(layout, attachedToWindow, detachedFromWindow, appear, disAppear, willAppear, willDisappear, scroll, momentumScrollBegin, momentumScrollEnd, scrollBeginDrag, scrollEndDrag, pageSelected)
type EventKind int

// LayoutEvent carries node geometry relative to its parent. Missing values
// are reported as zero.
type LayoutEvent struct {
	Left, Top     float64
	Width, Height float64
}

// ScrollEvent carries current content offset of scrolling container.
type ScrollEvent struct {
	OffsetX, OffsetY float64
}

// PageEvent is sent by paging containers when page changes. Negative
// CurrentSlide means host did not report index.
type PageEvent struct {
	CurrentSlide int
}

// Event is delivered to listeners, payload field matching Kind is set.
type Event struct {
	Kind   EventKind
	Layout LayoutEvent
	Scroll ScrollEvent
	Page   PageEvent
}
