// Package geom contains rectangle math used by exposure computation.
package geom

import (
	"fmt"
	"math"
)

// Point is a position or an offset.
type Point struct {
	X, Y float64
}

// Size is width and height of a box.
type Size struct {
	Width, Height float64
}

// Rect is an axis-aligned rectangle, origin in the top left corner.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// FromSize returns rectangle of the given size anchored at (0,0).
func FromSize(s Size) Rect {
	return Rect{Width: s.Width, Height: s.Height}
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }
func (r Rect) Area() float64   { return r.Width * r.Height }
func (r Rect) Origin() Point   { return Point{X: r.X, Y: r.Y} }
func (r Rect) Size() Size      { return Size{Width: r.Width, Height: r.Height} }

// Offset returns rectangle moved by p keeping its size.
func (r Rect) Offset(p Point) Rect {
	return Rect{X: r.X + p.X, Y: r.Y + p.Y, Width: r.Width, Height: r.Height}
}

// At returns rectangle of the same size placed at p.
func (r Rect) At(p Point) Rect {
	return Rect{X: p.X, Y: p.Y, Width: r.Width, Height: r.Height}
}

// Disjoint reports whether r and o do not touch at all. Rectangles sharing an
// edge are not disjoint.
func (r Rect) Disjoint(o Rect) bool {
	return r.X > o.Right() ||
		r.Right() < o.X ||
		r.Y > o.Bottom() ||
		r.Bottom() < o.Y
}

// Intersects is negation of Disjoint, containment in either direction counts.
func (r Rect) Intersects(o Rect) bool {
	return !r.Disjoint(o)
}

// ContainedIn reports whether r lies completely inside o (edges inclusive).
func (r Rect) ContainedIn(o Rect) bool {
	return r.X >= o.X &&
		r.Y >= o.Y &&
		r.Right() <= o.Right() &&
		r.Bottom() <= o.Bottom()
}

// Intersection returns common part of two rectangles, false when they are
// disjoint. Result for rectangles sharing only an edge has zero area.
func (r Rect) Intersection(o Rect) (Rect, bool) {
	if !r.Intersects(o) {
		return Rect{}, false
	}
	left, top := math.Max(r.X, o.X), math.Max(r.Y, o.Y)
	right, bottom := math.Min(r.Right(), o.Right()), math.Min(r.Bottom(), o.Bottom())
	return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}, true
}

// IntersectionRatio returns part of the target area covered by clip, rounded
// to two decimal places. Zero when rectangles are disjoint or target has no
// area.
func IntersectionRatio(target, clip Rect) float64 {
	inter, ok := target.Intersection(clip)
	if !ok {
		return 0
	}
	area := target.Area()
	if area <= 0 {
		return 0
	}
	return Round2(inter.Area() / area)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (r Rect) String() string {
	return fmt.Sprintf("{x:%g, y:%g, w:%g, h:%g}", r.X, r.Y, r.Width, r.Height)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}
