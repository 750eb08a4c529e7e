// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	return r2.Norm(r2.Sub(p.vec(), other.vec()))
}

// Manhattan returns the taxicab distance to another point.
func (p Point2D) Manhattan(other Point2D) float64 {
	return math.Abs(p.X-other.X) + math.Abs(p.Y-other.Y)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return fromVec(r2.Add(p.vec(), other.vec()))
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return fromVec(r2.Sub(p.vec(), other.vec()))
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return fromVec(r2.Scale(factor, p.vec()))
}

// ScaleXY scales each axis independently.
func (p Point2D) ScaleXY(sx, sy float64) Point2D {
	return Point2D{X: p.X * sx, Y: p.Y * sy}
}

// Equal reports whether both coordinates are within tol of other.
func (p Point2D) Equal(other Point2D, tol float64) bool {
	return math.Abs(p.X-other.X) <= tol && math.Abs(p.Y-other.Y) <= tol
}

func (p Point2D) vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

func fromVec(v r2.Vec) Point2D {
	return Point2D{X: v.X, Y: v.Y}
}

// Rect represents a rectangle with floating-point coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// Contains returns true if the point is inside the rectangle.
func (r Rect) Contains(p Point2D) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point2D {
	return Point2D{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// RectInt represents a rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ToFloat converts to Rect.
func (r RectInt) ToFloat() Rect {
	return Rect{X: float64(r.X), Y: float64(r.Y), Width: float64(r.Width), Height: float64(r.Height)}
}

// Segment is a straight line between two points.
type Segment struct {
	P1 Point2D `json:"p1"`
	P2 Point2D `json:"p2"`
}

// NewSegment creates a segment from raw coordinates.
func NewSegment(x1, y1, x2, y2 float64) Segment {
	return Segment{P1: Point2D{X: x1, Y: y1}, P2: Point2D{X: x2, Y: y2}}
}

// Center returns the midpoint of the segment.
func (s Segment) Center() Point2D {
	return Point2D{X: (s.P1.X + s.P2.X) / 2, Y: (s.P1.Y + s.P2.Y) / 2}
}

// Length returns the Euclidean length.
func (s Segment) Length() float64 {
	return s.P1.Distance(s.P2)
}

// IsVertical reports whether both ends share an X coordinate.
func (s Segment) IsVertical() bool {
	return s.P1.X == s.P2.X
}

// IsHorizontal reports whether both ends share a Y coordinate.
func (s Segment) IsHorizontal() bool {
	return s.P1.Y == s.P2.Y
}

// Inner returns the part of the segment that lies within frac of each half,
// measured from the center toward each end.
func (s Segment) Inner(frac float64) Segment {
	c := s.Center()
	return Segment{
		P1: c.Add(s.P1.Sub(c).Scale(frac)),
		P2: c.Add(s.P2.Sub(c).Scale(frac)),
	}
}

// Normal returns the unit vector perpendicular to the segment, or the zero
// point for a degenerate segment.
func (s Segment) Normal() Point2D {
	d := r2.Sub(s.P2.vec(), s.P1.vec())
	if r2.Norm(d) == 0 {
		return Point2D{}
	}
	u := r2.Unit(d)
	return Point2D{X: -u.Y, Y: u.X}
}

// Offset returns the segment translated by dist along its normal.
func (s Segment) Offset(dist float64) Segment {
	n := s.Normal().Scale(dist)
	return Segment{P1: s.P1.Add(n), P2: s.P2.Add(n)}
}

// Reversed returns the segment with its ends swapped.
func (s Segment) Reversed() Segment {
	return Segment{P1: s.P2, P2: s.P1}
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// Min returns the smaller of the two dimensions.
func (s Size) Min() float64 {
	return math.Min(s.Width, s.Height)
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []Point2D) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
