// Package hittest resolves pointer positions against atoms and bonds in
// unscaled image space.
package hittest

import (
	"math"

	"molina/pkg/geometry"
)

// Epsilon is the slack, in image pixels, allowed by the perimeter-sum test
// for diagonal segments.
const Epsilon = 1e-5

// BondHitFraction is the share of each half of a bond, measured from its
// center, that responds to a click. The ends are left to the atoms.
const BondHitFraction = 0.66

// FindNearbyAtom returns the index of the first point, in slice order, whose
// Manhattan distance to p is at most threshold.
func FindNearbyAtom(points []geometry.Point2D, p geometry.Point2D, threshold float64) (int, bool) {
	for i, pt := range points {
		if pt.Manhattan(p) <= threshold {
			return i, true
		}
	}
	return -1, false
}

// FindBondEndpoints resolves the two atoms a drawn line connects. Exactly one
// point must lie within threshold of each end and the two must differ;
// anything else declines with ok == false.
func FindBondEndpoints(points []geometry.Point2D, line geometry.Segment, threshold float64) (start, end int, ok bool) {
	start, end = -1, -1
	nearStart, nearEnd := 0, 0
	for i, pt := range points {
		if pt.Manhattan(line.P1) <= threshold {
			nearStart++
			start = i
		}
		if pt.Manhattan(line.P2) <= threshold {
			nearEnd++
			end = i
		}
	}
	if nearStart != 1 || nearEnd != 1 || start == end {
		return -1, -1, false
	}
	return start, end, true
}

// PointNearSegment reports whether p lies on the segment p1-p2 within
// tolerance. Horizontal and vertical segments use a tolerance rectangle
// centered on the line; other segments use the perimeter sum
// |d1+d2-len| < Epsilon with Manhattan lengths, which accepts points in the
// segment's bounding box.
func PointNearSegment(p1, p2, p geometry.Point2D, tolerance float64) bool {
	if rect, ok := toleranceRect(p1, p2, tolerance); ok {
		return rect.Contains(p)
	}
	length := p1.Manhattan(p2)
	d1 := p.Manhattan(p1)
	d2 := p.Manhattan(p2)
	return math.Abs(d1+d2-length) < Epsilon
}

func toleranceRect(start, end geometry.Point2D, tolerance float64) (geometry.Rect, bool) {
	switch {
	case start.X == end.X:
		return geometry.NewRect(start.X-tolerance/2, math.Min(start.Y, end.Y),
			tolerance, math.Abs(start.Y-end.Y)), true
	case start.Y == end.Y:
		return geometry.NewRect(math.Min(start.X, end.X), start.Y-tolerance/2,
			math.Abs(start.X-end.X), tolerance), true
	default:
		return geometry.Rect{}, false
	}
}

// FindBondAt returns the index of the first segment whose central part
// contains p.
func FindBondAt(segments []geometry.Segment, p geometry.Point2D, tolerance float64) (int, bool) {
	for i, s := range segments {
		inner := s.Inner(BondHitFraction)
		if PointNearSegment(inner.P1, inner.P2, p, tolerance) {
			return i, true
		}
	}
	return -1, false
}
