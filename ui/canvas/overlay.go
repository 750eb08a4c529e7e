package canvas

import (
	"image/color"

	"molina/internal/annotation"
	"molina/pkg/colorutil"
	"molina/pkg/geometry"
)

const (
	aromaticDashes = 5
	wedgeHatches   = 6
)

// Overlay is everything drawn on top of the image, in canvas coordinates.
type Overlay struct {
	Strokes []Stroke
	Labels  []Label
}

// Stroke is a line segment drawn with a given color and thickness.
type Stroke struct {
	geometry.Segment
	Color     color.RGBA
	Thickness int
}

// Label is an atom symbol centered on a point.
type Label struct {
	Text   string
	Center geometry.Point2D
	Height int // Glyph height in canvas pixels
	Color  color.RGBA
}

// bondStrokes returns the segments that draw a bond of type t along seg.
// spacing is the distance between parallel strokes, and also the half-width
// of wedges.
func bondStrokes(seg geometry.Segment, t annotation.BondType, spacing float64) []geometry.Segment {
	switch t {
	case annotation.BondDouble:
		return []geometry.Segment{seg.Offset(spacing), seg.Offset(-spacing)}
	case annotation.BondTriple:
		return []geometry.Segment{seg, seg.Offset(spacing), seg.Offset(-spacing)}
	case annotation.BondAromatic:
		return append([]geometry.Segment{seg}, dashes(seg.Offset(spacing).Inner(0.8), aromaticDashes)...)
	case annotation.BondSolidWedge:
		return wedge(seg, spacing)
	case annotation.BondSolidWedgeInverse:
		return wedge(seg.Reversed(), spacing)
	case annotation.BondDashedWedge:
		return hatches(seg, spacing, wedgeHatches)
	default:
		return []geometry.Segment{seg}
	}
}

// dashes splits seg into n dashes separated by gaps of equal length.
func dashes(seg geometry.Segment, n int) []geometry.Segment {
	if n < 1 {
		return nil
	}
	parts := 2*n - 1
	step := seg.P2.Sub(seg.P1).Scale(1 / float64(parts))
	out := make([]geometry.Segment, 0, n)
	for i := 0; i < parts; i += 2 {
		start := seg.P1.Add(step.Scale(float64(i)))
		out = append(out, geometry.Segment{P1: start, P2: start.Add(step)})
	}
	return out
}

// wedge fans lines from the narrow end at seg.P1 to a base of half-width w
// centered on seg.P2.
func wedge(seg geometry.Segment, w float64) []geometry.Segment {
	n := seg.Normal()
	count := int(2*w) + 1
	if count < 3 {
		count = 3
	}
	out := make([]geometry.Segment, 0, count)
	for i := 0; i < count; i++ {
		k := -w + 2*w*float64(i)/float64(count-1)
		out = append(out, geometry.Segment{P1: seg.P1, P2: seg.P2.Add(n.Scale(k))})
	}
	return out
}

// hatches draws n crossbars that widen from seg.P1 to half-width w at seg.P2.
func hatches(seg geometry.Segment, w float64, n int) []geometry.Segment {
	normal := seg.Normal()
	dir := seg.P2.Sub(seg.P1)
	out := make([]geometry.Segment, 0, n)
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		c := seg.P1.Add(dir.Scale(t))
		half := normal.Scale(w * t)
		out = append(out, geometry.Segment{P1: c.Sub(half), P2: c.Add(half)})
	}
	return out
}

// buildOverlay converts image-space atoms and bonds into canvas strokes
// and labels at the given zoom.
func buildOverlay(atoms []annotation.Atom, bonds []annotation.Bond, spacing float64, labelHeight int, zoom float64) Overlay {
	var o Overlay
	for _, b := range bonds {
		if b.Start < 0 || b.Start >= len(atoms) || b.End < 0 || b.End >= len(atoms) {
			continue
		}
		seg := geometry.Segment{P1: atoms[b.Start].Pos.Scale(zoom), P2: atoms[b.End].Pos.Scale(zoom)}
		thickness := 3
		if b.Type == annotation.BondSolidWedge || b.Type == annotation.BondSolidWedgeInverse {
			thickness = 1
		}
		for _, s := range bondStrokes(seg, b.Type, spacing) {
			o.Strokes = append(o.Strokes, Stroke{Segment: s, Color: colorutil.ForRole(colorutil.RoleBond), Thickness: thickness})
		}
	}
	for _, a := range atoms {
		o.Labels = append(o.Labels, Label{
			Text:   a.Symbol,
			Center: a.Pos.Scale(zoom),
			Height: labelHeight,
			Color:  colorutil.ForSymbol(a.Symbol),
		})
	}
	return o
}
