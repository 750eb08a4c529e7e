// Package colorutil provides the overlay palette shared by the canvas and
// the CLI previews.
package colorutil

import (
	"image/color"
	"strings"
)

// Overlay colors.
var (
	Black   = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Red     = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Orange  = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	Cyan    = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	Organic = color.RGBA{R: 0, G: 150, B: 0, A: 255}
	Other   = color.RGBA{R: 100, G: 30, B: 200, A: 255}
)

// Role names the kind of overlay element being drawn.
type Role int

const (
	RoleBond    Role = iota // Committed bond strokes
	RolePending             // Line being drawn
	RoleMoving              // Atom being dragged
)

// ForRole returns the stroke color for an overlay role.
func ForRole(r Role) color.RGBA {
	switch r {
	case RolePending:
		return Orange
	case RoleMoving:
		return Cyan
	default:
		return Red
	}
}

var organic = map[string]bool{"C": true, "N": true, "O": true, "F": true}

// ForSymbol returns the label color of an atom: green for the common
// organic elements, purple for everything else.
func ForSymbol(symbol string) color.RGBA {
	if organic[strings.Trim(symbol, "[]")] {
		return Organic
	}
	return Other
}

// Blend mixes src over dst at the given opacity.
func Blend(dst, src color.RGBA, opacity float64) color.RGBA {
	if opacity >= 1 {
		return src
	}
	if opacity <= 0 {
		return dst
	}
	inv := 1 - opacity
	return color.RGBA{
		R: uint8(float64(src.R)*opacity + float64(dst.R)*inv),
		G: uint8(float64(src.G)*opacity + float64(dst.G)*inv),
		B: uint8(float64(src.B)*opacity + float64(dst.B)*inv),
		A: 255,
	}
}
