package hittest

import "molina/pkg/geometry"

// Tolerances holds the image-space distances used for drawing and hit tests.
type Tolerances struct {
	BondSpacing   float64 // Offset between the strokes of multi-line bonds
	AtomThreshold float64 // Max Manhattan distance for snapping to an atom
	LabelSize     int     // Atom label height in pixels
}

// ForImage derives tolerances from the image dimensions: 2% of the smaller
// side for spacing and snapping, 5% for labels clamped to [3, 100].
func ForImage(size geometry.Size) Tolerances {
	smallest := size.Min()
	label := int(smallest * 0.05)
	if label < 3 {
		label = 3
	}
	if label > 100 {
		label = 100
	}
	return Tolerances{
		BondSpacing:   smallest * 0.02,
		AtomThreshold: smallest * 0.02,
		LabelSize:     label,
	}
}

// Scaled converts an image-space tolerance into display space for the given
// zoom, clamped to [1, 100].
func Scaled(value, zoom float64) float64 {
	v := value * zoom
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

// ImageSpace returns the image-space equivalent of a tolerance after it has
// been scaled and clamped for display at zoom.
func ImageSpace(value, zoom float64) float64 {
	if zoom <= 0 {
		zoom = 1
	}
	return Scaled(value, zoom) / zoom
}
