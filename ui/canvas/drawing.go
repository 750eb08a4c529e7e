package canvas

import (
	"image"
	"image/color"
	"unicode"

	"molina/pkg/colorutil"
)

// digitPatterns contains 3x5 pixel patterns for digits 0-9.
// Each digit is represented as 5 rows of 3 bits.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// letterPatterns contains 3x5 pixel patterns for letters A-Z and the
// punctuation that shows up in group labels.
var letterPatterns = map[rune][5]uint8{
	'A': {0b010, 0b101, 0b111, 0b101, 0b101},
	'B': {0b110, 0b101, 0b110, 0b101, 0b110},
	'C': {0b011, 0b100, 0b100, 0b100, 0b011},
	'D': {0b110, 0b101, 0b101, 0b101, 0b110},
	'E': {0b111, 0b100, 0b110, 0b100, 0b111},
	'F': {0b111, 0b100, 0b110, 0b100, 0b100},
	'G': {0b011, 0b100, 0b101, 0b101, 0b011},
	'H': {0b101, 0b101, 0b111, 0b101, 0b101},
	'I': {0b111, 0b010, 0b010, 0b010, 0b111},
	'J': {0b001, 0b001, 0b001, 0b101, 0b010},
	'K': {0b101, 0b101, 0b110, 0b101, 0b101},
	'L': {0b100, 0b100, 0b100, 0b100, 0b111},
	'M': {0b101, 0b111, 0b101, 0b101, 0b101},
	'N': {0b101, 0b111, 0b111, 0b101, 0b101},
	'O': {0b010, 0b101, 0b101, 0b101, 0b010},
	'P': {0b110, 0b101, 0b110, 0b100, 0b100},
	'Q': {0b010, 0b101, 0b101, 0b111, 0b011},
	'R': {0b110, 0b101, 0b110, 0b101, 0b101},
	'S': {0b011, 0b100, 0b010, 0b001, 0b110},
	'T': {0b111, 0b010, 0b010, 0b010, 0b010},
	'U': {0b101, 0b101, 0b101, 0b101, 0b111},
	'V': {0b101, 0b101, 0b101, 0b101, 0b010},
	'W': {0b101, 0b101, 0b101, 0b111, 0b101},
	'X': {0b101, 0b101, 0b010, 0b101, 0b101},
	'Y': {0b101, 0b101, 0b010, 0b010, 0b010},
	'Z': {0b111, 0b001, 0b010, 0b100, 0b111},
	'+': {0b000, 0b010, 0b111, 0b010, 0b000},
	'-': {0b000, 0b000, 0b111, 0b000, 0b000},
	'*': {0b000, 0b101, 0b010, 0b101, 0b000},
	'(': {0b001, 0b010, 0b010, 0b010, 0b001},
	')': {0b100, 0b010, 0b010, 0b010, 0b100},
	'[': {0b011, 0b010, 0b010, 0b010, 0b011},
	']': {0b110, 0b010, 0b010, 0b010, 0b110},
	' ': {0b000, 0b000, 0b000, 0b000, 0b000},
}

// getCharPattern returns the 3x5 pixel pattern for a character.
// Returns a zero pattern for unsupported characters.
func getCharPattern(ch rune) [5]uint8 {
	if ch >= '0' && ch <= '9' {
		return digitPatterns[ch-'0']
	}
	if pattern, ok := letterPatterns[unicode.ToUpper(ch)]; ok {
		return pattern
	}
	return [5]uint8{}
}

// glyphScale returns the block size that makes a 5-row glyph about height
// pixels tall.
func glyphScale(height int) int {
	scale := height / 5
	if scale < 1 {
		scale = 1
	}
	return scale
}

// textWidth returns the width in pixels of text drawn at scale.
func textWidth(text string, scale int) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return n*3*scale + (n-1)*scale
}

// drawText draws text centered on (centerX, centerY) at roughly height
// pixels tall.
func drawText(output *image.RGBA, text string, centerX, centerY, height int, col color.RGBA) {
	scale := glyphScale(height)
	charWidth := 3 * scale
	charHeight := 5 * scale
	spacing := scale

	startX := centerX - textWidth(text, scale)/2
	startY := centerY - charHeight/2
	bounds := output.Bounds()

	for i, ch := range []rune(text) {
		pattern := getCharPattern(ch)
		s := scale
		offsetY := 0
		if unicode.IsLower(ch) && scale > 1 {
			// Lower case is one step smaller, on the same baseline.
			s = scale - 1
			offsetY = 5 * (scale - s)
		}
		charX := startX + i*(charWidth+spacing)

		for row := 0; row < 5; row++ {
			for c := 0; c < 3; c++ {
				if (pattern[row] & (1 << (2 - c))) == 0 {
					continue
				}
				for dy := 0; dy < s; dy++ {
					for dx := 0; dx < s; dx++ {
						px := charX + c*s + dx
						py := startY + offsetY + row*s + dy
						if px >= bounds.Min.X && px < bounds.Max.X &&
							py >= bounds.Min.Y && py < bounds.Max.Y {
							output.SetRGBA(px, py, col)
						}
					}
				}
			}
		}
	}
}

// drawLine draws a line between two points using Bresenham's algorithm.
func drawLine(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	bounds := output.Bounds()

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy

	for {
		// Draw thick point
		for t := -thickness / 2; t <= thickness/2; t++ {
			for s := -thickness / 2; s <= thickness/2; s++ {
				px, py := x1+s, y1+t
				if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
					output.SetRGBA(px, py, col)
				}
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawRing draws a circle outline of radius r around (cx, cy).
func drawRing(output *image.RGBA, cx, cy, r float64, col color.RGBA) {
	bounds := output.Bounds()
	minX, maxX := int(cx-r-1), int(cx+r+1)
	minY, maxY := int(cy-r-1), int(cy+r+1)

	r2 := r * r
	innerR2 := (r - 2) * (r - 2) // 2 pixel outline thickness

	for y := minY; y <= maxY; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := minX; x <= maxX; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			dx := float64(x) - cx
			dy := float64(y) - cy
			dist2 := dx*dx + dy*dy
			if dist2 <= r2 && dist2 >= innerR2 {
				output.SetRGBA(x, y, col)
			}
		}
	}
}

// compositeImage scales src by zoom onto output with nearest-neighbour
// sampling. Pixels outside src stay white.
func compositeImage(output *image.RGBA, src image.Image, zoom float64) {
	for i := range output.Pix {
		output.Pix[i] = 255
	}
	if src == nil || zoom <= 0 {
		return
	}
	srcBounds := src.Bounds()
	w, h := output.Bounds().Dx(), output.Bounds().Dy()

	for y := 0; y < h; y++ {
		srcY := int(float64(y)/zoom) + srcBounds.Min.Y
		if srcY >= srcBounds.Max.Y {
			break
		}
		for x := 0; x < w; x++ {
			srcX := int(float64(x)/zoom) + srcBounds.Min.X
			if srcX >= srcBounds.Max.X {
				break
			}
			r, g, b, a := src.At(srcX, srcY).RGBA()
			px := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
			if a < 0xffff {
				// Premultiplied: fill the uncovered share with white.
				cover := 255 - uint8(a>>8)
				px = color.RGBA{R: px.R + cover, G: px.G + cover, B: px.B + cover, A: 255}
			}
			output.SetRGBA(x, y, px)
		}
	}
}

// drawOverlay draws bond strokes first, then atom labels on top.
func drawOverlay(output *image.RGBA, o Overlay) {
	for _, s := range o.Strokes {
		drawLine(output, int(s.P1.X), int(s.P1.Y), int(s.P2.X), int(s.P2.Y), s.Color, s.Thickness)
	}
	for _, l := range o.Labels {
		clearLabelBackground(output, l)
		drawText(output, l.Text, int(l.Center.X), int(l.Center.Y), l.Height, l.Color)
	}
}

// clearLabelBackground lightens the box behind a label so it stays
// readable over bond strokes.
func clearLabelBackground(output *image.RGBA, l Label) {
	scale := glyphScale(l.Height)
	w := textWidth(l.Text, scale) + 2*scale
	h := 5*scale + 2*scale
	x0 := int(l.Center.X) - w/2
	y0 := int(l.Center.Y) - h/2
	rect := image.Rect(x0, y0, x0+w, y0+h).Intersect(output.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			output.SetRGBA(x, y, colorutil.Blend(output.RGBAAt(x, y), colorutil.White, 0.8))
		}
	}
}
