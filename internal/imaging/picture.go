// Package imaging loads molecule images from disk.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"molina/pkg/geometry"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Picture is a decoded image together with the file it came from.
type Picture struct {
	Path   string      // Original file path
	Image  image.Image // Decoded pixels
	Format string      // Decoder name reported by image.Decode
}

// Load decodes the image at path.
func Load(path string) (*Picture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}
	return &Picture{Path: path, Image: img, Format: format}, nil
}

// Width returns the image width in pixels.
func (p *Picture) Width() int {
	if p == nil || p.Image == nil {
		return 0
	}
	return p.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (p *Picture) Height() int {
	if p == nil || p.Image == nil {
		return 0
	}
	return p.Image.Bounds().Dy()
}

// Size returns the image dimensions.
func (p *Picture) Size() geometry.Size {
	return geometry.NewSize(float64(p.Width()), float64(p.Height()))
}

// PixelAt returns the color at the specified pixel coordinates, or white
// outside the image.
func (p *Picture) PixelAt(x, y int) color.Color {
	if p.Image == nil {
		return color.White
	}
	if !(image.Point{X: x, Y: y}).In(p.Image.Bounds()) {
		return color.White
	}
	return p.Image.At(x, y)
}

// PNG returns the image encoded as PNG, for recognizers that read pixels
// from a pipe.
func (p *Picture) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// SupportedFormats returns the file extensions the editor opens.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// FileFilter returns a file filter string for use in file dialogs.
func FileFilter() string {
	return "Images (*.png *.jpg *.jpeg *.gif *.bmp *.tif *.tiff *.webp)"
}
