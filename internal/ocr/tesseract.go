// Package ocr finds atom labels printed in molecule images using Tesseract.
package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"molina/pkg/geometry"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// LabelChars is the character set of atom and group labels.
const LabelChars = "ABCDEFGHIKLMNOPRSTUVWXYZabcdefghiklmnoprstuvy0123456789+-()"

// minTextHeight is the smallest image dimension passed to Tesseract;
// smaller images are upscaled first.
const minTextHeight = 150

// Engine wraps a Tesseract client. It is safe for concurrent use; calls are
// serialized.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewEngine creates a new OCR engine.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Labels are not dictionary words.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	_ = client.SetVariable("language_model_penalty_non_dict_word", "0")
	_ = client.SetVariable("language_model_penalty_non_freq_dict_word", "0")

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

// Result represents a single OCR detection in original image pixels.
type Result struct {
	Text       string
	Bounds     geometry.RectInt
	Confidence float64 // Tesseract confidence, 0-100
}

// DetectText finds and recognizes all words in an image.
func (e *Engine) DetectText(img gocv.Mat) ([]Result, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	processed, scale := preprocessForOCR(img)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, fmt.Errorf("OCR engine closed")
	}

	if err := e.client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetWhitelist(LabelChars); err != nil {
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}

	var results []Result
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		results = append(results, Result{
			Text:       text,
			Bounds:     unscale(box.Box, scale),
			Confidence: box.Confidence,
		})
	}
	return results, nil
}

// preprocessForOCR upscales small images and binarizes them to dark text on
// a light background. It returns the applied scale factor.
func preprocessForOCR(src gocv.Mat) (gocv.Mat, float64) {
	h, w := src.Rows(), src.Cols()

	scale := 1.0
	scaled := gocv.NewMat()
	if minDim := min(h, w); minDim < minTextHeight {
		scale = float64(minTextHeight) / float64(minDim)
		gocv.Resize(src, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		src.CopyTo(&scaled)
	}

	gray := gocv.NewMat()
	if scaled.Channels() == 1 {
		scaled.CopyTo(&gray)
	} else {
		gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	}
	scaled.Close()

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	gray.Close()

	// Tesseract expects dark text on light background.
	whiteRatio := float64(gocv.CountNonZero(binary)) / float64(binary.Rows()*binary.Cols())
	if whiteRatio < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()

	return result, scale
}

func unscale(r image.Rectangle, scale float64) geometry.RectInt {
	return geometry.RectInt{
		X:      int(float64(r.Min.X) / scale),
		Y:      int(float64(r.Min.Y) / scale),
		Width:  int(float64(r.Dx()) / scale),
		Height: int(float64(r.Dy()) / scale),
	}
}
