package ocr

import (
	"context"
	"fmt"
	"regexp"

	"github.com/samber/lo"
	"gocv.io/x/gocv"

	"molina/internal/annotation"
	"molina/internal/exchange"
	"molina/internal/imaging"
)

// DefaultMinConfidence drops words tesseract is less than 60% sure of.
const DefaultMinConfidence = 60.0

// Labels is a recognizer that finds printed atom labels only. Carbon
// skeleton vertices carry no text, so it never produces bonds.
type Labels struct {
	Engine        *Engine
	MinConfidence float64 // Tesseract confidence below which words are dropped
}

// labelPattern matches element symbols, R-groups and short condensed groups
// such as OH, NH2, CF3 or CO2Me.
var labelPattern = regexp.MustCompile(`^\(?(?:[A-Z][a-z]?\d{0,2}){1,4}[+-]?\)?$`)

// Name implements recognize.Recognizer.
func (l *Labels) Name() string {
	return "tesseract-labels"
}

// Predict implements recognize.Recognizer. Coordinates are returned in
// pixels.
func (l *Labels) Predict(ctx context.Context, pic *imaging.Picture) (exchange.Document, error) {
	mat, err := gocv.ImageToMatRGB(pic.Image)
	if err != nil {
		return exchange.Document{}, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	if err := ctx.Err(); err != nil {
		return exchange.Document{}, err
	}
	results, err := l.Engine.DetectText(mat)
	if err != nil {
		return exchange.Document{}, err
	}
	return LabelsToDocument(results, l.MinConfidence), nil
}

// LabelsToDocument turns OCR words into atoms placed at the center of each
// word box. Words that do not look like labels are skipped.
func LabelsToDocument(results []Result, minConfidence float64) exchange.Document {
	atoms := lo.FilterMap(results, func(r Result, _ int) (exchange.AtomRecord, bool) {
		if r.Confidence < minConfidence || !labelPattern.MatchString(r.Text) {
			return exchange.AtomRecord{}, false
		}
		c := r.Bounds.ToFloat().Center()
		return exchange.AtomRecord{
			Symbol:     trimParens(r.Text),
			X:          c.X,
			Y:          c.Y,
			Confidence: annotation.Score(r.Confidence / 100),
		}, true
	})
	return exchange.Document{Atoms: atoms, Bonds: []exchange.BondRecord{}}
}

func trimParens(s string) string {
	if len(s) > 2 && s[0] == '(' && s[len(s)-1] == ')' {
		return s[1 : len(s)-1]
	}
	return s
}
