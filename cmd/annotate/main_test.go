package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"molina/internal/annotation"
	"molina/internal/exchange"
	"molina/internal/imaging"
)

type stubRecognizer struct {
	calls atomic.Int32
	fail  string // Base name of the image to fail on
}

func (s *stubRecognizer) Name() string { return "stub" }

func (s *stubRecognizer) Predict(_ context.Context, pic *imaging.Picture) (exchange.Document, error) {
	s.calls.Add(1)
	if s.fail != "" && filepath.Base(pic.Path) == s.fail {
		return exchange.Document{}, errors.New("no molecule")
	}
	return exchange.Document{
		Atoms: []exchange.AtomRecord{{Symbol: "C", X: 20, Y: 10}, {Symbol: "O", X: 40, Y: 10}},
		Bonds: []exchange.BondRecord{{Type: annotation.BondDouble, Endpoints: [2]int{0, 1}}},
	}, nil
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 40, 20))))
	require.NoError(t, f.Close())
	return path
}

func TestPredictFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png")
	b := writeImage(t, dir, "b.png")
	c := writeImage(t, dir, "c.png")
	require.NoError(t, exchange.Save(exchange.AnnotationPath(b), exchange.Document{}))

	rec := &stubRecognizer{fail: "c.png"}
	written, err := predictFiles(context.Background(), rec, []string{a, b, c}, predictOptions{jobs: 2})
	assert.Equal(t, 1, written)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c.png")
	assert.EqualValues(t, 2, rec.calls.Load(), "existing annotations are skipped")

	doc, err := exchange.Load(exchange.AnnotationPath(a))
	require.NoError(t, err)
	require.Len(t, doc.Atoms, 2)
	assert.InDelta(t, 0.5, doc.Atoms[0].X, 1e-12)
	assert.InDelta(t, 0.5, doc.Atoms[0].Y, 1e-12)

	written, err = predictFiles(context.Background(), rec, []string{b}, predictOptions{overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	doc, err = exchange.Load(exchange.AnnotationPath(b))
	require.NoError(t, err)
	assert.Len(t, doc.Bonds, 1)
}

func TestExpandImages(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "scans")
	require.NoError(t, os.Mkdir(sub, 0755))
	single := writeImage(t, dir, "single.png")
	writeImage(t, sub, "one.png")
	require.NoError(t, os.WriteFile(filepath.Join(sub, "notes.txt"), []byte("x"), 0644))

	paths, err := expandImages([]string{single, sub})
	require.NoError(t, err)
	assert.Equal(t, []string{single, filepath.Join(sub, "one.png")}, paths)

	_, err = expandImages([]string{filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
}

func TestRecognizerFlags(t *testing.T) {
	_, _, err := predictOptions{}.recognizer()
	assert.Error(t, err)
	_, _, err = predictOptions{command: "x {image}", useOCR: true}.recognizer()
	assert.Error(t, err)

	rec, cleanup, err := predictOptions{command: "/opt/bin/molscribe {image}"}.recognizer()
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, "molscribe", rec.Name())
}

func TestShowAndMolfileCommands(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "mol.png")
	require.NoError(t, exchange.Save(exchange.AnnotationPath(img), exchange.Document{
		Atoms: []exchange.AtomRecord{{Symbol: "N", X: 0.25, Y: 0.5}, {Symbol: "C", X: 0.75, Y: 0.5}},
		Bonds: []exchange.BondRecord{{Type: annotation.BondSingle, Endpoints: [2]int{0, 1}}},
	}))

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"show", img})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "atom_symbol: N")
	assert.Contains(t, out.String(), "endpoint_atoms: [0, 1]")

	molPath := filepath.Join(dir, "mol.mol")
	root = newRootCommand()
	root.SetArgs([]string{"molfile", exchange.AnnotationPath(img), "-o", molPath})
	require.NoError(t, root.Execute())
	data, err := os.ReadFile(molPath)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(data)), "M  END"))
}
