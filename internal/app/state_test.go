package app

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"molina/internal/annotation"
	"molina/internal/exchange"
	"molina/internal/imaging"
	"molina/internal/recognize"
	"molina/pkg/geometry"
)

type gatedRecognizer struct {
	doc     exchange.Document
	started chan struct{}
	release chan struct{}
}

func (g *gatedRecognizer) Name() string { return "gated" }

func (g *gatedRecognizer) Predict(ctx context.Context, _ *imaging.Picture) (exchange.Document, error) {
	close(g.started)
	select {
	case <-g.release:
		return g.doc, nil
	case <-ctx.Done():
		return exchange.Document{}, ctx.Err()
	}
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))))
	return path
}

func newState(t *testing.T, recs ...recognize.Recognizer) *State {
	t.Helper()
	s, err := NewState(Config{}, recognize.NewRegistry(recs...), nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestEditsRequireImage(t *testing.T) {
	s := newState(t)
	assert.ErrorIs(t, s.AddAtom("C", 1, 1), ErrNoImage)
	_, err := s.Undo()
	assert.ErrorIs(t, err, ErrNoImage)
	assert.ErrorIs(t, s.Predict(), recognize.ErrNoModel)
	assert.ErrorIs(t, s.OpenPrevious(), ErrNoImage)
}

func TestEditingFlow(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "mol.png", 500, 500)
	s := newState(t)

	var docs []exchange.Document
	var modified []bool
	s.On(EventAnnotationChanged, func(data interface{}) { docs = append(docs, data.(exchange.Document)) })
	s.On(EventModified, func(data interface{}) { modified = append(modified, data.(bool)) })

	require.NoError(t, s.OpenImage(img))
	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].Atoms)

	require.NoError(t, s.AddAtom("C", 100, 100))
	require.NoError(t, s.AddAtom("O", 200, 100))

	// Atom threshold is 2% of 500 = 10 at zoom 1.
	ok, err := s.ConnectLine(annotation.BondDouble, geometry.NewSegment(104, 103, 196, 98), 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.ConnectLine(annotation.BondSingle, geometry.NewSegment(104, 103, 300, 300), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	i, found := s.AtomNear(geometry.NewPoint2D(198, 101), 1)
	require.True(t, found)
	assert.Equal(t, 1, i)
	require.NoError(t, s.MoveAtom(i, 220, 120))

	doc := docs[len(docs)-1]
	require.Len(t, doc.Atoms, 2)
	require.Len(t, doc.Bonds, 1)
	assert.InDelta(t, 0.44, doc.Atoms[1].X, 1e-12)
	assert.Equal(t, []string{img}, s.Unsaved())

	hit, err := s.DeleteNear(geometry.NewPoint2D(160, 110), 1)
	require.NoError(t, err)
	assert.Equal(t, annotation.HitBond, hit)

	undone, err := s.Undo()
	require.NoError(t, err)
	assert.True(t, undone)
	atoms, bonds := s.Snapshot()
	assert.Len(t, atoms, 2)
	assert.Len(t, bonds, 1)

	require.NoError(t, s.Save())
	assert.FileExists(t, filepath.Join(dir, "mol.json"))
	assert.Empty(t, s.Unsaved())
	assert.False(t, modified[len(modified)-1])

	require.NoError(t, s.ClearAll())
	n := len(docs)
	require.NoError(t, s.ClearAll())
	assert.Len(t, docs, n, "clearing an empty image changes nothing")
}

func TestPredictionGatesEdits(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "mol.png", 100, 50)
	other := writePNG(t, dir, "other.png", 10, 10)

	rec := &gatedRecognizer{
		doc: exchange.Document{
			Atoms: []exchange.AtomRecord{
				{Symbol: "C", X: 10, Y: 10, Confidence: annotation.Score(0.9)},
				{Symbol: "N", X: 90, Y: 40, Confidence: annotation.Score(0.8)},
			},
			Bonds: []exchange.BondRecord{{Type: annotation.BondSingle, Endpoints: [2]int{0, 1}, Confidence: annotation.Score(0.7)}},
		},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newState(t, rec)
	require.NoError(t, s.OpenImage(img))
	require.NoError(t, s.AddAtom("S", 5, 5))

	finished := make(chan recognize.Result, 1)
	s.On(EventPredictionFinished, func(data interface{}) { finished <- data.(recognize.Result) })

	require.NoError(t, s.Predict())
	<-rec.started
	assert.True(t, s.Busy())
	assert.ErrorIs(t, s.AddAtom("C", 1, 1), ErrBusy)
	assert.ErrorIs(t, s.ClearAll(), ErrBusy)
	assert.ErrorIs(t, s.OpenImage(other), ErrBusy)
	assert.ErrorIs(t, s.Predict(), ErrBusy)

	close(rec.release)
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("prediction did not finish")
	}
	assert.False(t, s.Busy())

	atoms, bonds := s.Snapshot()
	require.Len(t, atoms, 2)
	assert.Equal(t, "C", atoms[0].Symbol)
	assert.InDelta(t, 90.0, atoms[1].Pos.X, 1e-9)
	assert.Equal(t, annotation.Score(0.8), atoms[1].Confidence)
	require.Len(t, bonds, 1)

	undone, err := s.Undo()
	require.NoError(t, err)
	assert.False(t, undone, "loaded predictions start a fresh history")
}

func TestPredictionFailureLeavesStore(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "mol.png", 100, 50)
	rec := &gatedRecognizer{started: make(chan struct{}), release: make(chan struct{})}
	s := newState(t, rec)
	require.NoError(t, s.OpenImage(img))
	require.NoError(t, s.AddAtom("S", 5, 5))

	failed := make(chan error, 1)
	s.On(EventPredictionFailed, func(data interface{}) { failed <- data.(error) })

	require.NoError(t, s.Predict())
	<-rec.started
	s.CancelPrediction()

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("prediction did not fail")
	}
	atoms, _ := s.Snapshot()
	require.Len(t, atoms, 1)
	assert.Equal(t, "S", atoms[0].Symbol)
	assert.True(t, s.Current().Store.CanUndo())
}

func TestSelectModel(t *testing.T) {
	s := newState(t, &gatedRecognizer{})
	var names []string
	s.On(EventModelChanged, func(data interface{}) { names = append(names, data.(string)) })
	require.NoError(t, s.SelectModel("gated"))
	assert.ErrorIs(t, s.SelectModel("missing"), recognize.ErrUnknownModel)
	assert.Equal(t, []string{"gated"}, names)
}
