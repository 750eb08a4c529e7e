package canvas

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"molina/internal/annotation"
	"molina/internal/hittest"
	"molina/internal/keymap"
	"molina/pkg/colorutil"
	"molina/pkg/geometry"
)

// storeEditor drives a real store the way app.State does, without the
// prediction gate.
type storeEditor struct {
	store *annotation.Store
	tol   hittest.Tolerances
	err   error
	calls []string
}

func newStoreEditor() *storeEditor {
	return &storeEditor{
		store: annotation.NewStore(annotation.DefaultOptions()),
		tol:   hittest.ForImage(geometry.NewSize(500, 500)),
	}
}

func (e *storeEditor) AddAtom(symbol string, x, y float64) error {
	e.calls = append(e.calls, "add")
	if e.err != nil {
		return e.err
	}
	e.store.AddAtom(symbol, x, y)
	return nil
}

func (e *storeEditor) ConnectLine(t annotation.BondType, line geometry.Segment, zoom float64) (bool, error) {
	e.calls = append(e.calls, "connect")
	_, ok, err := e.store.ConnectLine(t, line, hittest.ImageSpace(e.tol.AtomThreshold, zoom))
	return ok, err
}

func (e *storeEditor) DeleteNear(p geometry.Point2D, zoom float64) (annotation.Hit, error) {
	e.calls = append(e.calls, "delete")
	return e.store.DeleteNear(p, hittest.ImageSpace(e.tol.AtomThreshold, zoom), hittest.ImageSpace(e.tol.BondSpacing, zoom))
}

func (e *storeEditor) AtomNear(p geometry.Point2D, zoom float64) (int, bool) {
	return e.store.AtomNear(p, hittest.ImageSpace(e.tol.AtomThreshold, zoom))
}

func (e *storeEditor) MoveAtom(index int, x, y float64) error {
	e.calls = append(e.calls, "move")
	return e.store.UpdateAtomPosition(index, x, y)
}

func (e *storeEditor) ClearAll() error {
	e.store.ClearAll()
	return nil
}

func (e *storeEditor) Undo() (bool, error) {
	e.calls = append(e.calls, "undo")
	return e.store.Undo()
}

func (e *storeEditor) Snapshot() ([]annotation.Atom, []annotation.Bond) {
	return e.store.ExportLive()
}

func (e *storeEditor) Tolerances() hittest.Tolerances {
	return e.tol
}

func TestKeysSwitchModes(t *testing.T) {
	c := NewController(newStoreEditor(), keymap.Default())
	assert.Equal(t, ModeIdle, c.Mode())
	assert.Equal(t, "move", c.Tool())

	assert.True(t, c.KeyPressed("c"))
	assert.Equal(t, ModePoint, c.Mode())
	assert.Equal(t, "atom C", c.Tool())

	assert.True(t, c.KeyPressed("2"))
	assert.Equal(t, ModeLine, c.Mode())
	assert.Equal(t, "bond double", c.Tool())

	// Unbound keys still leave the current mode.
	assert.False(t, c.KeyPressed("Escape"))
	assert.Equal(t, ModeIdle, c.Mode())
}

func TestPointAndLineGestures(t *testing.T) {
	ed := newStoreEditor()
	c := NewController(ed, nil)
	redraws := 0
	c.OnChange(func() { redraws++ })

	c.Tap(geometry.NewPoint2D(10, 10))
	assert.Equal(t, 0, ed.store.Len(), "idle taps do nothing")

	c.KeyPressed("O")
	c.Tap(geometry.NewPoint2D(100, 100))
	c.KeyPressed("N")
	c.Tap(geometry.NewPoint2D(200, 100))
	require.Equal(t, 2, ed.store.Len())

	c.KeyPressed("3")
	c.Drag(geometry.NewPoint2D(102, 101), geometry.NewPoint2D(150, 100), 1)
	seg, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, geometry.NewPoint2D(102, 101), seg.P1)

	c.Drag(geometry.NewPoint2D(0, 0), geometry.NewPoint2D(197, 99), 1)
	seg, _ = c.Pending()
	assert.Equal(t, geometry.NewPoint2D(102, 101), seg.P1, "start is kept from the first step")
	c.DragEnd(1)

	_, ok = c.Pending()
	assert.False(t, ok)
	_, bonds := ed.Snapshot()
	require.Len(t, bonds, 1)
	assert.Equal(t, annotation.BondTriple, bonds[0].Type)
	assert.Positive(t, redraws)

	c.SecondaryTap(geometry.NewPoint2D(150, 100), 1)
	assert.Equal(t, 0, ed.store.BondLen())

	c.Undo()
	assert.Equal(t, 1, ed.store.BondLen())
	assert.Equal(t, ModeIdle, c.Mode())
}

func TestDragMovesAtomOnce(t *testing.T) {
	ed := newStoreEditor()
	ed.store.AddAtom("C", 50, 50)
	c := NewController(ed, nil)

	c.Drag(geometry.NewPoint2D(52, 51), geometry.NewPoint2D(60, 60), 1)
	c.Drag(geometry.NewPoint2D(0, 0), geometry.NewPoint2D(80, 90), 1)
	i, p, ok := c.Moving()
	require.True(t, ok)
	assert.Equal(t, 0, i)
	assert.Equal(t, geometry.NewPoint2D(80, 90), p)
	assert.Equal(t, 50.0, ed.store.Atoms()[0].Pos.X, "store is untouched mid-drag")

	c.DragEnd(1)
	assert.Equal(t, geometry.NewPoint2D(80, 90), ed.store.Atoms()[0].Pos)
	assert.Equal(t, []string{"move"}, ed.calls)

	// Dragging empty space moves nothing.
	c.Drag(geometry.NewPoint2D(300, 300), geometry.NewPoint2D(310, 310), 1)
	_, _, ok = c.Moving()
	assert.False(t, ok)
	c.DragEnd(1)
	assert.Equal(t, []string{"move"}, ed.calls)
}

func TestErrorsReported(t *testing.T) {
	ed := newStoreEditor()
	ed.err = errors.New("busy")
	c := NewController(ed, nil)
	var got []error
	c.OnError(func(err error) { got = append(got, err) })

	c.KeyPressed("C")
	c.Tap(geometry.NewPoint2D(1, 1))
	require.Len(t, got, 1)
	assert.EqualError(t, got[0], "busy")
}

func TestBondStrokes(t *testing.T) {
	seg := geometry.NewSegment(0, 0, 100, 0)
	tests := []struct {
		typ  annotation.BondType
		want int
	}{
		{annotation.BondSingle, 1},
		{annotation.BondDouble, 2},
		{annotation.BondTriple, 3},
		{annotation.BondAromatic, 1 + aromaticDashes},
		{annotation.BondSolidWedge, 9},
		{annotation.BondSolidWedgeInverse, 9},
		{annotation.BondDashedWedge, wedgeHatches},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Len(t, bondStrokes(seg, tt.typ, 4), tt.want)
		})
	}

	double := bondStrokes(seg, annotation.BondDouble, 4)
	assert.InDelta(t, 4, double[0].P1.Y, 1e-9)
	assert.InDelta(t, -4, double[1].P1.Y, 1e-9)

	w := bondStrokes(seg, annotation.BondSolidWedge, 4)
	assert.Equal(t, seg.P1, w[0].P1, "wedges start narrow")
	inv := bondStrokes(seg, annotation.BondSolidWedgeInverse, 4)
	assert.Equal(t, seg.P2, inv[0].P1)

	h := bondStrokes(seg, annotation.BondDashedWedge, 4)
	assert.Less(t, h[0].Length(), h[len(h)-1].Length())
	assert.InDelta(t, 8, h[len(h)-1].Length(), 1e-9)
}

func TestDashes(t *testing.T) {
	d := dashes(geometry.NewSegment(0, 0, 90, 0), 5)
	require.Len(t, d, 5)
	assert.InDelta(t, 0, d[0].P1.X, 1e-9)
	assert.InDelta(t, 10, d[0].P2.X, 1e-9)
	assert.InDelta(t, 90, d[4].P2.X, 1e-9)
	assert.Nil(t, dashes(geometry.NewSegment(0, 0, 1, 1), 0))
}

func TestBuildOverlay(t *testing.T) {
	atoms := []annotation.Atom{
		{Symbol: "C", Pos: geometry.NewPoint2D(10, 10)},
		{Symbol: "Ru", Pos: geometry.NewPoint2D(30, 10)},
	}
	bonds := []annotation.Bond{
		{Type: annotation.BondDouble, Start: 0, End: 1},
		{Type: annotation.BondSingle, Start: 0, End: 5},
	}
	o := buildOverlay(atoms, bonds, 2, 10, 2)
	require.Len(t, o.Strokes, 2, "out of range endpoints are skipped")
	assert.InDelta(t, 20, o.Strokes[0].P1.X, 1e-9)
	require.Len(t, o.Labels, 2)
	assert.Equal(t, colorutil.Organic, o.Labels[0].Color)
	assert.Equal(t, colorutil.Other, o.Labels[1].Color)
	assert.Equal(t, geometry.NewPoint2D(60, 20), o.Labels[1].Center)
}

func TestRender(t *testing.T) {
	ed := newStoreEditor()
	ed.store.AddAtom("C", 100, 100)
	ed.store.AddAtom("O", 300, 100)
	_, err := ed.store.AddBond(annotation.BondSingle, 0, 1)
	require.NoError(t, err)

	ac := &AnnotationCanvas{editor: ed, controller: NewController(ed, nil), zoom: 1}
	out := image.NewRGBA(image.Rect(0, 0, 500, 500))
	compositeImage(out, image.NewGray(image.Rect(0, 0, 500, 500)), 1)
	assert.Equal(t, uint8(0), out.RGBAAt(200, 200).R, "image is copied")

	ac.render(out, 1)
	assert.Equal(t, colorutil.Red, out.RGBAAt(200, 100), "bond midpoint is stroked")
}

func TestCompositeOutsideImageIsWhite(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 20, 20))
	compositeImage(out, image.NewGray(image.Rect(0, 0, 5, 5)), 2)
	assert.Equal(t, uint8(0), out.RGBAAt(9, 9).R)
	assert.Equal(t, colorutil.White, out.RGBAAt(10, 10))
}

func TestFitZoom(t *testing.T) {
	assert.InDelta(t, 0.95, fitZoom(100, 50, 100, 100), 1e-9)
	assert.InDelta(t, 0.475, fitZoom(100, 200, 100, 100), 1e-9)
}

func TestDrawText(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 40, 20))
	drawText(out, "N", 20, 10, 10, colorutil.Organic)
	// N's top-left block at scale 2 starts 3 px left of center, 5 px above.
	assert.Equal(t, colorutil.Organic, out.RGBAAt(17, 5))
	assert.Equal(t, 14, textWidth("Cl", 2))
}
