package canvas

import (
	"fmt"

	"molina/internal/annotation"
	"molina/internal/hittest"
	"molina/internal/keymap"
	"molina/pkg/geometry"
)

// Editor is the annotation state the canvas edits. Coordinates are image
// pixels; zoom is the display scale the gesture was made at.
type Editor interface {
	AddAtom(symbol string, x, y float64) error
	ConnectLine(t annotation.BondType, line geometry.Segment, zoom float64) (bool, error)
	DeleteNear(p geometry.Point2D, zoom float64) (annotation.Hit, error)
	AtomNear(p geometry.Point2D, zoom float64) (int, bool)
	MoveAtom(index int, x, y float64) error
	ClearAll() error
	Undo() (bool, error)
	Snapshot() ([]annotation.Atom, []annotation.Bond)
	Tolerances() hittest.Tolerances
}

// Mode is the canvas interaction mode.
type Mode int

const (
	ModeIdle  Mode = iota // Drag moves atoms
	ModePoint             // Click places an atom
	ModeLine              // Drag draws a bond
)

// Controller turns pointer and key gestures into editor calls. It holds no
// annotation data of its own.
type Controller struct {
	editor Editor
	keys   *keymap.Map

	mode   Mode
	symbol string
	bond   annotation.BondType

	dragging bool
	start    geometry.Point2D
	last     geometry.Point2D
	moving   int // Display index of the atom being dragged, or -1

	onError  func(error)
	onChange func()
}

// NewController creates a controller in idle mode.
func NewController(ed Editor, keys *keymap.Map) *Controller {
	if keys == nil {
		keys = keymap.Default()
	}
	return &Controller{editor: ed, keys: keys, moving: -1}
}

// OnError sets the callback for edit failures such as a running prediction.
func (c *Controller) OnError(fn func(error)) {
	c.onError = fn
}

// OnChange sets the callback invoked when the canvas needs redrawing.
func (c *Controller) OnChange(fn func()) {
	c.onChange = fn
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Tool describes the current mode for the status bar.
func (c *Controller) Tool() string {
	switch c.mode {
	case ModePoint:
		return fmt.Sprintf("atom %s", c.symbol)
	case ModeLine:
		return fmt.Sprintf("bond %s", c.bond)
	default:
		return "move"
	}
}

// KeyPressed handles a typed key. Any key leaves the current mode; a bound
// key then enters the mode it selects. Returns whether a tool was selected.
func (c *Controller) KeyPressed(key string) bool {
	c.reset()
	b, ok := c.keys.Lookup(key)
	if !ok {
		c.changed()
		return false
	}
	switch b.Mode {
	case keymap.ModePoint:
		c.mode = ModePoint
		c.symbol = b.Value
	case keymap.ModeLine:
		t, err := b.BondType()
		if err != nil {
			c.fail(err)
			return false
		}
		c.mode = ModeLine
		c.bond = t
	}
	c.changed()
	return true
}

// Undo leaves the current mode and reverts the last edit.
func (c *Controller) Undo() {
	c.reset()
	if _, err := c.editor.Undo(); err != nil {
		c.fail(err)
	}
	c.changed()
}

// Tap handles a primary click at image point p.
func (c *Controller) Tap(p geometry.Point2D) {
	if c.mode != ModePoint {
		return
	}
	if err := c.editor.AddAtom(c.symbol, p.X, p.Y); err != nil {
		c.fail(err)
	}
	c.changed()
}

// SecondaryTap deletes the atom or bond under p.
func (c *Controller) SecondaryTap(p geometry.Point2D, zoom float64) {
	if _, err := c.editor.DeleteNear(p, zoom); err != nil {
		c.fail(err)
	}
	c.changed()
}

// Drag handles a drag step that has reached image point p. from is where
// the drag began and is only used on the first step.
func (c *Controller) Drag(from, p geometry.Point2D, zoom float64) {
	if !c.dragging {
		c.dragging = true
		c.start = from
		c.moving = -1
		if c.mode == ModeIdle {
			if i, ok := c.editor.AtomNear(from, zoom); ok {
				c.moving = i
			}
		}
	}
	c.last = p
	c.changed()
}

// DragEnd finishes the gesture started by Drag.
func (c *Controller) DragEnd(zoom float64) {
	if !c.dragging {
		return
	}
	start, end, moving := c.start, c.last, c.moving
	c.dragging = false
	c.moving = -1

	var err error
	switch {
	case c.mode == ModeLine:
		_, err = c.editor.ConnectLine(c.bond, geometry.Segment{P1: start, P2: end}, zoom)
	case c.mode == ModeIdle && moving >= 0:
		err = c.editor.MoveAtom(moving, end.X, end.Y)
	}
	if err != nil {
		c.fail(err)
	}
	c.changed()
}

// Pending returns the line being drawn, in image coordinates.
func (c *Controller) Pending() (geometry.Segment, bool) {
	if !c.dragging || c.mode != ModeLine {
		return geometry.Segment{}, false
	}
	return geometry.Segment{P1: c.start, P2: c.last}, true
}

// Moving returns the atom being dragged and where it would land.
func (c *Controller) Moving() (int, geometry.Point2D, bool) {
	if !c.dragging || c.moving < 0 {
		return -1, geometry.Point2D{}, false
	}
	return c.moving, c.last, true
}

func (c *Controller) reset() {
	c.mode = ModeIdle
	c.dragging = false
	c.moving = -1
}

func (c *Controller) fail(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
