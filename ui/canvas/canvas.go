// Package canvas provides the annotation surface: the molecule image with
// its atoms and bonds drawn on top, plus zoom and the editing gestures.
package canvas

import (
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"molina/internal/hittest"
	"molina/pkg/colorutil"
	"molina/pkg/geometry"
)

const (
	minZoom  = 0.1
	maxZoom  = 10.0
	zoomStep = 1.25
)

// AnnotationCanvas displays an image with its annotation overlay.
type AnnotationCanvas struct {
	widget.BaseWidget

	editor     Editor
	controller *Controller
	img        image.Image

	// Display state
	raster *fynecanvas.Raster
	zoom   float64

	// Container
	scroll  *zoomScroll
	content *draggableContent
	imgSize fyne.Size // Current image display size

	// Fit to window
	fitToWindow    bool
	lastScrollSize fyne.Size

	onZoomChange func(zoom float64)
}

// zoomScroll is a widget that wraps a scroll container but intercepts wheel for zoom.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	canvas *AnnotationCanvas
}

func newZoomScroll(content fyne.CanvasObject, canvas *AnnotationCanvas) *zoomScroll {
	scroll := container.NewScroll(content)
	scroll.Direction = container.ScrollBoth
	zs := &zoomScroll{scroll: scroll, canvas: canvas}
	zs.ExtendBaseWidget(zs)
	return zs
}

func (zs *zoomScroll) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		zs.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		zs.canvas.ZoomOut()
	}
}

func (zs *zoomScroll) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(zs.scroll)
}

// Size returns the scroll container's size.
func (zs *zoomScroll) Size() fyne.Size {
	return zs.scroll.Size()
}

// Refresh refreshes the scroll container.
func (zs *zoomScroll) Refresh() {
	zs.scroll.Refresh()
	zs.BaseWidget.Refresh()
}

// Resize sets the size of the scroll container.
func (zs *zoomScroll) Resize(size fyne.Size) {
	zs.scroll.Resize(size)
	zs.BaseWidget.Resize(size)
}

// draggableContent wraps the raster to handle mouse events.
type draggableContent struct {
	widget.BaseWidget
	canvas *AnnotationCanvas
	raster *fynecanvas.Raster
}

func newDraggableContent(ac *AnnotationCanvas, raster *fynecanvas.Raster) *draggableContent {
	dc := &draggableContent{canvas: ac, raster: raster}
	dc.ExtendBaseWidget(dc)
	return dc
}

func (dc *draggableContent) CreateRenderer() fyne.WidgetRenderer {
	return &draggableContentRenderer{content: dc}
}

func (dc *draggableContent) MinSize() fyne.Size {
	return dc.raster.MinSize()
}

// inside rejects events Fyne delivers outside the widget bounds.
func (dc *draggableContent) inside(pos fyne.Position) bool {
	size := dc.Size()
	return pos.X >= 0 && pos.Y >= 0 && pos.X <= size.Width && pos.Y <= size.Height
}

func (dc *draggableContent) Dragged(ev *fyne.DragEvent) {
	from := ev.Position.Subtract(ev.Dragged)
	dc.canvas.controller.Drag(dc.canvas.toImage(from), dc.canvas.toImage(ev.Position), dc.canvas.zoom)
}

func (dc *draggableContent) DragEnd() {
	dc.canvas.controller.DragEnd(dc.canvas.zoom)
}

func (dc *draggableContent) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		dc.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		dc.canvas.ZoomOut()
	}
}

// Tapped handles left-click events.
func (dc *draggableContent) Tapped(ev *fyne.PointEvent) {
	if !dc.inside(ev.Position) {
		return
	}
	dc.canvas.controller.Tap(dc.canvas.toImage(ev.Position))
}

// TappedSecondary handles right-click events.
func (dc *draggableContent) TappedSecondary(ev *fyne.PointEvent) {
	if !dc.inside(ev.Position) {
		return
	}
	dc.canvas.controller.SecondaryTap(dc.canvas.toImage(ev.Position), dc.canvas.zoom)
}

type draggableContentRenderer struct {
	content *draggableContent
}

func (r *draggableContentRenderer) Layout(size fyne.Size) {
	r.content.raster.Resize(size)
}

func (r *draggableContentRenderer) MinSize() fyne.Size {
	return r.content.raster.MinSize()
}

func (r *draggableContentRenderer) Refresh() {
	r.content.raster.Refresh()
}

func (r *draggableContentRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.content.raster}
}

func (r *draggableContentRenderer) Destroy() {}

// NewAnnotationCanvas creates a canvas that edits through ctrl and draws
// what ed reports.
func NewAnnotationCanvas(ed Editor, ctrl *Controller) *AnnotationCanvas {
	ac := &AnnotationCanvas{
		editor:     ed,
		controller: ctrl,
		zoom:       1.0,
		imgSize:    fyne.NewSize(400, 300),
	}

	ac.raster = fynecanvas.NewRaster(ac.draw)
	ac.raster.ScaleMode = fynecanvas.ImageScalePixels
	ac.raster.SetMinSize(ac.imgSize)

	ac.content = newDraggableContent(ac, ac.raster)
	ac.scroll = newZoomScroll(ac.content, ac)

	ac.ExtendBaseWidget(ac)
	return ac
}

// Controller returns the gesture controller.
func (ac *AnnotationCanvas) Controller() *Controller {
	return ac.controller
}

// Container returns the canvas container for embedding in layouts.
func (ac *AnnotationCanvas) Container() fyne.CanvasObject {
	return ac.scroll
}

// SetImage sets the image to annotate and resets the zoom.
func (ac *AnnotationCanvas) SetImage(img image.Image) {
	ac.img = img
	ac.zoom = 1.0
	ac.updateContentSize()
	if ac.fitToWindow {
		ac.FitToWindow()
	}
}

// TypedKey forwards a key press to the controller.
func (ac *AnnotationCanvas) TypedKey(ev *fyne.KeyEvent) {
	ac.controller.KeyPressed(string(ev.Name))
}

// SetZoom sets the zoom level.
func (ac *AnnotationCanvas) SetZoom(zoom float64) {
	if zoom < minZoom {
		zoom = minZoom
	}
	if zoom > maxZoom {
		zoom = maxZoom
	}
	ac.zoom = zoom
	ac.updateContentSize()

	if ac.onZoomChange != nil {
		ac.onZoomChange(zoom)
	}
}

// GetZoom returns the current zoom level.
func (ac *AnnotationCanvas) GetZoom() float64 {
	return ac.zoom
}

// ZoomIn increases the zoom level.
func (ac *AnnotationCanvas) ZoomIn() {
	ac.SetZoom(ac.zoom * zoomStep)
}

// ZoomOut decreases the zoom level.
func (ac *AnnotationCanvas) ZoomOut() {
	ac.SetZoom(ac.zoom / zoomStep)
}

// FitToWindow adjusts zoom to fit the image in the visible area.
func (ac *AnnotationCanvas) FitToWindow() {
	if ac.img == nil {
		return
	}
	bounds := ac.img.Bounds()
	viewSize := ac.scroll.Size()
	if bounds.Dx() == 0 || bounds.Dy() == 0 || viewSize.Width <= 0 || viewSize.Height <= 0 {
		return
	}
	ac.SetZoom(fitZoom(bounds.Dx(), bounds.Dy(), float64(viewSize.Width), float64(viewSize.Height)))
}

// fitZoom returns the zoom that fits a w x h image into the view with a
// small margin.
func fitZoom(w, h int, viewW, viewH float64) float64 {
	zoom := viewW / float64(w)
	if zy := viewH / float64(h); zy < zoom {
		zoom = zy
	}
	return zoom * 0.95
}

// SetFitToWindow enables or disables auto-fit on resize.
func (ac *AnnotationCanvas) SetFitToWindow(fit bool) {
	ac.fitToWindow = fit
	if fit {
		ac.FitToWindow()
	}
}

// CheckResize auto-fits when the scroll container was resized.
func (ac *AnnotationCanvas) CheckResize(size fyne.Size) {
	if !ac.fitToWindow {
		return
	}
	if size.Width > 0 && size.Height > 0 && size != ac.lastScrollSize {
		ac.lastScrollSize = size
		ac.FitToWindow()
	}
}

// OnZoomChange sets a callback for zoom changes.
func (ac *AnnotationCanvas) OnZoomChange(callback func(zoom float64)) {
	ac.onZoomChange = callback
}

// Refresh redraws the canvas.
func (ac *AnnotationCanvas) Refresh() {
	ac.raster.Refresh()
}

func (ac *AnnotationCanvas) toImage(pos fyne.Position) geometry.Point2D {
	return geometry.NewPoint2D(float64(pos.X)/ac.zoom, float64(pos.Y)/ac.zoom)
}

// updateContentSize updates the content size based on image and zoom.
func (ac *AnnotationCanvas) updateContentSize() {
	if ac.img == nil || ac.img.Bounds().Dx() == 0 || ac.img.Bounds().Dy() == 0 {
		ac.imgSize = fyne.NewSize(400, 300)
	} else {
		b := ac.img.Bounds()
		ac.imgSize = fyne.NewSize(float32(float64(b.Dx())*ac.zoom), float32(float64(b.Dy())*ac.zoom))
	}

	ac.raster.SetMinSize(ac.imgSize)
	ac.raster.Resize(ac.imgSize)
	if ac.content != nil {
		ac.content.Resize(ac.imgSize)
		ac.content.Refresh()
	}
	ac.raster.Refresh()
	if ac.scroll != nil {
		ac.scroll.Refresh()
	}
}

// draw is the raster drawing function. w and h are device pixels, which
// differ from the logical size on scaled displays.
func (ac *AnnotationCanvas) draw(w, h int) image.Image {
	output := image.NewRGBA(image.Rect(0, 0, w, h))
	scale := ac.zoom
	if ac.imgSize.Width > 0 {
		scale *= float64(w) / float64(ac.imgSize.Width)
	}
	compositeImage(output, ac.img, scale)
	if ac.img == nil {
		return output
	}
	ac.render(output, scale)
	return output
}

// render draws the annotation overlay and any gesture in progress at scale.
func (ac *AnnotationCanvas) render(output *image.RGBA, scale float64) {
	atoms, bonds := ac.editor.Snapshot()
	tol := ac.editor.Tolerances()
	spacing := hittest.Scaled(tol.BondSpacing, scale)
	labelHeight := int(float64(tol.LabelSize) * scale)

	if i, p, ok := ac.controller.Moving(); ok && i < len(atoms) {
		atoms[i].Pos = p
		drawRing(output, p.X*scale, p.Y*scale, hittest.Scaled(tol.AtomThreshold, scale),
			colorutil.ForRole(colorutil.RoleMoving))
	}
	drawOverlay(output, buildOverlay(atoms, bonds, spacing, labelHeight, scale))

	if seg, ok := ac.controller.Pending(); ok {
		drawLine(output, int(seg.P1.X*scale), int(seg.P1.Y*scale), int(seg.P2.X*scale), int(seg.P2.Y*scale),
			colorutil.ForRole(colorutil.RolePending), 3)
	}
}

// CreateRenderer implements fyne.Widget.
func (ac *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &annotationCanvasRenderer{canvas: ac}
}

type annotationCanvasRenderer struct {
	canvas *AnnotationCanvas
}

func (r *annotationCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.scroll.Resize(size)
	r.canvas.CheckResize(size)
}

func (r *annotationCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *annotationCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *annotationCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.scroll}
}

func (r *annotationCanvasRenderer) Destroy() {}
