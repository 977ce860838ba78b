// Package canvas provides the measurement canvas: the raster image display
// with pan, zoom, and pointer forwarding into the interaction state machine.
package canvas

import (
	"image"
	"image/color"

	"measuretool/internal/scene"
	"measuretool/internal/session"
	"measuretool/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

const (
	minZoom  = 0.1
	maxZoom  = 16.0
	zoomStep = 1.25

	// zoomSelectFactor is the magnification applied when a click is
	// consumed for a zoom re-center during point placement.
	zoomSelectFactor = 4.0
)

// MeasureCanvas displays the selected image with the measurement overlay and
// forwards pointer events to the session in image coordinates.
type MeasureCanvas struct {
	widget.BaseWidget

	session *session.Session

	raster  *fynecanvas.Raster
	zoom    float64
	scroll  *zoomScroll
	content *interactiveContent
	imgSize fyne.Size

	fitToWindow    bool
	lastScrollSize fyne.Size

	onZoomChange func(zoom float64)
}

// New creates a measurement canvas bound to the session. The canvas registers
// for the session's zoom and view-restore events itself; redraw events are
// the caller's to wire so it can refresh siblings in one place.
func New(s *session.Session) *MeasureCanvas {
	mc := &MeasureCanvas{
		session: s,
		zoom:    1.0,
		imgSize: fyne.NewSize(400, 300),
	}

	mc.raster = fynecanvas.NewRaster(mc.draw)
	mc.raster.ScaleMode = fynecanvas.ImageScalePixels
	mc.raster.SetMinSize(mc.imgSize)

	mc.content = newInteractiveContent(mc)
	mc.scroll = newZoomScroll(mc.content, mc)

	s.On(session.EventZoomRequest, func(data interface{}) {
		if p, ok := data.(geometry.Point2D); ok {
			mc.CenterOn(p)
		}
	})
	s.On(session.EventViewRestore, func(data interface{}) {
		if view, ok := data.(geometry.Rect); ok {
			mc.RestoreView(view)
		}
	})
	s.On(session.EventSelectionChanged, func(interface{}) {
		mc.updateContentSize()
		if mc.fitToWindow {
			mc.FitToWindow()
		}
	})

	mc.ExtendBaseWidget(mc)
	return mc
}

// Container returns the scrollable canvas for embedding in layouts.
func (mc *MeasureCanvas) Container() fyne.CanvasObject {
	return mc.scroll
}

// SetZoom sets the zoom level, clamped to the supported range.
func (mc *MeasureCanvas) SetZoom(zoom float64) {
	if zoom < minZoom {
		zoom = minZoom
	}
	if zoom > maxZoom {
		zoom = maxZoom
	}
	mc.zoom = zoom
	mc.updateContentSize()

	if mc.onZoomChange != nil {
		mc.onZoomChange(zoom)
	}
}

// Zoom returns the current zoom level.
func (mc *MeasureCanvas) Zoom() float64 {
	return mc.zoom
}

// ZoomIn increases the zoom level by one step.
func (mc *MeasureCanvas) ZoomIn() {
	mc.SetZoom(mc.zoom * zoomStep)
}

// ZoomOut decreases the zoom level by one step.
func (mc *MeasureCanvas) ZoomOut() {
	mc.SetZoom(mc.zoom / zoomStep)
}

// FitToWindow adjusts the zoom so the whole image is visible.
func (mc *MeasureCanvas) FitToWindow() {
	im := mc.session.SelectedImage()
	if im == nil || im.Layer == nil {
		return
	}
	w, h := im.Layer.Width(), im.Layer.Height()
	if w == 0 || h == 0 {
		return
	}

	viewSize := mc.scroll.Size()
	if viewSize.Width <= 0 || viewSize.Height <= 0 {
		return
	}

	zoomX := float64(viewSize.Width) / float64(w)
	zoomY := float64(viewSize.Height) / float64(h)
	zoom := zoomX
	if zoomY < zoomX {
		zoom = zoomY
	}
	mc.SetZoom(zoom * 0.95)
}

// SetFitToWindow enables or disables auto-fit on resize.
func (mc *MeasureCanvas) SetFitToWindow(fit bool) {
	mc.fitToWindow = fit
	if fit {
		mc.FitToWindow()
	}
}

// GetFitToWindow returns the current fit-to-window state.
func (mc *MeasureCanvas) GetFitToWindow() bool {
	return mc.fitToWindow
}

// OnZoomChange sets a callback for zoom changes.
func (mc *MeasureCanvas) OnZoomChange(callback func(zoom float64)) {
	mc.onZoomChange = callback
}

// Viewport returns the currently visible rectangle in image coordinates.
func (mc *MeasureCanvas) Viewport() geometry.Rect {
	offset := mc.scroll.Offset()
	size := mc.scroll.Size()
	return geometry.NewRect(
		float64(offset.X)/mc.zoom,
		float64(offset.Y)/mc.zoom,
		float64(size.Width)/mc.zoom,
		float64(size.Height)/mc.zoom,
	)
}

// CenterOn magnifies the view and scrolls so the given image point sits in
// the middle of the viewport.
func (mc *MeasureCanvas) CenterOn(p geometry.Point2D) {
	mc.SetZoom(mc.zoom * zoomSelectFactor)
	size := mc.scroll.Size()
	mc.scroll.ScrollTo(fyne.Position{
		X: float32(p.X*mc.zoom) - size.Width/2,
		Y: float32(p.Y*mc.zoom) - size.Height/2,
	})
	mc.Refresh()
}

// RestoreView brings back a previously visible image-space rectangle.
func (mc *MeasureCanvas) RestoreView(view geometry.Rect) {
	if view.Width <= 0 || view.Height <= 0 {
		return
	}
	size := mc.scroll.Size()
	zoomX := float64(size.Width) / view.Width
	zoomY := float64(size.Height) / view.Height
	zoom := zoomX
	if zoomY < zoomX {
		zoom = zoomY
	}
	mc.SetZoom(zoom)
	mc.scroll.ScrollTo(fyne.Position{
		X: float32(view.X * mc.zoom),
		Y: float32(view.Y * mc.zoom),
	})
	mc.Refresh()
}

// Refresh redraws the canvas.
func (mc *MeasureCanvas) Refresh() {
	mc.raster.Refresh()
}

// updateContentSize resizes the raster to the image dimensions at the current
// zoom.
func (mc *MeasureCanvas) updateContentSize() {
	im := mc.session.SelectedImage()
	if im == nil || im.Layer == nil {
		mc.imgSize = fyne.NewSize(400, 300)
	} else {
		mc.imgSize = fyne.NewSize(
			float32(float64(im.Layer.Width())*mc.zoom),
			float32(float64(im.Layer.Height())*mc.zoom),
		)
	}

	mc.raster.SetMinSize(mc.imgSize)
	mc.raster.Resize(mc.imgSize)
	if mc.content != nil {
		mc.content.Resize(mc.imgSize)
		mc.content.Refresh()
	}
	mc.raster.Refresh()
	if mc.scroll != nil {
		mc.scroll.Refresh()
	}
}

// draw renders the selected image and the measurement overlay.
func (mc *MeasureCanvas) draw(w, h int) image.Image {
	// The hit tolerance tracks whatever is visible right now.
	mc.session.SetViewport(mc.Viewport())

	output := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(output.Pix); i += 4 {
		output.Pix[i] = 255
	}

	im := mc.session.SelectedImage()
	if im == nil || im.Layer == nil || im.Layer.Image == nil {
		return output
	}

	drawImageScaled(output, im.Layer.Image, mc.zoom)
	for _, ins := range scene.Build(mc.session) {
		mc.drawInstruction(output, &ins)
	}
	return output
}

// zoomScroll wraps a scroll container but intercepts the wheel for zoom.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	canvas *MeasureCanvas
}

func newZoomScroll(content fyne.CanvasObject, canvas *MeasureCanvas) *zoomScroll {
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

// Offset returns the scroll container's current offset.
func (zs *zoomScroll) Offset() fyne.Position {
	return zs.scroll.Offset
}

// ScrollTo moves the scroll container to the given content offset.
func (zs *zoomScroll) ScrollTo(pos fyne.Position) {
	if pos.X < 0 {
		pos.X = 0
	}
	if pos.Y < 0 {
		pos.Y = 0
	}
	zs.scroll.Offset = pos
	zs.scroll.Refresh()
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

// interactiveContent wraps the raster to receive mouse events and translate
// them into image-space session calls.
type interactiveContent struct {
	widget.BaseWidget
	canvas *MeasureCanvas
}

var _ fyne.Tappable = (*interactiveContent)(nil)
var _ fyne.SecondaryTappable = (*interactiveContent)(nil)
var _ fyne.DoubleTappable = (*interactiveContent)(nil)
var _ desktop.Mouseable = (*interactiveContent)(nil)
var _ desktop.Hoverable = (*interactiveContent)(nil)

func newInteractiveContent(mc *MeasureCanvas) *interactiveContent {
	ic := &interactiveContent{canvas: mc}
	ic.ExtendBaseWidget(ic)
	return ic
}

func (ic *interactiveContent) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(ic.canvas.raster)
}

func (ic *interactiveContent) MinSize() fyne.Size {
	return ic.canvas.raster.MinSize()
}

// imageCoords converts a widget-relative event position to image coordinates.
func (ic *interactiveContent) imageCoords(pos fyne.Position) (float64, float64, bool) {
	size := ic.Size()
	// Fyne occasionally delivers events just outside the widget bounds.
	if pos.X < 0 || pos.Y < 0 || pos.X > size.Width || pos.Y > size.Height {
		return 0, 0, false
	}
	zoom := ic.canvas.zoom
	return float64(pos.X) / zoom, float64(pos.Y) / zoom, true
}

func (ic *interactiveContent) Tapped(ev *fyne.PointEvent) {
	if x, y, ok := ic.imageCoords(ev.Position); ok {
		ic.canvas.session.PrimaryClick(x, y)
		ic.canvas.Refresh()
	}
}

func (ic *interactiveContent) TappedSecondary(ev *fyne.PointEvent) {
	if x, y, ok := ic.imageCoords(ev.Position); ok {
		ic.canvas.session.AlternateClick(x, y)
		ic.canvas.Refresh()
	}
}

func (ic *interactiveContent) DoubleTapped(ev *fyne.PointEvent) {
	if x, y, ok := ic.imageCoords(ev.Position); ok {
		ic.canvas.session.DoubleClick(x, y)
		ic.canvas.Refresh()
	}
}

func (ic *interactiveContent) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	if x, y, ok := ic.imageCoords(ev.Position); ok {
		ic.canvas.session.PrimaryDown(x, y)
		ic.canvas.Refresh()
	}
}

func (ic *interactiveContent) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	if x, y, ok := ic.imageCoords(ev.Position); ok {
		ic.canvas.session.PrimaryUp(x, y)
		ic.canvas.Refresh()
	}
}

func (ic *interactiveContent) MouseIn(ev *desktop.MouseEvent) {
	ic.MouseMoved(ev)
}

func (ic *interactiveContent) MouseMoved(ev *desktop.MouseEvent) {
	if x, y, ok := ic.imageCoords(ev.Position); ok {
		ic.canvas.session.PointerMove(x, y)
		ic.canvas.Refresh()
	}
}

func (ic *interactiveContent) MouseOut() {}

// CreateRenderer implements fyne.Widget.
func (mc *MeasureCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &measureCanvasRenderer{canvas: mc}
}

type measureCanvasRenderer struct {
	canvas *MeasureCanvas
}

func (r *measureCanvasRenderer) Layout(size fyne.Size) {
	if r.canvas.scroll != nil {
		r.canvas.scroll.Resize(size)
	}
	if r.canvas.fitToWindow && size.Width > 0 && size.Height > 0 &&
		size != r.canvas.lastScrollSize {
		r.canvas.lastScrollSize = size
		r.canvas.FitToWindow()
	}
}

func (r *measureCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *measureCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *measureCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.scroll}
}

func (r *measureCanvasRenderer) Destroy() {}

// drawImageScaled composites the source image into the output at the given
// zoom using nearest-neighbor sampling.
func drawImageScaled(output *image.RGBA, src image.Image, zoom float64) {
	srcBounds := src.Bounds()
	outBounds := output.Bounds()

	for y := outBounds.Min.Y; y < outBounds.Max.Y; y++ {
		srcY := int(float64(y)/zoom) + srcBounds.Min.Y
		if srcY < srcBounds.Min.Y || srcY >= srcBounds.Max.Y {
			continue
		}
		for x := outBounds.Min.X; x < outBounds.Max.X; x++ {
			srcX := int(float64(x)/zoom) + srcBounds.Min.X
			if srcX < srcBounds.Min.X || srcX >= srcBounds.Max.X {
				continue
			}
			sr, sg, sb, _ := src.At(srcX, srcY).RGBA()
			output.Set(x, y, color.RGBA{
				R: uint8(sr >> 8),
				G: uint8(sg >> 8),
				B: uint8(sb >> 8),
				A: 255,
			})
		}
	}
}
