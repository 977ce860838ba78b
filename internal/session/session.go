// Package session owns the image collection, the active interaction state,
// and calibration, and is the single entry point for the UI layer.
//
// All mutating operations must be called from one goroutine, the event
// dispatcher. The listener registry is the only concurrently accessed piece
// and carries its own lock; anything decoding images on another goroutine has
// to marshal the resulting AddImages call back onto the dispatcher.
package session

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	img "measuretool/internal/image"
	"measuretool/internal/measure"
	"measuretool/internal/tool"
	"measuretool/pkg/geometry"
)

// ErrNotCalibrated indicates a calibration operation on an image that has no
// calibration to give.
var ErrNotCalibrated = errors.New("image is not calibrated")

// PixelSize is the calibration triple of an image: the unit length of one
// pixel, the real length the user entered, and that length in pixels.
type PixelSize struct {
	UnitsPerPixel float64
	Length        float64
	LengthPixels  float64
}

// Image is one loaded image and the measurements it owns.
type Image struct {
	Filename string
	Layer    *img.Layer

	// Cal is the 1-based index of the calibration source image: 0 means
	// uncalibrated, the image's own number means it is itself the source.
	Cal       int
	PixelSize *PixelSize
	Unit      string

	Measurements []*measure.Measurement
}

// Calibrated reports whether the image currently carries a pixel size.
func (im *Image) Calibrated() bool {
	return im.Cal != 0 && im.PixelSize != nil
}

// UnitsPerPixel returns the calibration factor, or 0 when uncalibrated.
func (im *Image) UnitsPerPixel() float64 {
	if im.PixelSize == nil {
		return 0
	}
	return im.PixelSize.UnitsPerPixel
}

// DisplayUnit returns the unit label for values on this image.
func (im *Image) DisplayUnit() string {
	if im.Calibrated() && im.Unit != "" {
		return im.Unit
	}
	return "px"
}

// EventType identifies session events.
type EventType int

const (
	EventImageAdded EventType = iota
	EventImageRemoved
	EventSelectionChanged
	EventMeasurementAdded
	EventMeasurementDeleted
	EventCalibrationChanged
	EventStatus
	EventRedraw
	// EventCalibrationPrompt asks the UI to open the "enter real length"
	// prompt. All other events are suspended until the prompt resolves.
	EventCalibrationPrompt
	// EventZoomRequest asks the view to re-center on a geometry.Point2D.
	EventZoomRequest
	// EventViewRestore asks the view to restore a geometry.Rect.
	EventViewRestore
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Session is the facade the UI talks to.
type Session struct {
	images   []*Image
	selected int

	opts    Options
	machine *tool.Machine

	// Calibration prompt state. While the prompt is open the machine is
	// suspended in place and all pointer/key events are swallowed.
	promptOpen    bool
	pendingLength float64
	pendingUnit   string

	listenerMu sync.RWMutex
	listeners  map[EventType][]EventListener
}

// New creates an empty session with default options.
func New() *Session {
	s := &Session{
		selected:  -1,
		opts:      DefaultOptions(),
		listeners: make(map[EventType][]EventListener),
	}
	s.machine = tool.NewMachine(tool.Callbacks{
		Points:      s.hitCandidates,
		Commit:      s.commitMeasurement,
		Delete:      s.deleteByID,
		Move:        s.moveMeasurementPoint,
		Snapshot:    s.snapshotByID,
		Zoom:        func(at geometry.Point2D) { s.Emit(EventZoomRequest, at) },
		RestoreView: func(view geometry.Rect) { s.Emit(EventViewRestore, view) },
		Status:      s.Statusf,
		Changed:     func() { s.Emit(EventRedraw, nil) },
	})
	s.machine.SetMaxPoints(s.opts.MaxPoints)
	s.machine.SetAutoEdit(s.opts.AutoEdit)
	return s
}

// On registers an event listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Session) Emit(event EventType, data interface{}) {
	s.listenerMu.RLock()
	listeners := s.listeners[event]
	s.listenerMu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Statusf surfaces a user-facing status message.
func (s *Session) Statusf(format string, args ...interface{}) {
	s.Emit(EventStatus, fmt.Sprintf(format, args...))
}

// Machine exposes the interaction state machine to the view layer for
// previews, hover state, and viewport updates.
func (s *Session) Machine() *tool.Machine {
	return s.machine
}

// Images returns the image collection in display order.
func (s *Session) Images() []*Image {
	return s.images
}

// SelectedIndex returns the selected image index, or -1.
func (s *Session) SelectedIndex() int {
	return s.selected
}

// SelectedImage returns the selected image, or nil.
func (s *Session) SelectedImage() *Image {
	if s.selected < 0 || s.selected >= len(s.images) {
		return nil
	}
	return s.images[s.selected]
}

// AddImages loads and appends images. Files that cannot be opened or decoded
// are skipped with a status message; the session continues.
func (s *Session) AddImages(paths []string) {
	added := 0
	for _, path := range paths {
		layer, err := img.Load(path)
		if err != nil {
			s.Statusf("skipping %s: %v", path, err)
			continue
		}
		s.images = append(s.images, &Image{Filename: path, Layer: layer})
		added++
		s.Emit(EventImageAdded, len(s.images)-1)
	}
	if added > 0 && s.selected < 0 {
		s.SelectImage(0)
	}
}

// addLoadedImage appends an already-constructed image record. Used by the
// portable-structure loader.
func (s *Session) addLoadedImage(im *Image) {
	s.images = append(s.images, im)
	s.Emit(EventImageAdded, len(s.images)-1)
}

// RemoveImages removes the images at the given indices. Their measurements go
// with them; images that inherited calibration from a removed source are
// reset to uncalibrated, and surviving calibration references are remapped.
func (s *Session) RemoveImages(indices []int) {
	if len(indices) == 0 {
		return
	}
	doomed := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(s.images) {
			doomed[i] = true
		}
	}
	if len(doomed) == 0 {
		return
	}

	// Dependents of a removed calibration source fall back to
	// uncalibrated before the indices shift.
	for _, im := range s.images {
		if im.Cal != 0 && doomed[im.Cal-1] {
			s.decalibrate(im)
		}
	}

	remap := make(map[int]int, len(s.images)) // old 1-based -> new 1-based
	kept := make([]*Image, 0, len(s.images)-len(doomed))
	for i, im := range s.images {
		if doomed[i] {
			continue
		}
		kept = append(kept, im)
		remap[i+1] = len(kept)
	}
	for _, im := range kept {
		if im.Cal != 0 {
			im.Cal = remap[im.Cal]
		}
	}
	s.images = kept

	// Keep the selection on a valid image.
	switch {
	case len(s.images) == 0:
		s.selected = -1
	case s.selected >= len(s.images):
		s.selected = len(s.images) - 1
	}
	s.machine.Cancel()
	s.Emit(EventImageRemoved, indices)
	s.Emit(EventSelectionChanged, s.selected)
	s.Emit(EventRedraw, nil)
}

// SelectImage changes the selected image. Out-of-range indices are ignored.
// An in-flight interaction targets the outgoing image and is cancelled, so a
// collection started on one image can never commit onto another.
func (s *Session) SelectImage(index int) {
	if index < 0 || index >= len(s.images) || index == s.selected {
		return
	}
	s.machine.Cancel()
	s.selected = index
	s.Emit(EventSelectionChanged, index)
	s.Emit(EventRedraw, nil)
}

// NextImage selects the following image, if any.
func (s *Session) NextImage() {
	s.SelectImage(s.selected + 1)
}

// PrevImage selects the preceding image, if any.
func (s *Session) PrevImage() {
	s.SelectImage(s.selected - 1)
}

// StartTool begins collecting a new measurement of the given kind on the
// selected image. Starting a calibration first raises the real-length prompt;
// point collection begins when the prompt is confirmed.
func (s *Session) StartTool(kind measure.Kind) {
	if s.promptOpen {
		return
	}
	if s.SelectedImage() == nil {
		s.Statusf("no image selected")
		return
	}
	if kind == measure.KindCalibration {
		s.promptOpen = true
		s.Emit(EventCalibrationPrompt, nil)
		return
	}
	s.machine.StartCollect(kind)
	s.Statusf("%s: click to place points", kind)
}

// ConfirmCalibrationLength resolves the calibration prompt and proceeds to
// point collection. A non-positive length is rejected and the prompt stays
// open.
func (s *Session) ConfirmCalibrationLength(length float64, unit string) {
	if !s.promptOpen {
		return
	}
	if length <= 0 {
		s.Statusf("calibration length must be positive")
		return
	}
	s.promptOpen = false
	s.pendingLength = length
	s.pendingUnit = unit
	s.machine.StartCollect(measure.KindCalibration)
	s.Statusf("calibration: click the two ends of the reference object")
}

// CancelCalibrationPrompt dismisses the prompt without starting the tool.
func (s *Session) CancelCalibrationPrompt() {
	if !s.promptOpen {
		return
	}
	s.promptOpen = false
	s.machine.Cancel()
}

// PromptOpen reports whether the calibration prompt is waiting for input.
func (s *Session) PromptOpen() bool {
	return s.promptOpen
}

// StartEdit enters point-drag editing.
func (s *Session) StartEdit() {
	if s.promptOpen {
		return
	}
	s.machine.StartEdit()
	s.Statusf("edit: drag a point, alternate-drag moves the whole measurement")
}

// StartDelete enters click-to-delete mode.
func (s *Session) StartDelete() {
	if s.promptOpen {
		return
	}
	s.machine.StartDelete()
	s.Statusf("delete: click a measurement point")
}

// StartCopy enters copy mode.
func (s *Session) StartCopy() {
	if s.promptOpen {
		return
	}
	s.machine.StartCopy()
	s.Statusf("copy: click a measurement, then click its new position")
}

// Cancel aborts the active tool. With the calibration prompt open it cancels
// the prompt instead.
func (s *Session) Cancel() {
	if s.promptOpen {
		s.CancelCalibrationPrompt()
		return
	}
	s.machine.Cancel()
}

// PointerMove forwards a pointer position in image coordinates.
func (s *Session) PointerMove(x, y float64) {
	if s.promptOpen {
		return
	}
	s.machine.PointerMove(geometry.NewPoint2D(x, y))
}

// PrimaryClick forwards a primary (left) click in image coordinates.
func (s *Session) PrimaryClick(x, y float64) {
	if s.promptOpen {
		return
	}
	s.machine.PrimaryClick(geometry.NewPoint2D(x, y))
}

// AlternateClick forwards an alternate (right) click in image coordinates.
func (s *Session) AlternateClick(x, y float64) {
	if s.promptOpen {
		return
	}
	s.machine.AlternateClick(geometry.NewPoint2D(x, y))
}

// PrimaryDown forwards a primary button press (edit drags).
func (s *Session) PrimaryDown(x, y float64) {
	if s.promptOpen {
		return
	}
	s.machine.PrimaryDown(geometry.NewPoint2D(x, y))
}

// PrimaryUp forwards a primary button release (edit drags).
func (s *Session) PrimaryUp(x, y float64) {
	if s.promptOpen {
		return
	}
	s.machine.PrimaryUp(geometry.NewPoint2D(x, y))
}

// DoubleClick forwards a double click in image coordinates.
func (s *Session) DoubleClick(x, y float64) {
	if s.promptOpen {
		return
	}
	s.machine.DoubleClick(geometry.NewPoint2D(x, y))
}

// SetViewport informs the machine of the visible image-space rectangle; the
// hit-test tolerance derives from it.
func (s *Session) SetViewport(view geometry.Rect) {
	s.machine.SetViewport(view)
}

// KeyDown dispatches a key press. Keys follow the classic bindings: tools on
// d/p/o/s/a/l, calibration on c, edit on e, copy on space, zoom-select on z,
// escape cancels, delete removes, arrows change the image.
func (s *Session) KeyDown(key string) {
	if s.promptOpen && key != "escape" {
		return
	}
	switch key {
	case "escape":
		s.Cancel()
	case "d":
		s.StartTool(measure.KindDistance)
	case "p":
		s.StartTool(measure.KindPolyline)
	case "o":
		s.StartTool(measure.KindCircle)
	case "s":
		s.StartTool(measure.KindSpline)
	case "a":
		s.StartTool(measure.KindAngle)
	case "l":
		s.StartTool(measure.KindCaliper)
	case "c":
		s.StartTool(measure.KindCalibration)
	case "e":
		s.StartEdit()
	case "space":
		s.StartCopy()
	case "delete", "backspace":
		s.StartDelete()
	case "z":
		if s.machine.ToggleZoomSelect() {
			s.Statusf("zoom-select on")
		} else {
			s.Statusf("zoom-select off")
		}
	case "up":
		s.PrevImage()
	case "down":
		s.NextImage()
	}
}

// hitCandidates enumerates every point of the selected image's measurements
// in creation order.
func (s *Session) hitCandidates() []tool.PointRef {
	im := s.SelectedImage()
	if im == nil {
		return nil
	}
	var refs []tool.PointRef
	for _, m := range im.Measurements {
		for i, p := range m.Points {
			refs = append(refs, tool.PointRef{MeasurementID: m.ID, PointIndex: i, Pos: p})
		}
	}
	return refs
}

// commitMeasurement finalizes a collected point sequence into a measurement
// on the selected image.
func (s *Session) commitMeasurement(kind measure.Kind, points []geometry.Point2D) {
	im := s.SelectedImage()
	if im == nil {
		s.Statusf("no image selected")
		return
	}

	m, err := measure.New(kind, points)
	if err != nil {
		if errors.Is(err, geometry.ErrDegenerate) {
			s.Statusf("%s discarded: %v", kind, err)
		} else {
			s.Statusf("cannot create %s: %v", kind, err)
		}
		return
	}

	im.Measurements = append(im.Measurements, m)

	if kind == measure.KindCalibration {
		if !s.calibrate(s.selected, m, s.pendingLength, s.pendingUnit) {
			return
		}
	} else if err := m.Recompute(im.UnitsPerPixel()); err != nil {
		// New already validated the geometry, so this cannot fail for
		// the same points; guard anyway.
		im.Measurements = im.Measurements[:len(im.Measurements)-1]
		s.Statusf("cannot create %s: %v", kind, err)
		return
	}

	s.Emit(EventMeasurementAdded, m)
	s.Emit(EventRedraw, nil)
	s.Statusf("%s = %s", kind, s.FormatValue(im, m))
}

// findMeasurement locates a measurement by identity on the selected image.
func (s *Session) findMeasurement(id string) (*Image, int) {
	im := s.SelectedImage()
	if im == nil {
		return nil, -1
	}
	for i, m := range im.Measurements {
		if m.ID == id {
			return im, i
		}
	}
	return nil, -1
}

// deleteByID removes a measurement. Deleting a calibration measurement
// uncalibrates every image that inherited from its owner.
func (s *Session) deleteByID(id string) {
	im, idx := s.findMeasurement(id)
	if im == nil {
		// Stale hit target; treat as no hit.
		return
	}
	m := im.Measurements[idx]
	im.Measurements = append(im.Measurements[:idx], im.Measurements[idx+1:]...)

	if m.Kind == measure.KindCalibration {
		s.clearCalibrationFrom(s.selected)
	}

	s.Emit(EventMeasurementDeleted, m)
	s.Emit(EventRedraw, nil)
	s.Statusf("%s deleted", m.Kind)
}

// snapshotByID returns a deep copy for the copy tool.
func (s *Session) snapshotByID(id string) *measure.Measurement {
	im, idx := s.findMeasurement(id)
	if im == nil {
		return nil
	}
	return im.Measurements[idx].Clone()
}

// moveMeasurementPoint applies a finished drag. Recompute failures (the drag
// collapsed a reference segment) roll the points back.
func (s *Session) moveMeasurementPoint(id string, index int, pos geometry.Point2D, moveAll bool) {
	im, idx := s.findMeasurement(id)
	if im == nil {
		return
	}
	m := im.Measurements[idx]

	before := append([]geometry.Point2D(nil), m.Points...)
	if err := m.MovePoint(index, pos, moveAll); err != nil {
		return
	}
	if err := m.Recompute(im.UnitsPerPixel()); err != nil {
		m.Points = before
		s.Statusf("move undone: %v", err)
		return
	}

	if m.Kind == measure.KindCalibration {
		s.onCalibrationEdited(s.selected, m)
	}

	s.Emit(EventRedraw, nil)
	s.Statusf("%s = %s", m.Kind, s.FormatValue(im, m))
}
