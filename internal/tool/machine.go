// Package tool implements the interaction state machine that turns pointer
// and key events into measurement operations.
//
// Exactly one state is active at a time. Entering any state discards the
// previous state's transient buffers: a half-finished measurement is silently
// dropped, never partially committed. The machine itself owns no measurement
// data; it reports finished point sequences and edit operations through its
// callbacks and reads hit-test candidates back through them.
package tool

import (
	"measuretool/internal/measure"
	"measuretool/pkg/geometry"
)

// State identifies the active interaction mode.
type State int

const (
	// Idle means no tool is active.
	Idle State = iota
	// Collecting gathers clicks for a new measurement.
	Collecting
	// Editing drags existing measurement points.
	Editing
	// Deleting removes measurements by clicking their points.
	Deleting
	// Copying duplicates a measurement at a new position.
	Copying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Collecting:
		return "Collecting"
	case Editing:
		return "Editing"
	case Deleting:
		return "Deleting"
	case Copying:
		return "Copying"
	default:
		return "Unknown"
	}
}

// PointRef identifies one vertex of one measurement for hit-testing.
type PointRef struct {
	MeasurementID string
	PointIndex    int
	Pos           geometry.Point2D
}

// Callbacks connect the machine to the session that owns the data.
type Callbacks struct {
	// Points enumerates the hit-test candidates of the visible image.
	Points func() []PointRef
	// Commit delivers a finished point sequence for a new measurement.
	Commit func(kind measure.Kind, points []geometry.Point2D)
	// Delete removes the measurement with the given identity.
	Delete func(id string)
	// Move applies a finished drag to one measurement point.
	Move func(id string, index int, pos geometry.Point2D, moveAll bool)
	// Snapshot returns a deep copy of the measurement for the copy tool,
	// or nil if the identity is stale.
	Snapshot func(id string) *measure.Measurement
	// Zoom asks the view collaborator to re-center on a point before a
	// precise placement.
	Zoom func(at geometry.Point2D)
	// RestoreView restores the pre-collection view after cancel or commit.
	RestoreView func(view geometry.Rect)
	// Status surfaces a user-facing message.
	Status func(format string, args ...interface{})
	// Changed signals that a redraw is needed.
	Changed func()
}

// Machine is the interaction state machine. It is not safe for concurrent
// use; all events must arrive on the single dispatch goroutine.
type Machine struct {
	cb Callbacks

	state    State
	viewport geometry.Rect

	cursor     geometry.Point2D
	haveCursor bool

	// Collecting
	kind      measure.Kind
	buffer    []geometry.Point2D
	maxPoints int
	savedView geometry.Rect
	autoEdit  bool

	// Zoom-before-placing: when the mode is on, the first primary click of
	// each placement re-centers the view and only the next one places.
	zoomSelect bool
	zoomed     bool

	// Editing
	hover       *PointRef
	dragging    bool
	dragMoveAll bool

	// Copying
	snapshot *measure.Measurement
}

// NewMachine creates an idle machine with the given callbacks.
func NewMachine(cb Callbacks) *Machine {
	return &Machine{cb: cb}
}

// State returns the active interaction state.
func (m *Machine) State() State {
	return m.state
}

// ActiveKind returns the measurement kind being collected. Only meaningful
// while the machine is Collecting.
func (m *Machine) ActiveKind() measure.Kind {
	return m.kind
}

// SetViewport updates the visible image-space rectangle. The hit tolerance
// and the zoom-restore target derive from it.
func (m *Machine) SetViewport(view geometry.Rect) {
	m.viewport = view
}

// SetMaxPoints limits polyline and spline collection; 0 or negative means
// unbounded.
func (m *Machine) SetMaxPoints(n int) {
	m.maxPoints = n
}

// SetAutoEdit makes a commit transition straight into Editing.
func (m *Machine) SetAutoEdit(on bool) {
	m.autoEdit = on
}

// ToggleZoomSelect flips the zoom-before-placing mode and reports the new
// setting.
func (m *Machine) ToggleZoomSelect() bool {
	m.zoomSelect = !m.zoomSelect
	m.zoomed = false
	return m.zoomSelect
}

// reset clears all transient buffers. Every state entry goes through it.
func (m *Machine) reset() {
	m.state = Idle
	m.buffer = nil
	m.hover = nil
	m.dragging = false
	m.dragMoveAll = false
	m.snapshot = nil
	m.zoomed = false
}

// StartCollect enters Collecting for the given kind, discarding whatever the
// machine was doing.
func (m *Machine) StartCollect(kind measure.Kind) {
	m.reset()
	m.state = Collecting
	m.kind = kind
	m.savedView = m.viewport
	m.changed()
}

// StartEdit enters Editing.
func (m *Machine) StartEdit() {
	m.reset()
	m.state = Editing
	m.changed()
}

// StartDelete enters Deleting.
func (m *Machine) StartDelete() {
	m.reset()
	m.state = Deleting
	m.changed()
}

// StartCopy enters Copying.
func (m *Machine) StartCopy() {
	m.reset()
	m.state = Copying
	m.changed()
}

// Cancel aborts the active state back to Idle, discarding any buffer and
// restoring the pre-collection view.
func (m *Machine) Cancel() {
	wasCollecting := m.state == Collecting
	if m.state == Idle {
		return
	}
	m.reset()
	if wasCollecting && m.cb.RestoreView != nil {
		m.cb.RestoreView(m.savedView)
	}
	m.changed()
}

// PointerMove tracks the cursor for previews, hover targets, and drags.
func (m *Machine) PointerMove(p geometry.Point2D) {
	m.cursor = p
	m.haveCursor = true

	switch m.state {
	case Collecting:
		m.changed()
	case Editing:
		if !m.dragging {
			m.hover = m.hitTest(p)
		}
		m.changed()
	case Deleting:
		m.hover = m.hitTest(p)
		m.changed()
	case Copying:
		if m.snapshot != nil {
			m.changed()
		} else {
			m.hover = m.hitTest(p)
			m.changed()
		}
	}
}

// PrimaryClick places a point (Collecting), deletes a hit (Deleting), or
// selects/places a copy (Copying).
func (m *Machine) PrimaryClick(p geometry.Point2D) {
	switch m.state {
	case Collecting:
		m.collectClick(p)
	case Deleting:
		if hit := m.hitTest(p); hit != nil {
			if m.cb.Delete != nil {
				m.cb.Delete(hit.MeasurementID)
			}
			m.hover = nil
			m.changed()
		}
	case Copying:
		m.copyClick(p)
	}
}

// collectClick appends a buffered point, or consumes the click for a zoom
// re-center when the zoom-select mode is armed.
func (m *Machine) collectClick(p geometry.Point2D) {
	if m.zoomSelect && !m.zoomed {
		if m.cb.Zoom != nil {
			m.cb.Zoom(p)
		}
		m.zoomed = true
		if m.cb.Status != nil {
			m.cb.Status("zoomed in, click to place the point")
		}
		return
	}
	m.zoomed = false

	m.buffer = append(m.buffer, p)
	_, max := m.kind.PointRange()
	switch {
	case max >= 0 && len(m.buffer) == max:
		m.commit()
	case m.maxPoints > 0 && len(m.buffer) == m.maxPoints:
		// Configured polyline/spline limit reached.
		m.commit()
	default:
		m.changed()
	}
}

// AlternateClick undoes the last buffered point (Collecting), begins a rigid
// whole-measurement drag (Editing), or discards a held snapshot (Copying).
func (m *Machine) AlternateClick(p geometry.Point2D) {
	switch m.state {
	case Collecting:
		if len(m.buffer) > 0 {
			m.buffer = m.buffer[:len(m.buffer)-1]
			m.changed()
		}
	case Editing:
		if hit := m.hitTest(p); hit != nil {
			m.hover = hit
			m.dragging = true
			m.dragMoveAll = true
			m.cursor = p
			m.haveCursor = true
			m.changed()
		}
	case Copying:
		if m.snapshot != nil {
			m.snapshot = nil
			m.changed()
		}
	}
}

// PrimaryDown begins a single-point drag on the hovered point (Editing).
func (m *Machine) PrimaryDown(p geometry.Point2D) {
	if m.state != Editing {
		return
	}
	if hit := m.hitTest(p); hit != nil {
		m.hover = hit
		m.dragging = true
		m.dragMoveAll = false
		m.cursor = p
		m.haveCursor = true
		m.changed()
	}
}

// PrimaryUp ends an active drag and applies the move.
func (m *Machine) PrimaryUp(p geometry.Point2D) {
	if m.state != Editing || !m.dragging {
		return
	}
	hit := m.hover
	moveAll := m.dragMoveAll
	m.dragging = false
	m.dragMoveAll = false
	if hit != nil && m.cb.Move != nil {
		m.cb.Move(hit.MeasurementID, hit.PointIndex, p, moveAll)
	}
	m.hover = nil
	m.changed()
}

// DoubleClick finalizes an open polyline or spline (Collecting) or exits the
// edit-like states when it lands on empty space.
func (m *Machine) DoubleClick(p geometry.Point2D) {
	switch m.state {
	case Collecting:
		if m.kind != measure.KindPolyline && m.kind != measure.KindSpline {
			return
		}
		if len(m.buffer) >= 2 {
			m.commit()
		} else if m.cb.Status != nil {
			m.cb.Status("place at least two points before finishing")
		}
	case Editing, Deleting:
		if m.hitTest(p) == nil {
			m.reset()
			m.changed()
		}
	case Copying:
		m.reset()
		m.changed()
	}
}

// copyClick selects the measurement to duplicate on the first hit and commits
// the translated copy on the next click.
func (m *Machine) copyClick(p geometry.Point2D) {
	if m.snapshot == nil {
		hit := m.hitTest(p)
		if hit == nil {
			return
		}
		if m.cb.Snapshot == nil {
			return
		}
		snap := m.cb.Snapshot(hit.MeasurementID)
		if snap == nil {
			// Stale hit: the measurement vanished under us. Treat as
			// no hit.
			return
		}
		m.snapshot = snap
		m.hover = nil
		m.changed()
		return
	}

	m.snapshot.Translate(p)
	if m.cb.Commit != nil {
		m.cb.Commit(m.snapshot.Kind, append([]geometry.Point2D(nil), m.snapshot.Points...))
	}
	// Back to the select sub-state for further copies.
	m.snapshot = nil
	m.changed()
}

// commit hands the buffer to the session and leaves Collecting.
func (m *Machine) commit() {
	kind := m.kind
	points := append([]geometry.Point2D(nil), m.buffer...)

	autoEdit := m.autoEdit
	m.reset()
	if m.zoomSelect && m.cb.RestoreView != nil {
		m.cb.RestoreView(m.savedView)
	}

	if m.cb.Commit != nil {
		m.cb.Commit(kind, points)
	}

	if autoEdit {
		m.state = Editing
	}
	m.changed()
}

func (m *Machine) changed() {
	if m.cb.Changed != nil {
		m.cb.Changed()
	}
}
