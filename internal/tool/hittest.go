package tool

import (
	"measuretool/internal/measure"
	"measuretool/pkg/geometry"
)

// hitToleranceFraction is the screen-relative hit radius: 5% of the smaller
// viewport extent.
const hitToleranceFraction = 0.05

// fallbackTolerance is used before the UI collaborator has pushed a viewport.
const fallbackTolerance = 10.0

// HitTolerance returns the current hit radius in image-space pixels.
func (m *Machine) HitTolerance() float64 {
	ext := m.viewport.MinExtent()
	if ext <= 0 {
		return fallbackTolerance
	}
	return ext * hitToleranceFraction
}

// hitTest returns the nearest candidate point within tolerance, or nil. Ties
// resolve to the first candidate found, so the result is deterministic for a
// stable candidate order.
func (m *Machine) hitTest(p geometry.Point2D) *PointRef {
	if m.cb.Points == nil {
		return nil
	}
	tol := m.HitTolerance()

	var best *PointRef
	bestDist := 0.0
	for _, ref := range m.cb.Points() {
		d := ref.Pos.Distance(p)
		if d > tol {
			continue
		}
		if best == nil || d < bestDist {
			r := ref
			best = &r
			bestDist = d
		}
	}
	return best
}

// Hover returns the current hover target, or nil.
func (m *Machine) Hover() *PointRef {
	return m.hover
}

// Preview describes what the renderer should draw for the in-progress
// interaction on top of the committed measurements.
type Preview struct {
	Kind   measure.Kind
	Points []geometry.Point2D
	Value  float64
	// HasValue is false while too few points exist for a live number.
	HasValue bool
}

// Preview returns the live placement preview, or nil when nothing is in
// flight. While Collecting it is the click buffer extended with the cursor;
// while Copying it is the held snapshot translated to the cursor.
func (m *Machine) Preview() *Preview {
	switch m.state {
	case Collecting:
		if len(m.buffer) == 0 && !m.haveCursor {
			return nil
		}
		pts := append([]geometry.Point2D(nil), m.buffer...)
		if m.haveCursor {
			pts = append(pts, m.cursor)
		}
		if len(pts) == 0 {
			return nil
		}
		v, ok := measure.Preview(m.kind, pts)
		return &Preview{Kind: m.kind, Points: pts, Value: v, HasValue: ok}
	case Copying:
		if m.snapshot == nil {
			return nil
		}
		pts := append([]geometry.Point2D(nil), m.snapshot.Points...)
		if m.haveCursor && len(pts) > 0 {
			delta := m.cursor.Sub(pts[0])
			for i := range pts {
				pts[i] = pts[i].Add(delta)
			}
		}
		v, ok := measure.Preview(m.snapshot.Kind, pts)
		return &Preview{Kind: m.snapshot.Kind, Points: pts, Value: v, HasValue: ok}
	default:
		return nil
	}
}

// DragState reports an active edit drag: the grabbed point, whether the whole
// measurement translates, and the cursor the renderer should substitute.
func (m *Machine) DragState() (ref *PointRef, moveAll bool, cursor geometry.Point2D, active bool) {
	if m.state != Editing || !m.dragging || m.hover == nil {
		return nil, false, geometry.Point2D{}, false
	}
	return m.hover, m.dragMoveAll, m.cursor, true
}
