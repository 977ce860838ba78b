// Package scene turns measurements and the live interaction preview into
// draw instructions for the rendering collaborator. Rendering state lives
// entirely on the consumer side; instructions are keyed by measurement
// identity so the renderer can manage its own object lifetimes.
package scene

import (
	"fmt"
	"math"

	"measuretool/internal/measure"
	"measuretool/internal/session"
	"measuretool/pkg/geometry"
)

// circleSegments is the polygonization density of drawn circles.
const circleSegments = 72

// Instruction describes how to draw one measurement or the live preview.
type Instruction struct {
	// ID is the measurement identity, or empty for the preview.
	ID   string
	Kind measure.Kind

	// Path is the polyline to stroke: the smoothed curve for splines, the
	// circle outline for circles, the reference line plus the caliper leg
	// for calipers.
	Path []geometry.Point2D
	// Markers are the clickable control points.
	Markers []geometry.Point2D

	Label      string
	LabelPos   geometry.Point2D
	LabelAngle float64 // degrees, folded so text stays upright

	// Preview marks the in-flight placement drawn in the accent style.
	Preview bool
	// HoverIndex is the hovered marker in edit/delete/copy mode, or -1.
	HoverIndex int
}

// Build produces the draw list for the selected image: one instruction per
// committed measurement plus, if present, one for the machine's live preview.
func Build(s *session.Session) []Instruction {
	im := s.SelectedImage()
	if im == nil {
		return nil
	}
	opts := s.Options()
	machine := s.Machine()

	dragRef, dragAll, dragCursor, dragActive := machine.DragState()
	hover := machine.Hover()

	var out []Instruction
	for _, m := range im.Measurements {
		points := m.Points
		value := m.ValueUnits

		// An active drag is drawn at the cursor before the model is
		// mutated on button-up.
		if dragActive && dragRef.MeasurementID == m.ID {
			points = substitutePoints(m.Points, dragRef.PointIndex, dragCursor, dragAll)
			if v, ok := measure.Preview(m.Kind, points); ok {
				value = scaleValue(m.Kind, v, im.UnitsPerPixel())
			}
		}

		ins := build(m.Kind, points, opts.SplineSamples)
		ins.ID = m.ID
		ins.Label = formatLabel(opts.NumberFormat, m.Kind, value, im.DisplayUnit())
		ins.HoverIndex = -1
		if hover != nil && hover.MeasurementID == m.ID {
			ins.HoverIndex = hover.PointIndex
		}
		out = append(out, ins)
	}

	if p := machine.Preview(); p != nil {
		ins := build(p.Kind, p.Points, opts.SplineSamples)
		ins.Preview = true
		ins.HoverIndex = -1
		if p.HasValue {
			v := scaleValue(p.Kind, p.Value, im.UnitsPerPixel())
			ins.Label = formatLabel(opts.NumberFormat, p.Kind, v, im.DisplayUnit())
		}
		out = append(out, ins)
	}
	return out
}

// scaleValue converts a pixel value into display units the same way the
// model does: lengths scale with the calibration, angles never do.
func scaleValue(kind measure.Kind, pixels, unitsPerPixel float64) float64 {
	if unitsPerPixel > 0 && !kind.IsAngle() {
		return pixels * unitsPerPixel
	}
	return pixels
}

// formatLabel renders the value text: degrees for angles, the image unit
// otherwise.
func formatLabel(format string, kind measure.Kind, value float64, unit string) string {
	if kind.IsAngle() {
		return fmt.Sprintf(format+"°", value*180/math.Pi)
	}
	return fmt.Sprintf(format+" %s", value, unit)
}

// build assembles the geometry of one instruction.
func build(kind measure.Kind, points []geometry.Point2D, splineSamples int) Instruction {
	ins := Instruction{
		Kind:    kind,
		Markers: append([]geometry.Point2D(nil), points...),
	}
	// Default anchor; the kind-specific cases below place better ones.
	// A computed anchor may legitimately be the origin, so this cannot
	// be a zero-value check after the fact.
	if len(points) > 0 {
		ins.LabelPos = points[len(points)-1]
	}

	switch kind {
	case measure.KindSpline:
		ins.Path = geometry.CatmullRomResample(points, splineSamples)
		ins.LabelPos = geometry.Centroid(points)
	case measure.KindCircle:
		if len(points) == 2 {
			ins.Path = circlePath(points[0], points[0].Distance(points[1]))
			ins.LabelPos = points[0]
		}
	case measure.KindCaliper:
		ins.Path = append([]geometry.Point2D(nil), points...)
		if len(points) == 3 {
			if foot, _, err := geometry.CaliperProjection(points[0], points[1], points[2]); err == nil {
				// Reference line, then the perpendicular leg.
				ins.Path = []geometry.Point2D{points[0], points[1], foot, points[2]}
				ins.LabelPos = geometry.Midpoint(foot, points[2])
				ins.LabelAngle = segmentTextAngle(foot, points[2])
			}
		}
	case measure.KindAngle:
		ins.Path = append([]geometry.Point2D(nil), points...)
		if len(points) >= 2 {
			ins.LabelPos = points[1]
		}
	default:
		// Distance, calibration, polyline.
		ins.Path = append([]geometry.Point2D(nil), points...)
		if len(points) == 2 {
			ins.LabelPos = geometry.Midpoint(points[0], points[1])
			ins.LabelAngle = segmentTextAngle(points[0], points[1])
		} else {
			ins.LabelPos = geometry.Centroid(points)
		}
	}
	return ins
}

// segmentTextAngle returns the upright label rotation along a segment.
func segmentTextAngle(a, b geometry.Point2D) float64 {
	deg := math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
	return geometry.TextAngle(deg)
}

// circlePath polygonizes a circle outline.
func circlePath(center geometry.Point2D, radius float64) []geometry.Point2D {
	path := make([]geometry.Point2D, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		a := float64(i) * 2 * math.Pi / circleSegments
		path[i] = geometry.Point2D{
			X: center.X + radius*math.Cos(a),
			Y: center.Y + radius*math.Sin(a),
		}
	}
	// Close exactly; cos/sin of 2π would land epsilon off the start.
	path[circleSegments] = path[0]
	return path
}

// substitutePoints applies a tentative drag to a copy of the points.
func substitutePoints(points []geometry.Point2D, index int, pos geometry.Point2D, moveAll bool) []geometry.Point2D {
	out := append([]geometry.Point2D(nil), points...)
	if index < 0 || index >= len(out) {
		return out
	}
	if moveAll {
		delta := pos.Sub(out[index])
		for i := range out {
			out[i] = out[i].Add(delta)
		}
		return out
	}
	out[index] = pos
	return out
}
