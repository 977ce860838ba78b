// Package measure defines the measurement entities and the operations that
// create, recompute, and mutate them.
package measure

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies the geometric type of a measurement.
type Kind int

const (
	// KindCalibration is structurally a two-point distance whose length
	// fixes the owning image's pixel-to-unit ratio.
	KindCalibration Kind = iota
	// KindDistance is a straight two-point distance.
	KindDistance
	// KindCaliper is the perpendicular distance from a third point to the
	// line through the first two.
	KindCaliper
	// KindPolyline is the summed length of consecutive segments.
	KindPolyline
	// KindSpline is a polyline drawn as a smoothed Catmull-Rom curve. Its
	// reported length is the control-point path length, so the value stays
	// stable while only the drawn path differs.
	KindSpline
	// KindCircle is a circle given by its center and one edge point; the
	// value is the radius.
	KindCircle
	// KindAngle is the angle at the middle of three points, in radians.
	KindAngle
)

func (k Kind) String() string {
	switch k {
	case KindCalibration:
		return "Calibration"
	case KindDistance:
		return "Distance"
	case KindCaliper:
		return "Caliper"
	case KindPolyline:
		return "Polyline"
	case KindSpline:
		return "Spline"
	case KindCircle:
		return "Circle"
	case KindAngle:
		return "Angle"
	default:
		return "Unknown"
	}
}

// ParseKind converts a kind name (as stored in session files) back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "calibration":
		return KindCalibration, nil
	case "distance":
		return KindDistance, nil
	case "caliper":
		return KindCaliper, nil
	case "polyline":
		return KindPolyline, nil
	case "spline":
		return KindSpline, nil
	case "circle":
		return KindCircle, nil
	case "angle":
		return KindAngle, nil
	default:
		return 0, errors.Errorf("unknown measurement kind %q", s)
	}
}

// PointRange returns the minimum and maximum number of points for the kind.
// max < 0 means unbounded.
func (k Kind) PointRange() (min, max int) {
	switch k {
	case KindCalibration, KindDistance, KindCircle:
		return 2, 2
	case KindCaliper, KindAngle:
		return 3, 3
	case KindPolyline, KindSpline:
		return 2, -1
	default:
		return 0, 0
	}
}

// IsAngle reports whether the measured value is an angle rather than a length.
// Angles are not rescaled by calibration.
func (k Kind) IsAngle() bool {
	return k == KindAngle
}
