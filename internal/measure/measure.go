package measure

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"measuretool/pkg/geometry"
)

// ErrInvalidPointCount indicates a point sequence that does not satisfy the
// kind's required cardinality. The interaction machine gates its own clicks,
// so hitting this from user input is a programming error.
var ErrInvalidPointCount = errors.New("invalid point count for measurement kind")

// Measurement is one geometric object belonging to exactly one image.
//
// ValuePixels is always derived from Points and never mutated independently.
// ValueUnits is ValuePixels scaled by the owning image's calibration; for
// uncalibrated images it equals ValuePixels.
type Measurement struct {
	ID          string             `json:"-"`
	Kind        Kind               `json:"kind"`
	Points      []geometry.Point2D `json:"points"`
	ValuePixels float64            `json:"value_px"`
	ValueUnits  float64            `json:"-"`

	// Intensity holds per-vertex image samples, populated only for the
	// verbose export.
	Intensity []float64 `json:"-"`
}

// New validates the point count for the kind, computes the derived value, and
// returns the measurement.
func New(kind Kind, points []geometry.Point2D) (*Measurement, error) {
	min, max := kind.PointRange()
	if len(points) < min || (max >= 0 && len(points) > max) {
		return nil, errors.Wrapf(ErrInvalidPointCount, "%s with %d points", kind, len(points))
	}

	m := &Measurement{
		ID:     uuid.NewString(),
		Kind:   kind,
		Points: append([]geometry.Point2D(nil), points...),
	}
	if err := m.Recompute(0); err != nil {
		return nil, err
	}
	return m, nil
}

// Recompute re-derives ValuePixels from the current points and rescales
// ValueUnits with the given units-per-pixel factor (0 = uncalibrated).
// Calling it twice without mutating Points yields identical values.
func (m *Measurement) Recompute(unitsPerPixel float64) error {
	v, err := Value(m.Kind, m.Points)
	if err != nil {
		return err
	}
	m.ValuePixels = v
	if unitsPerPixel > 0 && !m.Kind.IsAngle() {
		m.ValueUnits = v * unitsPerPixel
	} else {
		m.ValueUnits = v
	}
	return nil
}

// MovePoint mutates the point at index. When moveAll is set the delta is
// applied to every point, translating the whole measurement rigidly. The
// caller is responsible for the follow-up Recompute.
func (m *Measurement) MovePoint(index int, pos geometry.Point2D, moveAll bool) error {
	if index < 0 || index >= len(m.Points) {
		return errors.Wrapf(ErrInvalidPointCount, "point index %d of %d", index, len(m.Points))
	}
	if moveAll {
		delta := pos.Sub(m.Points[index])
		for i := range m.Points {
			m.Points[i] = m.Points[i].Add(delta)
		}
		return nil
	}
	m.Points[index] = pos
	return nil
}

// Translate shifts every point so that the first point lands on pos.
func (m *Measurement) Translate(pos geometry.Point2D) {
	if len(m.Points) == 0 {
		return
	}
	delta := pos.Sub(m.Points[0])
	for i := range m.Points {
		m.Points[i] = m.Points[i].Add(delta)
	}
}

// Clone returns a deep copy with a fresh identity. A cloned calibration is
// re-tagged as a plain distance: an image holds at most one calibration
// measurement, so the copy cannot be one.
func (m *Measurement) Clone() *Measurement {
	kind := m.Kind
	if kind == KindCalibration {
		kind = KindDistance
	}
	return &Measurement{
		ID:          uuid.NewString(),
		Kind:        kind,
		Points:      append([]geometry.Point2D(nil), m.Points...),
		ValuePixels: m.ValuePixels,
		ValueUnits:  m.ValueUnits,
	}
}

// Value computes the derived scalar for a complete point sequence of the
// given kind: a length or radius in pixels, or an angle in radians.
func Value(kind Kind, points []geometry.Point2D) (float64, error) {
	min, max := kind.PointRange()
	if len(points) < min || (max >= 0 && len(points) > max) {
		return 0, errors.Wrapf(ErrInvalidPointCount, "%s with %d points", kind, len(points))
	}

	switch kind {
	case KindCalibration, KindDistance:
		return geometry.Distance(points[0], points[1]), nil
	case KindCircle:
		return geometry.CircleRadius(points[0], points[1]), nil
	case KindPolyline, KindSpline:
		return geometry.PathLength(points), nil
	case KindCaliper:
		_, d, err := geometry.CaliperProjection(points[0], points[1], points[2])
		if err != nil {
			return 0, err
		}
		return math.Abs(d), nil
	case KindAngle:
		a, err := geometry.SignedAngle(points[0], points[1], points[2])
		if err != nil {
			return 0, err
		}
		return math.Abs(a), nil
	default:
		return 0, errors.Errorf("unhandled measurement kind %d", kind)
	}
}

// Preview computes the live value for a partially collected point sequence,
// typically the click buffer plus the current pointer position. It reports
// false when too few points are present for any meaningful number.
func Preview(kind Kind, points []geometry.Point2D) (float64, bool) {
	if v, err := Value(kind, points); err == nil {
		return v, true
	}
	// Not enough points for the full formula yet: fall back to the chord
	// length so the user still sees live feedback while placing.
	if len(points) >= 2 && kind != KindAngle {
		return geometry.PathLength(points), true
	}
	return 0, false
}
