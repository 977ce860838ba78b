package geometry

import (
	"math"

	"github.com/pkg/errors"
)

// ErrDegenerate is returned when a reference segment has zero length and no
// perpendicular or angle can be formed.
var ErrDegenerate = errors.New("degenerate geometry: reference points coincide")

// Distance returns the Euclidean distance between two points.
func Distance(p1, p2 Point2D) float64 {
	return p1.Distance(p2)
}

// CaliperProjection computes the perpendicular (caliper) distance from p3 to
// the infinite line through p1 and p2.
//
// The returned distance is signed: positive when p3 lies to the left of the
// directed line p1->p2, negative to the right. The returned foot is the
// perpendicular projection of p3 onto the line.
func CaliperProjection(p1, p2, p3 Point2D) (foot Point2D, signed float64, err error) {
	base := p1.Distance(p2)
	if base == 0 {
		return Point2D{}, 0, errors.Wrap(ErrDegenerate, "caliper reference segment")
	}

	// 2D cross-product / determinant form of the point-line distance.
	signed = ((p2.X-p1.X)*(p1.Y-p3.Y) - (p1.X-p3.X)*(p2.Y-p1.Y)) / base

	// Unit normal of the directed line, pointing left.
	nx := (p1.Y - p2.Y) / base
	ny := (p2.X - p1.X) / base
	foot = Point2D{X: p3.X + signed*nx, Y: p3.Y + signed*ny}
	return foot, signed, nil
}

// SignedAngle returns the angle at vertex p2 between the rays p2->p1 and
// p2->p3, normalized into (-pi, pi]. Callers needing a magnitude take the
// absolute value.
func SignedAngle(p1, p2, p3 Point2D) (float64, error) {
	if (p1 == p2) || (p3 == p2) {
		return 0, errors.Wrap(ErrDegenerate, "angle ray")
	}
	a1 := math.Atan2(p1.Y-p2.Y, p1.X-p2.X)
	a2 := math.Atan2(p3.Y-p2.Y, p3.X-p2.X)
	angle := a2 - a1
	if angle > math.Pi {
		angle -= 2 * math.Pi
	} else if angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	return angle, nil
}

// CircleRadius returns the radius of the circle defined by a center point and
// a point on its edge.
func CircleRadius(center, edge Point2D) float64 {
	return center.Distance(edge)
}

// TextAngle folds a label rotation in degrees into (-90, 90] so rendered text
// never reads upside-down. Non-finite input yields 0.
func TextAngle(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	for deg > 90 {
		deg -= 180
	}
	for deg <= -90 {
		deg += 180
	}
	return deg
}
