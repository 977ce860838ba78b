package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// catmullRomAlpha selects the centripetal parametrization (chord length to the
// power 0.5), which avoids the self-intersecting loops of the uniform variant.
const catmullRomAlpha = 0.5

// minKnotSpan guards the Barry-Goldman evaluation against zero-length knot
// intervals introduced by the duplicated virtual end points.
const minKnotSpan = 1e-9

// CatmullRomResample interpolates a centripetal Catmull-Rom spline through the
// given control points and returns sampleCount points evenly spaced in the
// spline parameter. The end points are duplicated virtually so the curve
// passes through the first and last control point.
//
// Fewer than four control points cannot curve; for two or three inputs the
// control points are returned unchanged.
func CatmullRomResample(points []Point2D, sampleCount int) []Point2D {
	if len(points) < 4 {
		out := make([]Point2D, len(points))
		copy(out, points)
		return out
	}
	if sampleCount < 2 {
		sampleCount = 2
	}

	// Global parameter: cumulative chord^alpha over the real control points.
	cum := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		cum[i] = cum[i-1] + knotSpan(points[i-1], points[i])
	}

	// Virtual duplicated end points.
	ext := make([]Point2D, 0, len(points)+2)
	ext = append(ext, points[0])
	ext = append(ext, points...)
	ext = append(ext, points[len(points)-1])

	params := make([]float64, sampleCount)
	floats.Span(params, cum[0], cum[len(cum)-1])

	out := make([]Point2D, sampleCount)
	seg := 0
	for i, u := range params {
		for seg < len(cum)-2 && u > cum[seg+1] {
			seg++
		}
		// Local parameter within the segment, mapped to the [t1, t2]
		// knot interval of the four surrounding control points.
		p0, p1, p2, p3 := ext[seg], ext[seg+1], ext[seg+2], ext[seg+3]
		t0 := 0.0
		t1 := t0 + knotSpan(p0, p1)
		t2 := t1 + knotSpan(p1, p2)
		t3 := t2 + knotSpan(p2, p3)

		f := (u - cum[seg]) / (cum[seg+1] - cum[seg])
		t := t1 + f*(t2-t1)
		out[i] = barryGoldman(p0, p1, p2, p3, t0, t1, t2, t3, t)
	}
	return out
}

// knotSpan returns the centripetal knot increment between two control points,
// clamped away from zero.
func knotSpan(a, b Point2D) float64 {
	s := math.Pow(a.Distance(b), catmullRomAlpha)
	if s < minKnotSpan {
		return minKnotSpan
	}
	return s
}

// barryGoldman evaluates the Catmull-Rom segment p1..p2 at parameter t using
// the pyramidal recurrence.
func barryGoldman(p0, p1, p2, p3 Point2D, t0, t1, t2, t3, t float64) Point2D {
	a1 := lerpPoint(p0, p1, t0, t1, t)
	a2 := lerpPoint(p1, p2, t1, t2, t)
	a3 := lerpPoint(p2, p3, t2, t3, t)
	b1 := lerpPoint(a1, a2, t0, t2, t)
	b2 := lerpPoint(a2, a3, t1, t3, t)
	return lerpPoint(b1, b2, t1, t2, t)
}

// lerpPoint linearly interpolates between a and b over the knot interval
// [ta, tb] at parameter t.
func lerpPoint(a, b Point2D, ta, tb, t float64) Point2D {
	span := tb - ta
	if span < minKnotSpan {
		span = minKnotSpan
	}
	w := (t - ta) / span
	return Point2D{
		X: a.X + (b.X-a.X)*w,
		Y: a.Y + (b.Y-a.Y)*w,
	}
}
