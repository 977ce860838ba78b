package measure

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"measuretool/pkg/geometry"
)

func pts(coords ...float64) []geometry.Point2D {
	out := make([]geometry.Point2D, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		out = append(out, geometry.NewPoint2D(coords[i], coords[i+1]))
	}
	return out
}

func TestKindPointRange(t *testing.T) {
	test := []struct {
		kind     Kind
		min, max int
	}{
		{KindCalibration, 2, 2},
		{KindDistance, 2, 2},
		{KindCircle, 2, 2},
		{KindCaliper, 3, 3},
		{KindAngle, 3, 3},
		{KindPolyline, 2, -1},
		{KindSpline, 2, -1},
	}
	for _, tt := range test {
		t.Run(tt.kind.String(), func(t *testing.T) {
			min, max := tt.kind.PointRange()
			assert.Equal(t, tt.min, min)
			assert.Equal(t, tt.max, max)
		})
	}
}

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindCalibration, KindDistance, KindCaliper, KindPolyline, KindSpline, KindCircle, KindAngle} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("triangle")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	t.Run("distance", func(t *testing.T) {
		m, err := New(KindDistance, pts(0, 0, 3, 4))
		require.NoError(t, err)
		assert.Equal(t, 5.0, m.ValuePixels)
		assert.NotEmpty(t, m.ID)
	})

	t.Run("caliper", func(t *testing.T) {
		m, err := New(KindCaliper, pts(0, 0, 0, 10, 5, 5))
		require.NoError(t, err)
		assert.InDelta(t, 5, m.ValuePixels, 1e-12)
	})

	t.Run("angle", func(t *testing.T) {
		m, err := New(KindAngle, pts(1, 0, 0, 0, 0, 1))
		require.NoError(t, err)
		assert.InDelta(t, math.Pi/2, m.ValuePixels, 1e-12)
	})

	t.Run("circle", func(t *testing.T) {
		m, err := New(KindCircle, pts(0, 0, 0, 7))
		require.NoError(t, err)
		assert.Equal(t, 7.0, m.ValuePixels)
	})

	t.Run("polyline sums segments", func(t *testing.T) {
		m, err := New(KindPolyline, pts(0, 0, 3, 4, 3, 14))
		require.NoError(t, err)
		assert.InDelta(t, 15, m.ValuePixels, 1e-12)
	})

	t.Run("spline length uses control points", func(t *testing.T) {
		p := pts(0, 0, 2, 4, 6, 4, 8, 0)
		m, err := New(KindSpline, p)
		require.NoError(t, err)
		assert.InDelta(t, geometry.PathLength(p), m.ValuePixels, 1e-12)
	})

	t.Run("wrong point count", func(t *testing.T) {
		_, err := New(KindDistance, pts(0, 0))
		assert.True(t, errors.Is(err, ErrInvalidPointCount))
		_, err = New(KindAngle, pts(0, 0, 1, 1))
		assert.True(t, errors.Is(err, ErrInvalidPointCount))
		_, err = New(KindDistance, pts(0, 0, 1, 1, 2, 2))
		assert.True(t, errors.Is(err, ErrInvalidPointCount))
	})

	t.Run("degenerate caliper", func(t *testing.T) {
		_, err := New(KindCaliper, pts(1, 1, 1, 1, 5, 5))
		assert.True(t, errors.Is(err, geometry.ErrDegenerate))
	})

	t.Run("points are copied", func(t *testing.T) {
		p := pts(0, 0, 3, 4)
		m, err := New(KindDistance, p)
		require.NoError(t, err)
		p[0].X = 100
		assert.Equal(t, 0.0, m.Points[0].X)
	})
}

func TestRecompute(t *testing.T) {
	t.Run("scales into units", func(t *testing.T) {
		m, err := New(KindDistance, pts(0, 0, 0, 100))
		require.NoError(t, err)
		require.NoError(t, m.Recompute(0.5))
		assert.Equal(t, 100.0, m.ValuePixels)
		assert.Equal(t, 50.0, m.ValueUnits)
	})

	t.Run("uncalibrated keeps pixel value", func(t *testing.T) {
		m, err := New(KindDistance, pts(0, 0, 0, 100))
		require.NoError(t, err)
		require.NoError(t, m.Recompute(0))
		assert.Equal(t, 100.0, m.ValueUnits)
	})

	t.Run("angles are never rescaled", func(t *testing.T) {
		m, err := New(KindAngle, pts(1, 0, 0, 0, 0, 1))
		require.NoError(t, err)
		require.NoError(t, m.Recompute(0.5))
		assert.InDelta(t, math.Pi/2, m.ValueUnits, 1e-12)
	})

	t.Run("idempotent", func(t *testing.T) {
		m, err := New(KindPolyline, pts(0, 0, 3, 4, 10, 4))
		require.NoError(t, err)
		require.NoError(t, m.Recompute(2))
		v1 := m.ValuePixels
		require.NoError(t, m.Recompute(2))
		assert.Equal(t, v1, m.ValuePixels)
	})
}

func TestMovePoint(t *testing.T) {
	t.Run("single point", func(t *testing.T) {
		m, err := New(KindDistance, pts(0, 0, 3, 4))
		require.NoError(t, err)
		require.NoError(t, m.MovePoint(1, geometry.NewPoint2D(0, 10), false))
		require.NoError(t, m.Recompute(0))
		assert.Equal(t, 10.0, m.ValuePixels)
	})

	t.Run("move all translates rigidly", func(t *testing.T) {
		m, err := New(KindDistance, pts(0, 0, 3, 4))
		require.NoError(t, err)
		require.NoError(t, m.MovePoint(0, geometry.NewPoint2D(10, 10), true))
		require.NoError(t, m.Recompute(0))
		assert.Equal(t, 5.0, m.ValuePixels)
		assert.Equal(t, geometry.NewPoint2D(13, 14), m.Points[1])
	})

	t.Run("bad index", func(t *testing.T) {
		m, err := New(KindDistance, pts(0, 0, 3, 4))
		require.NoError(t, err)
		assert.Error(t, m.MovePoint(5, geometry.Point2D{}, false))
	})
}

func TestClone(t *testing.T) {
	m, err := New(KindCalibration, pts(0, 0, 3, 4))
	require.NoError(t, err)

	c := m.Clone()
	assert.Equal(t, KindDistance, c.Kind, "calibration copies become plain distances")
	assert.NotEqual(t, m.ID, c.ID)
	c.Points[0].X = 42
	assert.Equal(t, 0.0, m.Points[0].X, "clone points are independent")

	d, err := New(KindPolyline, pts(0, 0, 1, 1, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, KindPolyline, d.Clone().Kind)
}

func TestTranslate(t *testing.T) {
	m, err := New(KindCircle, pts(1, 1, 4, 5))
	require.NoError(t, err)
	m.Translate(geometry.NewPoint2D(11, 1))
	assert.Equal(t, geometry.NewPoint2D(11, 1), m.Points[0])
	assert.Equal(t, geometry.NewPoint2D(14, 5), m.Points[1])
}

func TestPreview(t *testing.T) {
	t.Run("full formula when complete", func(t *testing.T) {
		v, ok := Preview(KindCaliper, pts(0, 0, 0, 10, 5, 5))
		require.True(t, ok)
		assert.InDelta(t, 5, v, 1e-12)
	})

	t.Run("chord fallback while collecting", func(t *testing.T) {
		v, ok := Preview(KindCaliper, pts(0, 0, 3, 4))
		require.True(t, ok)
		assert.Equal(t, 5.0, v)
	})

	t.Run("single point has no preview", func(t *testing.T) {
		_, ok := Preview(KindDistance, pts(0, 0))
		assert.False(t, ok)
	})

	t.Run("no angle preview before vertex ray exists", func(t *testing.T) {
		_, ok := Preview(KindAngle, pts(1, 0, 0, 0))
		assert.False(t, ok)
	})
}
