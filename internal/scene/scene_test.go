package scene

import (
	goimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"measuretool/internal/measure"
	"measuretool/internal/session"
	"measuretool/pkg/geometry"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.Gray{Y: 200})
		}
	}
	path := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))

	s := session.New()
	s.AddImages([]string{path})
	require.NotNil(t, s.SelectedImage())
	return s
}

func TestBuildEmptySession(t *testing.T) {
	s := session.New()
	assert.Nil(t, Build(s), "no selected image, nothing to draw")
}

func TestBuildDistanceInstruction(t *testing.T) {
	s := newTestSession(t)
	s.StartTool(measure.KindDistance)
	s.PrimaryClick(0, 0)
	s.PrimaryClick(10, 0)

	ins := Build(s)
	require.Len(t, ins, 1)
	d := ins[0]
	assert.Equal(t, measure.KindDistance, d.Kind)
	assert.NotEmpty(t, d.ID)
	assert.False(t, d.Preview)
	assert.Equal(t, -1, d.HoverIndex)
	assert.Equal(t, []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}}, d.Path)
	assert.Equal(t, geometry.NewPoint2D(5, 0), d.LabelPos)
	assert.Equal(t, 0.0, d.LabelAngle)
	assert.Equal(t, "10.00 px", d.Label)
}

func TestBuildCollectingPreview(t *testing.T) {
	s := newTestSession(t)
	s.StartTool(measure.KindDistance)
	s.PrimaryClick(0, 0)
	s.PointerMove(3, 4)

	ins := Build(s)
	require.Len(t, ins, 1)
	p := ins[0]
	assert.True(t, p.Preview)
	assert.Empty(t, p.ID)
	require.Len(t, p.Path, 2)
	assert.Equal(t, geometry.NewPoint2D(3, 4), p.Path[1], "cursor is the rubber-band end")
	assert.Equal(t, "5.00 px", p.Label)
}

func TestBuildCircleInstruction(t *testing.T) {
	s := newTestSession(t)
	s.StartTool(measure.KindCircle)
	s.PrimaryClick(10, 10)
	s.PrimaryClick(14, 10)

	ins := Build(s)
	require.Len(t, ins, 1)
	c := ins[0]
	require.Len(t, c.Path, circleSegments+1)
	assert.Equal(t, c.Path[0], c.Path[circleSegments], "circle outline is closed")
	for _, p := range c.Path {
		assert.InDelta(t, 4.0, p.Distance(geometry.NewPoint2D(10, 10)), 1e-9)
	}
	assert.Equal(t, geometry.NewPoint2D(10, 10), c.LabelPos)
	require.Len(t, c.Markers, 2)
}

func TestBuildCaliperInstruction(t *testing.T) {
	s := newTestSession(t)
	s.StartTool(measure.KindCaliper)
	s.PrimaryClick(0, 0)
	s.PrimaryClick(0, 10)
	s.PrimaryClick(5, 5)

	ins := Build(s)
	require.Len(t, ins, 1)
	c := ins[0]
	require.Len(t, c.Path, 4)
	assert.Equal(t, geometry.NewPoint2D(0, 5), c.Path[2], "perpendicular foot")
	assert.Equal(t, geometry.NewPoint2D(5, 5), c.Path[3])
	assert.Equal(t, geometry.NewPoint2D(2.5, 5), c.LabelPos)
}

func TestBuildSplineInstruction(t *testing.T) {
	s := newTestSession(t)
	s.StartTool(measure.KindSpline)
	s.PrimaryClick(0, 0)
	s.PrimaryClick(10, 5)
	s.PrimaryClick(20, -5)
	s.PrimaryClick(30, 0)
	s.DoubleClick(30, 0)

	ins := Build(s)
	require.Len(t, ins, 1)
	sp := ins[0]
	assert.Len(t, sp.Path, s.Options().SplineSamples, "curve resampled for drawing")
	assert.Len(t, sp.Markers, 4, "markers stay on the control points")
	assert.Equal(t, geometry.NewPoint2D(0, 0), sp.Path[0])
	assert.Equal(t, geometry.NewPoint2D(30, 0), sp.Path[len(sp.Path)-1])
}

func TestBuildAngleLabel(t *testing.T) {
	s := newTestSession(t)
	s.StartTool(measure.KindAngle)
	s.PrimaryClick(10, 0)
	s.PrimaryClick(0, 0)
	s.PrimaryClick(0, 10)

	ins := Build(s)
	require.Len(t, ins, 1)
	a := ins[0]
	assert.Equal(t, geometry.NewPoint2D(0, 0), a.LabelPos, "label sits at the vertex")
	assert.Contains(t, a.Label, "°")
	assert.Contains(t, a.Label, "90.00")
}

func TestBuildDragSubstitution(t *testing.T) {
	s := newTestSession(t)
	s.SetViewport(geometry.NewRect(0, 0, 32, 32))
	s.StartTool(measure.KindDistance)
	s.PrimaryClick(0, 0)
	s.PrimaryClick(10, 0)

	s.StartEdit()
	s.PrimaryDown(10, 0)
	s.PointerMove(20, 0)

	ins := Build(s)
	require.Len(t, ins, 1)
	d := ins[0]
	assert.Equal(t, geometry.NewPoint2D(20, 0), d.Path[1], "dragged point tracks the cursor")
	assert.Equal(t, "20.00 px", d.Label, "live value follows the drag")

	m := s.SelectedImage().Measurements[0]
	assert.Equal(t, geometry.NewPoint2D(10, 0), m.Points[1], "model unchanged until release")
}
