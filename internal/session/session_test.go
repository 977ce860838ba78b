package session

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
	"measuretool/pkg/geometry"
)

// writeTestImage creates a small solid-gray PNG and returns its path.
func writeTestImage(t *testing.T, dir, name string, gray uint8) string {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

// newTestSession loads n fresh gray images into a session and collects
// status messages.
func newTestSession(t *testing.T, n int) (*Session, *[]string) {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = writeTestImage(t, dir, filepathName(i), 128)
	}

	s := New()
	var status []string
	s.On(EventStatus, func(data interface{}) {
		status = append(status, data.(string))
	})
	s.AddImages(paths)
	require.Len(t, s.Images(), n)
	return s, &status
}

func filepathName(i int) string {
	return "img" + string(rune('a'+i)) + ".png"
}

// calibrateSelected runs the full calibration flow on the selected image:
// prompt, confirm, two reference clicks of the given pixel distance.
func calibrateSelected(t *testing.T, s *Session, pixels, realLength float64, unit string) {
	t.Helper()
	s.StartTool(measure.KindCalibration)
	require.True(t, s.PromptOpen())
	s.ConfirmCalibrationLength(realLength, unit)
	require.False(t, s.PromptOpen())
	s.PrimaryClick(0, 0)
	s.PrimaryClick(pixels, 0)
}

func TestAddImages(t *testing.T) {
	t.Run("loads and selects the first image", func(t *testing.T) {
		s, _ := newTestSession(t, 2)
		assert.Equal(t, 0, s.SelectedIndex())
		assert.Equal(t, 64, s.Images()[0].Layer.Width())
	})

	t.Run("unreadable files are skipped, session continues", func(t *testing.T) {
		dir := t.TempDir()
		good := writeTestImage(t, dir, "ok.png", 10)

		s := New()
		var status []string
		s.On(EventStatus, func(d interface{}) { status = append(status, d.(string)) })
		s.AddImages([]string{filepath.Join(dir, "missing.png"), good})

		require.Len(t, s.Images(), 1)
		assert.Equal(t, good, s.Images()[0].Filename)
		require.NotEmpty(t, status)
		assert.Contains(t, status[0], "skipping")
	})
}

func TestSelectImage(t *testing.T) {
	s, _ := newTestSession(t, 3)
	s.SelectImage(2)
	assert.Equal(t, 2, s.SelectedIndex())
	s.SelectImage(99)
	assert.Equal(t, 2, s.SelectedIndex(), "out of range is ignored")
	s.PrevImage()
	assert.Equal(t, 1, s.SelectedIndex())
	s.NextImage()
	assert.Equal(t, 2, s.SelectedIndex())
	s.NextImage()
	assert.Equal(t, 2, s.SelectedIndex(), "already at the last image")
}

func TestSelectionChangeCancelsCollection(t *testing.T) {
	s, _ := newTestSession(t, 2)

	s.StartTool(measure.KindCalibration)
	require.True(t, s.PromptOpen())
	s.ConfirmCalibrationLength(50, "mm")
	s.PrimaryClick(0, 0)

	s.KeyDown("down")
	require.Equal(t, 1, s.SelectedIndex())

	// The click that would have finished the calibration lands on an idle
	// machine, so the entered length never commits onto the new image.
	s.PrimaryClick(100, 0)

	assert.Empty(t, s.Images()[1].Measurements)
	assert.Equal(t, 0, s.Images()[1].Cal)
	assert.Nil(t, s.Images()[1].PixelSize)
	assert.Empty(t, s.Images()[0].Measurements, "abandoned collection leaves nothing behind")
}

func TestDistanceMeasurementFlow(t *testing.T) {
	s, _ := newTestSession(t, 1)

	s.StartTool(measure.KindDistance)
	s.PrimaryClick(0, 0)
	s.PrimaryClick(3, 4)

	im := s.SelectedImage()
	require.Len(t, im.Measurements, 1)
	assert.Equal(t, 5.0, im.Measurements[0].ValuePixels)
	assert.Equal(t, 5.0, im.Measurements[0].ValueUnits, "uncalibrated values stay in pixels")
	assert.Equal(t, "px", im.DisplayUnit())
}

func TestCalibrationFlow(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		// 100 px known to be 50 mm: 0.5 mm per pixel.
		s, _ := newTestSession(t, 1)
		calibrateSelected(t, s, 100, 50, "mm")

		im := s.SelectedImage()
		require.NotNil(t, im.PixelSize)
		assert.Equal(t, 0.5, im.PixelSize.UnitsPerPixel)
		assert.Equal(t, 50.0, im.PixelSize.Length)
		assert.Equal(t, 100.0, im.PixelSize.LengthPixels)
		assert.Equal(t, 1, im.Cal, "calibration source points at itself")
		assert.Equal(t, "mm", im.DisplayUnit())

		// A subsequent distance scales by the calibration.
		s.StartTool(measure.KindDistance)
		s.PrimaryClick(0, 0)
		s.PrimaryClick(0, 10)
		m := im.Measurements[len(im.Measurements)-1]
		assert.Equal(t, 10.0, m.ValuePixels)
		assert.Equal(t, 5.0, m.ValueUnits)
	})

	t.Run("uncalibrated images adopt the newest calibration", func(t *testing.T) {
		s, _ := newTestSession(t, 2)
		calibrateSelected(t, s, 100, 50, "mm")

		other := s.Images()[1]
		assert.Equal(t, 1, other.Cal)
		require.NotNil(t, other.PixelSize)
		assert.Equal(t, 0.5, other.PixelSize.UnitsPerPixel)
		assert.Equal(t, "mm", other.Unit)
	})

	t.Run("propagation copies values, not references", func(t *testing.T) {
		s, _ := newTestSession(t, 2)
		calibrateSelected(t, s, 100, 50, "mm")
		a, b := s.Images()[0], s.Images()[1]
		require.NotSame(t, a.PixelSize, b.PixelSize)
	})

	t.Run("at most one calibration measurement per image", func(t *testing.T) {
		s, _ := newTestSession(t, 1)
		calibrateSelected(t, s, 100, 50, "mm")
		calibrateSelected(t, s, 200, 50, "mm")

		im := s.SelectedImage()
		count := 0
		for _, m := range im.Measurements {
			if m.Kind == measure.KindCalibration {
				count++
			}
		}
		assert.Equal(t, 1, count)
		assert.Equal(t, 0.25, im.PixelSize.UnitsPerPixel)
	})

	t.Run("degenerate reference is discarded", func(t *testing.T) {
		s, status := newTestSession(t, 1)
		s.StartTool(measure.KindCalibration)
		s.ConfirmCalibrationLength(50, "mm")
		s.PrimaryClick(10, 10)
		s.PrimaryClick(10, 10)

		im := s.SelectedImage()
		assert.Empty(t, im.Measurements)
		assert.Nil(t, im.PixelSize)
		assert.Contains(t, (*status)[len(*status)-1], "discarded")
	})

	t.Run("existing measurements rescale on calibration", func(t *testing.T) {
		s, _ := newTestSession(t, 1)
		s.StartTool(measure.KindDistance)
		s.PrimaryClick(0, 0)
		s.PrimaryClick(0, 100)
		calibrateSelected(t, s, 100, 50, "mm")

		m := s.SelectedImage().Measurements[0]
		assert.Equal(t, measure.KindDistance, m.Kind)
		assert.Equal(t, 50.0, m.ValueUnits)
	})
}

func TestCalibrationPromptModality(t *testing.T) {
	s, _ := newTestSession(t, 1)
	s.StartTool(measure.KindCalibration)
	require.True(t, s.PromptOpen())

	// No mutation may happen while the prompt is open.
	s.PrimaryClick(0, 0)
	s.KeyDown("d")
	assert.Empty(t, s.SelectedImage().Measurements)

	t.Run("non-positive length keeps the prompt open", func(t *testing.T) {
		s.ConfirmCalibrationLength(-5, "mm")
		assert.True(t, s.PromptOpen())
	})

	t.Run("escape cancels the prompt", func(t *testing.T) {
		s.KeyDown("escape")
		assert.False(t, s.PromptOpen())
		s.PrimaryClick(0, 0)
		assert.Empty(t, s.SelectedImage().Measurements, "no tool is collecting after cancel")
	})
}

func TestDeleteCalibrationCascades(t *testing.T) {
	// Scenario: one source image, two dependents. Deleting the source's
	// calibration measurement uncalibrates all three.
	s, _ := newTestSession(t, 3)
	calibrateSelected(t, s, 100, 50, "mm")
	for _, im := range s.Images() {
		require.Equal(t, 1, im.Cal)
	}

	// Delete by clicking the calibration measurement's first point.
	s.SetViewport(geometry.NewRect(0, 0, 64, 48))
	s.StartDelete()
	s.PrimaryClick(0, 0)

	for _, im := range s.Images() {
		assert.Equal(t, 0, im.Cal)
		assert.Nil(t, im.PixelSize)
		assert.Equal(t, "px", im.DisplayUnit())
	}
	assert.Empty(t, s.Images()[0].Measurements)
}

func TestCalibrationEditCascades(t *testing.T) {
	s, _ := newTestSession(t, 2)
	calibrateSelected(t, s, 100, 50, "mm")

	// A dependent measurement on the second image.
	s.SelectImage(1)
	s.StartTool(measure.KindDistance)
	s.PrimaryClick(0, 0)
	s.PrimaryClick(0, 10)
	dep := s.Images()[1].Measurements[0]
	require.Equal(t, 5.0, dep.ValueUnits)

	// Drag the calibration end point from 100 px out to 200 px: the same
	// 50 mm now spans twice the pixels, halving units-per-pixel.
	s.SelectImage(0)
	s.SetViewport(geometry.NewRect(0, 0, 4000, 4000))
	s.StartEdit()
	s.PrimaryDown(100, 0)
	s.PrimaryUp(200, 0)

	require.Equal(t, 0.25, s.Images()[0].PixelSize.UnitsPerPixel)
	assert.Equal(t, 0.25, s.Images()[1].PixelSize.UnitsPerPixel, "dependents rescale live")
	assert.Equal(t, 2.5, dep.ValueUnits, "stored pixel coordinates are untouched")
	assert.Equal(t, 10.0, dep.ValuePixels)
}

func TestApplyCalibration(t *testing.T) {
	t.Run("uncalibrated source fails", func(t *testing.T) {
		s, _ := newTestSession(t, 2)
		err := s.ApplyCalibration(0, []int{1})
		assert.ErrorIs(t, err, ErrNotCalibrated)
		assert.Equal(t, 0, s.Images()[1].Cal, "state unchanged")
	})

	t.Run("copies calibration to targets", func(t *testing.T) {
		s, _ := newTestSession(t, 3)
		calibrateSelected(t, s, 100, 50, "mm")
		// Decouple image 2, then re-apply from the source.
		s.ClearCalibration([]int{2})
		require.Equal(t, 0, s.Images()[2].Cal)

		require.NoError(t, s.ApplyCalibration(0, []int{2}))
		assert.Equal(t, 1, s.Images()[2].Cal)
		assert.Equal(t, 0.5, s.Images()[2].PixelSize.UnitsPerPixel)
	})
}

func TestClearCalibration(t *testing.T) {
	t.Run("clears the listed images", func(t *testing.T) {
		s, _ := newTestSession(t, 2)
		calibrateSelected(t, s, 100, 50, "mm")

		s.ClearCalibration([]int{0, 1})
		for _, im := range s.Images() {
			assert.Equal(t, 0, im.Cal)
			assert.Nil(t, im.PixelSize)
		}
		assert.Empty(t, s.Images()[0].Measurements, "calibration measurement removed")
	})

	t.Run("clearing a source resets its dependents", func(t *testing.T) {
		s, _ := newTestSession(t, 3)
		calibrateSelected(t, s, 100, 50, "mm")
		for _, im := range s.Images() {
			require.Equal(t, 1, im.Cal, "all images inherit the new calibration")
		}

		s.ClearCalibration([]int{0})
		for _, im := range s.Images() {
			assert.Equal(t, 0, im.Cal, "dependent must not point at a cleared source")
			assert.Nil(t, im.PixelSize)
		}
	})

	t.Run("clearing a dependent leaves the source alone", func(t *testing.T) {
		s, _ := newTestSession(t, 2)
		calibrateSelected(t, s, 100, 50, "mm")

		s.ClearCalibration([]int{1})
		assert.Equal(t, 0, s.Images()[1].Cal)
		assert.Equal(t, 1, s.Images()[0].Cal)
		require.NotNil(t, s.Images()[0].PixelSize)
		assert.Equal(t, 0.5, s.Images()[0].PixelSize.UnitsPerPixel)
	})
}

func TestRemoveImages(t *testing.T) {
	t.Run("removing a calibration source uncalibrates dependents", func(t *testing.T) {
		s, _ := newTestSession(t, 3)
		calibrateSelected(t, s, 100, 50, "mm")

		s.RemoveImages([]int{0})
		require.Len(t, s.Images(), 2)
		for _, im := range s.Images() {
			assert.Equal(t, 0, im.Cal)
			assert.Nil(t, im.PixelSize)
		}
	})

	t.Run("surviving calibration references are remapped", func(t *testing.T) {
		s, _ := newTestSession(t, 3)
		s.SelectImage(1)
		calibrateSelected(t, s, 100, 50, "mm")
		require.Equal(t, 2, s.Images()[1].Cal)

		s.RemoveImages([]int{0})
		require.Len(t, s.Images(), 2)
		assert.Equal(t, 1, s.Images()[0].Cal, "source follows its new position")
		assert.Equal(t, 1, s.Images()[1].Cal)
		assert.Equal(t, 0.5, s.Images()[1].PixelSize.UnitsPerPixel)
	})

	t.Run("selection stays valid", func(t *testing.T) {
		s, _ := newTestSession(t, 2)
		s.SelectImage(1)
		s.RemoveImages([]int{1})
		assert.Equal(t, 0, s.SelectedIndex())
		s.RemoveImages([]int{0})
		assert.Equal(t, -1, s.SelectedIndex())
		assert.Nil(t, s.SelectedImage())
	})
}

func TestCopyToolThroughSession(t *testing.T) {
	s, _ := newTestSession(t, 1)
	calibrateSelected(t, s, 100, 50, "mm")
	s.SetViewport(geometry.NewRect(0, 0, 64, 48))

	s.StartCopy()
	s.PrimaryClick(0, 0)   // grab the calibration measurement
	s.PrimaryClick(10, 20) // place the copy

	im := s.SelectedImage()
	require.Len(t, im.Measurements, 2)
	cp := im.Measurements[1]
	assert.Equal(t, measure.KindDistance, cp.Kind, "calibration copies arrive as distances")
	assert.Equal(t, geometry.NewPoint2D(10, 20), cp.Points[0])
	assert.Equal(t, 100.0, cp.ValuePixels)
	assert.Equal(t, 50.0, cp.ValueUnits)
	require.NotNil(t, im.PixelSize, "copying never touches the calibration itself")
}

func TestMoveRollsBackOnDegenerateGeometry(t *testing.T) {
	s, _ := newTestSession(t, 1)
	s.SetViewport(geometry.NewRect(0, 0, 4000, 4000))

	s.StartTool(measure.KindCaliper)
	s.PrimaryClick(0, 0)
	s.PrimaryClick(0, 100)
	s.PrimaryClick(50, 50)
	m := s.SelectedImage().Measurements[0]
	require.Equal(t, 50.0, m.ValuePixels)

	// Drag the second reference point onto the first, collapsing the line.
	s.StartEdit()
	s.PrimaryDown(0, 100)
	s.PrimaryUp(0, 0)

	assert.Equal(t, geometry.NewPoint2D(0, 100), m.Points[1], "move rolled back")
	assert.Equal(t, 50.0, m.ValuePixels)
}

func TestKeyBindings(t *testing.T) {
	s, _ := newTestSession(t, 2)

	test := []struct {
		key  string
		want measure.Kind
	}{
		{"d", measure.KindDistance},
		{"p", measure.KindPolyline},
		{"o", measure.KindCircle},
		{"s", measure.KindSpline},
		{"a", measure.KindAngle},
		{"l", measure.KindCaliper},
	}
	for _, tt := range test {
		t.Run(tt.key, func(t *testing.T) {
			s.KeyDown(tt.key)
			assert.Equal(t, tt.want, s.Machine().ActiveKind())
			s.KeyDown("escape")
		})
	}

	s.KeyDown("c")
	assert.True(t, s.PromptOpen())
	s.KeyDown("escape")

	s.KeyDown("down")
	assert.Equal(t, 1, s.SelectedIndex())
	s.KeyDown("up")
	assert.Equal(t, 0, s.SelectedIndex())
}

func TestOptions(t *testing.T) {
	t.Run("invalid number format is rejected, prior retained", func(t *testing.T) {
		s, status := newTestSession(t, 1)
		prior := s.Options()

		bad := prior
		bad.NumberFormat = "%q"
		err := s.SetOptions(bad)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Equal(t, prior, s.Options())
		assert.NotEmpty(t, *status)
	})

	t.Run("max points of one is rejected", func(t *testing.T) {
		s, _ := newTestSession(t, 1)
		bad := s.Options()
		bad.MaxPoints = 1
		assert.ErrorIs(t, s.SetOptions(bad), ErrInvalidConfiguration)
	})

	t.Run("valid options apply", func(t *testing.T) {
		s, _ := newTestSession(t, 1)
		o := s.Options()
		o.NumberFormat = "%.4f"
		o.MaxPoints = 5
		require.NoError(t, s.SetOptions(o))
		assert.Equal(t, "%.4f", s.Options().NumberFormat)
	})
}

func TestExportTable(t *testing.T) {
	s, _ := newTestSession(t, 2)
	calibrateSelected(t, s, 100, 50, "mm")
	s.SelectImage(1)
	s.StartTool(measure.KindDistance)
	s.PrimaryClick(0, 0)
	s.PrimaryClick(3, 4)

	rows := s.ExportTable()
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].ImageIndex)
	assert.Equal(t, measure.KindCalibration, rows[0].Kind)
	assert.Equal(t, 1, rows[1].ImageIndex)
	assert.Equal(t, 0, rows[1].MeasurementIndex)
	assert.Equal(t, 5.0, rows[1].ValuePixels)
	assert.Equal(t, 2.5, rows[1].ValueUnits)
	assert.Equal(t, "mm", rows[1].Unit)
	assert.Equal(t, s.Images()[1].Filename, rows[1].Filename)
}

func TestExportFullDump(t *testing.T) {
	s, _ := newTestSession(t, 1)
	s.StartTool(measure.KindDistance)
	s.PrimaryClick(1, 1)
	s.PrimaryClick(10, 10)

	rows := s.ExportFullDump()
	require.Len(t, rows, 1)
	require.Len(t, rows[0].Points, 2)
	require.Len(t, rows[0].Intensity, 2)
	// Test images are solid gray 128.
	assert.InDelta(t, 128.0/255.0, rows[0].Intensity[0], 0.01)
}

func TestPortableRoundTrip(t *testing.T) {
	s, _ := newTestSession(t, 2)
	calibrateSelected(t, s, 100, 50, "mm")
	s.SelectImage(1)
	s.StartTool(measure.KindPolyline)
	s.PrimaryClick(0, 0)
	s.PrimaryClick(3, 4)
	s.PrimaryClick(3, 14)
	s.DoubleClick(3, 14)

	f := s.ToPortable()
	require.Len(t, f.Images, 2)

	restored := New()
	restored.FromPortable(f)
	require.Len(t, restored.Images(), 2)

	a, b := restored.Images()[0], restored.Images()[1]
	assert.Equal(t, 1, a.Cal)
	assert.Equal(t, 1, b.Cal)
	require.NotNil(t, b.PixelSize)
	assert.Equal(t, 0.5, b.PixelSize.UnitsPerPixel)

	require.Len(t, b.Measurements, 1)
	m := b.Measurements[0]
	assert.Equal(t, measure.KindPolyline, m.Kind)
	assert.Equal(t, 15.0, m.ValuePixels)
	assert.Equal(t, 7.5, m.ValueUnits, "derived fields recomputed on load")
}

func TestPortableSkipsMissingImages(t *testing.T) {
	s, _ := newTestSession(t, 2)
	calibrateSelected(t, s, 100, 50, "mm")

	f := s.ToPortable()
	require.NoError(t, os.Remove(f.Images[0].Filename))

	restored := New()
	var status []string
	restored.On(EventStatus, func(d interface{}) { status = append(status, d.(string)) })
	restored.FromPortable(f)

	require.Len(t, restored.Images(), 1)
	im := restored.Images()[0]
	assert.Equal(t, 0, im.Cal, "reference into a skipped image resets to uncalibrated")
	assert.Nil(t, im.PixelSize)
	require.NotEmpty(t, status)
	assert.Contains(t, status[0], "skipping")
}
