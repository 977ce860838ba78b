package session

import (
	"measuretool/internal/measure"
)

// calibrate installs a freshly finalized calibration measurement: computes
// the pixel size from the user-entered real length, makes the owning image
// its own calibration source, and propagates the result to the selected image
// and to every still-uncalibrated image.
//
// An image keeps at most one calibration measurement; older ones are removed.
// It reports false when the reference segment was degenerate and the
// measurement has been discarded.
func (s *Session) calibrate(index int, m *measure.Measurement, realLength float64, unit string) bool {
	im := s.images[index]

	r := m.ValuePixels
	if r == 0 {
		// Both reference clicks landed on the same pixel.
		s.removeMeasurement(im, m)
		s.Statusf("calibration discarded: reference points coincide")
		return false
	}

	// Replace any previous calibration measurement on this image.
	for _, old := range im.Measurements {
		if old.Kind == measure.KindCalibration && old.ID != m.ID {
			s.removeMeasurement(im, old)
		}
	}

	ps := PixelSize{
		UnitsPerPixel: realLength / r,
		Length:        realLength,
		LengthPixels:  r,
	}
	im.Cal = index + 1
	im.PixelSize = &ps
	im.Unit = unit

	// Uncalibrated images adopt the newest calibration, as does the
	// currently selected image.
	for i, other := range s.images {
		if i == index {
			continue
		}
		if other.Cal == 0 || i == s.selected {
			s.applyPixelSize(other, im.Cal, ps, unit)
		}
	}
	s.recomputeDependents(im.Cal)

	s.Emit(EventCalibrationChanged, index)
	s.Statusf("calibrated: %g %s = %s px (%g %s/px)",
		realLength, unit, s.FormatPixels(r), ps.UnitsPerPixel, unit)
	return true
}

// ApplyCalibration copies the source image's calibration to each target
// image. It fails with ErrNotCalibrated when the source has none.
func (s *Session) ApplyCalibration(source int, targets []int) error {
	if source < 0 || source >= len(s.images) {
		return ErrNotCalibrated
	}
	src := s.images[source]
	if !src.Calibrated() {
		s.Statusf("image %d is not calibrated", source+1)
		return ErrNotCalibrated
	}
	for _, t := range targets {
		if t < 0 || t >= len(s.images) || t == source {
			continue
		}
		s.applyPixelSize(s.images[t], src.Cal, *src.PixelSize, src.Unit)
	}
	s.Emit(EventCalibrationChanged, source)
	s.Emit(EventRedraw, nil)
	return nil
}

// ClearCalibration resets the given images to uncalibrated and removes their
// calibration measurements. Clearing a calibration source orphans its
// dependents, so those reset too.
func (s *Session) ClearCalibration(indices []int) {
	for _, i := range indices {
		if i < 0 || i >= len(s.images) {
			continue
		}
		im := s.images[i]
		for j := len(im.Measurements) - 1; j >= 0; j-- {
			if im.Measurements[j].Kind == measure.KindCalibration {
				im.Measurements = append(im.Measurements[:j], im.Measurements[j+1:]...)
			}
		}
		if im.Cal == i+1 {
			for _, other := range s.images {
				if other != im && other.Cal == im.Cal {
					s.decalibrate(other)
				}
			}
		}
		s.decalibrate(im)
	}
	s.Emit(EventCalibrationChanged, -1)
	s.Emit(EventRedraw, nil)
}

// onCalibrationEdited re-derives the pixel size after the calibration
// measurement's points were dragged and rescales every dependent image's
// displayed values. Stored pixel coordinates are untouched.
func (s *Session) onCalibrationEdited(index int, m *measure.Measurement) {
	im := s.images[index]
	if im.PixelSize == nil {
		return
	}

	r := m.ValuePixels
	if r == 0 {
		s.Statusf("calibration unchanged: reference points coincide")
		return
	}

	ps := PixelSize{
		UnitsPerPixel: im.PixelSize.Length / r,
		Length:        im.PixelSize.Length,
		LengthPixels:  r,
	}
	im.PixelSize = &ps

	for _, other := range s.images {
		if other.Cal == im.Cal && other != im {
			size := ps
			other.PixelSize = &size
			other.Unit = im.Unit
		}
	}
	s.recomputeDependents(im.Cal)
	s.Emit(EventCalibrationChanged, index)
}

// clearCalibrationFrom uncalibrates every image inheriting from the given
// source image, the source included. Called when the source's calibration
// measurement is deleted.
func (s *Session) clearCalibrationFrom(index int) {
	cal := index + 1
	for _, im := range s.images {
		if im.Cal == cal {
			s.decalibrate(im)
		}
	}
	s.Emit(EventCalibrationChanged, index)
}

// decalibrate resets one image to uncalibrated and refreshes its values.
func (s *Session) decalibrate(im *Image) {
	im.Cal = 0
	im.PixelSize = nil
	im.Unit = ""
	s.recomputeImage(im)
}

// applyPixelSize copies a calibration value onto an image (value copy, not a
// shared reference) and refreshes its measurement values.
func (s *Session) applyPixelSize(im *Image, cal int, ps PixelSize, unit string) {
	size := ps
	im.Cal = cal
	im.PixelSize = &size
	im.Unit = unit
	s.recomputeImage(im)
}

// recomputeDependents refreshes the unit values of every image bound to the
// given 1-based calibration source.
func (s *Session) recomputeDependents(cal int) {
	for _, im := range s.images {
		if im.Cal == cal {
			s.recomputeImage(im)
		}
	}
}

// recomputeImage re-derives every measurement value on the image.
func (s *Session) recomputeImage(im *Image) {
	upp := im.UnitsPerPixel()
	for _, m := range im.Measurements {
		// The points were valid when the measurement was created or
		// last edited, so recompute cannot fail here.
		_ = m.Recompute(upp)
	}
}

// removeMeasurement drops one measurement from an image by identity.
func (s *Session) removeMeasurement(im *Image, m *measure.Measurement) {
	for i, cur := range im.Measurements {
		if cur.ID == m.ID {
			im.Measurements = append(im.Measurements[:i], im.Measurements[i+1:]...)
			return
		}
	}
}
