package session

import (
	img "measuretool/internal/image"
	"measuretool/internal/measure"
	"measuretool/internal/project"
)

// ToPortable converts the session into the persistable structure.
func (s *Session) ToPortable() *project.File {
	f := project.New()
	for _, im := range s.images {
		rec := project.ImageRecord{
			Filename: im.Filename,
			Unit:     im.Unit,
			Cal:      im.Cal,
		}
		if im.PixelSize != nil {
			rec.PixelSize = []float64{
				im.PixelSize.UnitsPerPixel,
				im.PixelSize.Length,
				im.PixelSize.LengthPixels,
			}
		}
		for _, m := range im.Measurements {
			rec.Measurements = append(rec.Measurements, project.MeasurementRecord{
				Kind:        m.Kind.String(),
				Points:      m.Points,
				ValuePixels: m.ValuePixels,
			})
		}
		f.Images = append(f.Images, rec)
	}
	return f
}

// FromPortable rebuilds the session from a persisted structure. Images whose
// file cannot be resolved are skipped with a warning, their measurements are
// dropped, and calibration references into skipped images reset to
// uncalibrated. Derived measurement values are recomputed rather than
// trusted.
func (s *Session) FromPortable(f *project.File) {
	s.machine.Cancel()
	s.images = nil
	s.selected = -1

	// First pass: load what resolves, remembering the index mapping so
	// surviving calibration references can be remapped afterwards.
	remap := make(map[int]int, len(f.Images)) // old 1-based -> new 1-based
	for oldIdx, rec := range f.Images {
		layer, err := img.Load(rec.Filename)
		if err != nil {
			s.Statusf("skipping %s: %v", rec.Filename, err)
			continue
		}

		im := &Image{Filename: rec.Filename, Layer: layer}
		if len(rec.PixelSize) == 3 && rec.Cal != 0 {
			im.PixelSize = &PixelSize{
				UnitsPerPixel: rec.PixelSize[0],
				Length:        rec.PixelSize[1],
				LengthPixels:  rec.PixelSize[2],
			}
			im.Unit = rec.Unit
			im.Cal = rec.Cal
		}

		for _, mr := range rec.Measurements {
			kind, err := measure.ParseKind(mr.Kind)
			if err != nil {
				s.Statusf("skipping measurement on %s: %v", rec.Filename, err)
				continue
			}
			m, err := measure.New(kind, mr.Points)
			if err != nil {
				s.Statusf("skipping %s on %s: %v", kind, rec.Filename, err)
				continue
			}
			im.Measurements = append(im.Measurements, m)
		}

		s.addLoadedImage(im)
		remap[oldIdx+1] = len(s.images)
	}

	// Second pass: remap calibration sources and recompute unit values.
	for _, im := range s.images {
		if im.Cal != 0 {
			newCal, ok := remap[im.Cal]
			if !ok {
				s.decalibrate(im)
				continue
			}
			im.Cal = newCal
		}
		s.recomputeImage(im)
	}

	if len(s.images) > 0 {
		s.SelectImage(0)
	}
	s.Emit(EventRedraw, nil)
}
