package session

import (
	"measuretool/internal/measure"
	"measuretool/pkg/geometry"
)

// TableRow is one line of the measurement overview export.
type TableRow struct {
	ImageIndex       int
	MeasurementIndex int
	Kind             measure.Kind
	ValuePixels      float64
	ValueUnits       float64
	Unit             string
	Filename         string
}

// DumpRow extends a table row with per-vertex coordinates and sampled image
// intensity for the verbose export.
type DumpRow struct {
	TableRow
	Points    []geometry.Point2D
	Intensity []float64
}

// ExportTable returns every measurement of every image in display order, one
// row per measurement.
func (s *Session) ExportTable() []TableRow {
	var rows []TableRow
	for i, im := range s.images {
		for j, m := range im.Measurements {
			rows = append(rows, TableRow{
				ImageIndex:       i,
				MeasurementIndex: j,
				Kind:             m.Kind,
				ValuePixels:      m.ValuePixels,
				ValueUnits:       m.ValueUnits,
				Unit:             im.DisplayUnit(),
				Filename:         im.Filename,
			})
		}
	}
	return rows
}

// ExportFullDump returns the verbose export: every row of ExportTable plus
// the vertex coordinates and the image brightness sampled at each vertex.
// Sampling happens here, at export time; intensities are not kept current
// during editing.
func (s *Session) ExportFullDump() []DumpRow {
	var rows []DumpRow
	for i, im := range s.images {
		for j, m := range im.Measurements {
			intensity := make([]float64, len(m.Points))
			if im.Layer != nil {
				for k, p := range m.Points {
					intensity[k] = im.Layer.SampleIntensity(p)
				}
			}
			m.Intensity = intensity
			rows = append(rows, DumpRow{
				TableRow: TableRow{
					ImageIndex:       i,
					MeasurementIndex: j,
					Kind:             m.Kind,
					ValuePixels:      m.ValuePixels,
					ValueUnits:       m.ValueUnits,
					Unit:             im.DisplayUnit(),
					Filename:         im.Filename,
				},
				Points:    append([]geometry.Point2D(nil), m.Points...),
				Intensity: intensity,
			})
		}
	}
	return rows
}
