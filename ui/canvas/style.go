// Package canvas provides the overlay color scheme.
package canvas

import (
	"image/color"

	"measuretool/internal/measure"
	"measuretool/pkg/colorutil"
)

// Per-kind overlay colors. Calibration stands out in yellow; everything else
// gets a stable color so measurements are tellable apart at a glance.
var kindColors = map[measure.Kind]color.RGBA{
	measure.KindCalibration: colorutil.Yellow,
	measure.KindDistance:    colorutil.Cyan,
	measure.KindCaliper:     colorutil.Green,
	measure.KindPolyline:    colorutil.Magenta,
	measure.KindSpline:      colorutil.Orange,
	measure.KindCircle:      colorutil.Cyan,
	measure.KindAngle:       colorutil.Green,
}

var (
	// previewColor marks the in-flight placement.
	previewColor = colorutil.White
	// hoverColor highlights the grab target in edit/delete/copy mode.
	hoverColor = colorutil.White
)

func kindColor(kind measure.Kind) color.RGBA {
	if col, ok := kindColors[kind]; ok {
		return col
	}
	return colorutil.Dim(colorutil.White, 0.2)
}
