// Package canvas provides drawing primitives for the measurement overlay.
package canvas

import (
	"image"
	"image/color"
	"math"

	"measuretool/internal/scene"
	"measuretool/pkg/geometry"
)

const (
	markerSize    = 4 // half-extent of a control point marker in pixels
	pathThickness = 2
)

// digitPatterns contains 3x5 pixel patterns for digits 0-9.
// Each digit is represented as 5 rows of 3 bits.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// letterPatterns contains 3x5 pixel patterns for letters A-Z and the symbols
// that appear in value labels.
var letterPatterns = map[rune][5]uint8{
	'A': {0b010, 0b101, 0b111, 0b101, 0b101},
	'B': {0b110, 0b101, 0b110, 0b101, 0b110},
	'C': {0b011, 0b100, 0b100, 0b100, 0b011},
	'D': {0b110, 0b101, 0b101, 0b101, 0b110},
	'E': {0b111, 0b100, 0b110, 0b100, 0b111},
	'F': {0b111, 0b100, 0b110, 0b100, 0b100},
	'G': {0b011, 0b100, 0b101, 0b101, 0b011},
	'H': {0b101, 0b101, 0b111, 0b101, 0b101},
	'I': {0b111, 0b010, 0b010, 0b010, 0b111},
	'J': {0b001, 0b001, 0b001, 0b101, 0b010},
	'K': {0b101, 0b101, 0b110, 0b101, 0b101},
	'L': {0b100, 0b100, 0b100, 0b100, 0b111},
	'M': {0b101, 0b111, 0b101, 0b101, 0b101},
	'N': {0b101, 0b111, 0b111, 0b101, 0b101},
	'O': {0b010, 0b101, 0b101, 0b101, 0b010},
	'P': {0b110, 0b101, 0b110, 0b100, 0b100},
	'Q': {0b010, 0b101, 0b101, 0b111, 0b011},
	'R': {0b110, 0b101, 0b110, 0b101, 0b101},
	'S': {0b011, 0b100, 0b010, 0b001, 0b110},
	'T': {0b111, 0b010, 0b010, 0b010, 0b010},
	'U': {0b101, 0b101, 0b101, 0b101, 0b111},
	'V': {0b101, 0b101, 0b101, 0b101, 0b010},
	'W': {0b101, 0b101, 0b101, 0b111, 0b101},
	'X': {0b101, 0b101, 0b010, 0b101, 0b101},
	'Y': {0b101, 0b101, 0b010, 0b010, 0b010},
	'Z': {0b111, 0b001, 0b010, 0b100, 0b111},
	'+': {0b000, 0b010, 0b111, 0b010, 0b000},
	'-': {0b000, 0b000, 0b111, 0b000, 0b000},
	'.': {0b000, 0b000, 0b000, 0b000, 0b010},
	'°': {0b010, 0b101, 0b010, 0b000, 0b000},
	' ': {0b000, 0b000, 0b000, 0b000, 0b000},
}

// getCharPattern returns the 3x5 pixel pattern for a character.
// Returns a zero pattern for unsupported characters.
func getCharPattern(ch rune) [5]uint8 {
	if ch >= '0' && ch <= '9' {
		return digitPatterns[ch-'0']
	}
	if ch >= 'a' && ch <= 'z' {
		ch = ch - 'a' + 'A'
	}
	if pattern, ok := letterPatterns[ch]; ok {
		return pattern
	}
	return [5]uint8{}
}

// drawInstruction renders one scene instruction onto the output image.
// Instruction coordinates are in image space; everything here scales by the
// current zoom.
func (mc *MeasureCanvas) drawInstruction(output *image.RGBA, ins *scene.Instruction) {
	col := kindColor(ins.Kind)
	if ins.Preview {
		col = previewColor
	}

	if len(ins.Path) >= 2 {
		for i := 0; i+1 < len(ins.Path); i++ {
			p1 := ins.Path[i]
			p2 := ins.Path[i+1]
			mc.drawLine(output,
				int(p1.X*mc.zoom), int(p1.Y*mc.zoom),
				int(p2.X*mc.zoom), int(p2.Y*mc.zoom),
				col, pathThickness)
		}
	}

	for i, p := range ins.Markers {
		markerCol := col
		if i == ins.HoverIndex {
			markerCol = hoverColor
		}
		mc.drawMarker(output, p, markerCol)
	}

	if ins.Label != "" {
		mc.drawAngledLabel(output, ins.Label, ins.LabelPos, ins.LabelAngle, col)
	}
}

// drawMarker draws a control point as a small open square with a center dot.
func (mc *MeasureCanvas) drawMarker(output *image.RGBA, p geometry.Point2D, col color.RGBA) {
	cx := int(p.X * mc.zoom)
	cy := int(p.Y * mc.zoom)
	bounds := output.Bounds()

	set := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			output.Set(x, y, col)
		}
	}

	for d := -markerSize; d <= markerSize; d++ {
		set(cx+d, cy-markerSize)
		set(cx+d, cy+markerSize)
		set(cx-markerSize, cy+d)
		set(cx+markerSize, cy+d)
	}
	set(cx, cy)
}

// drawLine draws a line between two points using Bresenham's algorithm.
func (mc *MeasureCanvas) drawLine(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	bounds := output.Bounds()

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy

	for {
		for t := -thickness / 2; t <= thickness/2; t++ {
			for s := -thickness / 2; s <= thickness/2; s++ {
				px, py := x1+s, y1+t
				if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
					output.Set(px, py, col)
				}
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawAngledLabel draws a value label rotated about its center so it reads
// along a measurement segment. The angle is in degrees, already folded so
// text never renders upside down.
func (mc *MeasureCanvas) drawAngledLabel(output *image.RGBA, label string, pos geometry.Point2D, angleDeg float64, col color.RGBA) {
	scale := int(mc.zoom * 2)
	if scale < 2 {
		scale = 2
	}
	if scale > 6 {
		scale = 6
	}

	charWidth := 3 * scale
	charHeight := 5 * scale
	spacing := scale
	runes := []rune(label)
	labelWidth := len(runes)*charWidth + (len(runes)-1)*spacing

	centerX := pos.X * mc.zoom
	// Lift the label a few pixels off the segment it annotates.
	centerY := pos.Y*mc.zoom - float64(charHeight)

	rad := angleDeg * math.Pi / 180
	cosA := math.Cos(rad)
	sinA := math.Sin(rad)

	bounds := output.Bounds()
	setRotated := func(lx, ly float64) {
		// Rotate the label-local offset about the label center.
		px := int(centerX + lx*cosA - ly*sinA)
		py := int(centerY + lx*sinA + ly*cosA)
		if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
			output.Set(px, py, col)
		}
	}

	startX := -float64(labelWidth) / 2
	startY := -float64(charHeight) / 2

	for i, ch := range runes {
		pattern := getCharPattern(ch)
		charX := startX + float64(i*(charWidth+spacing))

		for row := 0; row < 5; row++ {
			for c := 0; c < 3; c++ {
				if (pattern[row] & (1 << (2 - c))) == 0 {
					continue
				}
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						setRotated(charX+float64(c*scale+dx), startY+float64(row*scale+dy))
					}
				}
			}
		}
	}
}
