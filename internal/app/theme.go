package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// MeasureTheme tunes the default theme for long measurement sessions: a
// muted blue primary and wider scrollbars that are easier to grab while the
// pointer is busy placing points.
type MeasureTheme struct{}

var _ fyne.Theme = (*MeasureTheme)(nil)

func (t *MeasureTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 0x1E, G: 0x5A, B: 0x8C, A: 0xFF}
	case theme.ColorNameSelection:
		return color.NRGBA{R: 0xFF, G: 0xD5, B: 0x00, A: 0x80}
	case theme.ColorNameScrollBar:
		return color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *MeasureTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *MeasureTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *MeasureTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameScrollBar:
		return 16
	case theme.SizeNameScrollBarSmall:
		return 12
	default:
		return theme.DefaultTheme().Size(name)
	}
}
