// Package image provides image loading and pixel sampling for measurements.
package image

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"measuretool/pkg/geometry"
)

// ErrUnavailable indicates an image file that could not be opened or decoded.
// The session skips such images and continues.
var ErrUnavailable = errors.New("image unavailable")

// Layer holds one decoded image and its source path.
type Layer struct {
	Path  string
	Image image.Image
}

// Load decodes the image at path. jpeg, png, tiff, and bmp are supported.
func Load(path string) (*Layer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "open %s: %v", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "decode %s: %v", path, err)
	}

	return &Layer{Path: path, Image: img}, nil
}

// Width returns the image width in pixels.
func (l *Layer) Width() int {
	if l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (l *Layer) Height() int {
	if l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dy()
}

// Bounds returns the image extent as a geometry rectangle at the origin.
func (l *Layer) Bounds() geometry.Rect {
	return geometry.NewRect(0, 0, float64(l.Width()), float64(l.Height()))
}

// PixelAt returns the color at the given pixel, or black outside the image.
func (l *Layer) PixelAt(x, y int) color.Color {
	if l.Image == nil {
		return color.Black
	}
	b := l.Image.Bounds()
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return color.Black
	}
	return l.Image.At(x, y)
}

// SampleIntensity returns the brightness at an image-space point as the mean
// of the color channels, normalized to 0..1. Points outside the image sample
// as 0.
func (l *Layer) SampleIntensity(p geometry.Point2D) float64 {
	c := l.PixelAt(int(p.X+0.5), int(p.Y+0.5))
	r, g, b, _ := c.RGBA()
	channels := []float64{
		float64(r) / 0xffff,
		float64(g) / 0xffff,
		float64(b) / 0xffff,
	}
	return stat.Mean(channels, nil)
}
