package session

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"measuretool/internal/measure"
)

// ErrInvalidConfiguration indicates a rejected option value; the previous
// options remain in effect.
var ErrInvalidConfiguration = errors.New("invalid configuration value")

// Options are the user-tunable session settings.
type Options struct {
	// NumberFormat is the fmt verb used for measurement values.
	NumberFormat string
	// MaxPoints caps polyline/spline clicks; 0 means unbounded.
	MaxPoints int
	// AutoEdit transitions into Editing right after each commit.
	AutoEdit bool
	// SplineSamples is the number of points the drawn spline curve is
	// resampled to.
	SplineSamples int
}

// DefaultOptions returns the initial session settings.
func DefaultOptions() Options {
	return Options{
		NumberFormat:  "%.2f",
		MaxPoints:     0,
		SplineSamples: 100,
	}
}

// Validate checks the option values without applying them.
func (o Options) Validate() error {
	rendered := fmt.Sprintf(o.NumberFormat, 1.5)
	if o.NumberFormat == "" || strings.Contains(rendered, "%!") {
		return errors.Wrapf(ErrInvalidConfiguration, "number format %q", o.NumberFormat)
	}
	if o.MaxPoints < 0 || o.MaxPoints == 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "max points %d", o.MaxPoints)
	}
	if o.SplineSamples < 2 {
		return errors.Wrapf(ErrInvalidConfiguration, "spline samples %d", o.SplineSamples)
	}
	return nil
}

// Options returns the active settings.
func (s *Session) Options() Options {
	return s.opts
}

// SetOptions applies new settings. Invalid values are rejected with a status
// message and the prior settings are retained.
func (s *Session) SetOptions(o Options) error {
	if err := o.Validate(); err != nil {
		s.Statusf("%v", err)
		return err
	}
	s.opts = o
	s.machine.SetMaxPoints(o.MaxPoints)
	s.machine.SetAutoEdit(o.AutoEdit)
	s.Emit(EventRedraw, nil)
	return nil
}

// FormatValue renders a measurement value with the image's unit, applying the
// configured number format. Angles render in degrees.
func (s *Session) FormatValue(im *Image, m *measure.Measurement) string {
	if m.Kind.IsAngle() {
		return fmt.Sprintf(s.opts.NumberFormat+"°", m.ValueUnits*180/math.Pi)
	}
	return fmt.Sprintf(s.opts.NumberFormat+" %s", m.ValueUnits, im.DisplayUnit())
}

// FormatPixels renders a raw pixel value with the configured number format.
func (s *Session) FormatPixels(v float64) string {
	return fmt.Sprintf(s.opts.NumberFormat, v)
}
