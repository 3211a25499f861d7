// Package tone implements the brightness / contrast / saturation curve.
package tone

import (
	"errors"
	"fmt"
	"math"
)

// Range of each adjustment accepted by Validate.
const (
	Min = -50.0
	Max = 50.0
)

// ErrOutOfRange is returned for adjustments outside [Min, Max] or non-finite values.
var ErrOutOfRange = errors.New("tone: adjustment out of range")

// Curve is a per-pixel tone transform. The zero value is the identity.
type Curve struct {
	Brightness float64
	Contrast   float64
	Saturation float64
}

// IsIdentity reports whether applying the curve would change nothing, in
// which case the tone pass is skipped entirely.
func (c Curve) IsIdentity() bool {
	return c.Brightness == 0 && c.Contrast == 0 && c.Saturation == 0
}

// Validate rejects values that could produce NaN or overflow, including the
// contrast singularity at 259.
func (c Curve) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"brightness", c.Brightness},
		{"contrast", c.Contrast},
		{"saturation", c.Saturation},
	} {
		if math.IsNaN(f.v) || f.v < Min || f.v > Max {
			errs = append(errs, fmt.Errorf("%w: %s=%v", ErrOutOfRange, f.name, f.v))
		}
	}
	return errors.Join(errs...)
}

// Prepared holds the per-curve constants so the per-pixel loop stays cheap.
type Prepared struct {
	brightness     float64
	contrastFactor float64
	satFactor      float64
	useBrightness  bool
	useContrast    bool
	useSaturation  bool
}

// Prepare precomputes the constants of c.
func (c Curve) Prepare() Prepared {
	return Prepared{
		brightness:     c.Brightness * 2.55,
		contrastFactor: (259 * (c.Contrast + 255)) / (255 * (259 - c.Contrast)),
		satFactor:      1 + c.Saturation/100,
		useBrightness:  c.Brightness != 0,
		useContrast:    c.Contrast != 0,
		useSaturation:  c.Saturation != 0,
	}
}

// Apply transforms one pixel. The result is not clamped.
func (p Prepared) Apply(r, g, b float64) (float64, float64, float64) {
	if p.useBrightness {
		r += p.brightness
		g += p.brightness
		b += p.brightness
	}
	if p.useContrast {
		r = p.contrastFactor*(r-128) + 128
		g = p.contrastFactor*(g-128) + 128
		b = p.contrastFactor*(b-128) + 128
	}
	if p.useSaturation {
		gray := 0.2989*r + 0.587*g + 0.114*b
		r = gray + (r-gray)*p.satFactor
		g = gray + (g-gray)*p.satFactor
		b = gray + (b-gray)*p.satFactor
	}
	return r, g, b
}
