// Package texture defines the generation parameters, their ranges and the
// preset catalog.
package texture

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/rook-computer/bgenerator/internal/noise"
	"github.com/rook-computer/bgenerator/internal/tone"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("texture: invalid config")

// Format is an export encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpg"
	WebP Format = "webp"
)

// ParseFormat accepts the canonical names plus "jpeg".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	default:
		return "", fmt.Errorf("texture: unknown export format %q", s)
	}
}

// CanvasSizes lists the supported square edge lengths.
var CanvasSizes = []int{1024, 2048, 4096}

// Ranges of the numeric fields.
const (
	MaxGrainIntensity = 50.0
	MinGrainSize      = 1
	MaxGrainSize      = 5
	MaxBlurRadius     = 5.0
)

// Config is the complete set of generation parameters.
type Config struct {
	GrainIntensity   float64    `json:"grainIntensity" yaml:"grain"`
	GrainSize        int        `json:"grainSize" yaml:"grainSize"`
	NoiseType        noise.Kind `json:"noiseType" yaml:"noiseType"`
	VignetteStrength float64    `json:"vignetteStrength" yaml:"vignette"`
	BaseColor        Color      `json:"baseColor" yaml:"base"`
	TintColor        Color      `json:"tintColor" yaml:"tint"`
	TintStrength     float64    `json:"tintStrength" yaml:"tintStrength"`
	BlurRadius       float64    `json:"blurRadius" yaml:"blur"`
	Brightness       float64    `json:"brightness" yaml:"brightness"`
	Contrast         float64    `json:"contrast" yaml:"contrast"`
	Saturation       float64    `json:"saturation" yaml:"saturation"`
	CanvasSize       int        `json:"canvasSize" yaml:"canvasSize"`
	ExportFormat     Format     `json:"exportFormat" yaml:"exportFormat"`
}

// DefaultConfig is the session's starting point: the Paper look at 2048px.
func DefaultConfig() Config {
	return Config{
		GrainIntensity:   15,
		GrainSize:        1,
		NoiseType:        noise.Uniform,
		VignetteStrength: 0.3,
		BaseColor:        MustHex("#FAFAFA"),
		TintColor:        MustHex("#F0F0F0"),
		TintStrength:     0.2,
		CanvasSize:       2048,
		ExportFormat:     PNG,
	}
}

// Curve returns the tone adjustments of the config.
func (c Config) Curve() tone.Curve {
	return tone.Curve{Brightness: c.Brightness, Contrast: c.Contrast, Saturation: c.Saturation}
}

// Clamp forces every ranged field into its declared range. It is applied
// wherever a config is mutated, so stored configs are always valid.
// Unknown enum values fall back to the defaults and the canvas size snaps to
// the nearest supported size.
func (c Config) Clamp() Config {
	c.GrainIntensity = clampFloat(c.GrainIntensity, 0, MaxGrainIntensity)
	c.GrainSize = min(max(c.GrainSize, MinGrainSize), MaxGrainSize)
	c.VignetteStrength = clampFloat(c.VignetteStrength, 0, 1)
	c.TintStrength = clampFloat(c.TintStrength, 0, 1)
	c.BlurRadius = clampFloat(c.BlurRadius, 0, MaxBlurRadius)
	c.Brightness = clampFloat(c.Brightness, tone.Min, tone.Max)
	c.Contrast = clampFloat(c.Contrast, tone.Min, tone.Max)
	c.Saturation = clampFloat(c.Saturation, tone.Min, tone.Max)
	if !c.NoiseType.Valid() {
		c.NoiseType = noise.Uniform
	}
	switch c.ExportFormat {
	case PNG, JPEG, WebP:
	default:
		c.ExportFormat = PNG
	}
	c.CanvasSize = nearestCanvasSize(c.CanvasSize)
	return c
}

// Validate reports every field outside its range. The pipeline refuses to run
// an invalid config, so no stage ever sees NaN or the contrast singularity.
func (c Config) Validate() error {
	var errs []error
	check := func(name string, v, lo, hi float64) {
		if math.IsNaN(v) || v < lo || v > hi {
			errs = append(errs, fmt.Errorf("%s=%v outside [%v, %v]", name, v, lo, hi))
		}
	}
	check("grainIntensity", c.GrainIntensity, 0, MaxGrainIntensity)
	check("vignetteStrength", c.VignetteStrength, 0, 1)
	check("tintStrength", c.TintStrength, 0, 1)
	check("blurRadius", c.BlurRadius, 0, MaxBlurRadius)
	if c.GrainSize < MinGrainSize || c.GrainSize > MaxGrainSize {
		errs = append(errs, fmt.Errorf("grainSize=%d outside [%d, %d]", c.GrainSize, MinGrainSize, MaxGrainSize))
	}
	if err := c.Curve().Validate(); err != nil {
		errs = append(errs, err)
	}
	if !c.NoiseType.Valid() {
		errs = append(errs, fmt.Errorf("noiseType=%q unsupported", c.NoiseType))
	}
	if !slices.Contains(CanvasSizes, c.CanvasSize) {
		errs = append(errs, fmt.Errorf("canvasSize=%d unsupported", c.CanvasSize))
	}
	switch c.ExportFormat {
	case PNG, JPEG, WebP:
	default:
		errs = append(errs, fmt.Errorf("exportFormat=%q unsupported", c.ExportFormat))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func nearestCanvasSize(size int) int {
	best := CanvasSizes[0]
	for _, s := range CanvasSizes {
		if abs(size-s) < abs(size-best) {
			best = s
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
