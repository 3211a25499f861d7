// Package pipeline renders a background: fill, tint, grain, tone, blur,
// vignette, overlays and, for exports, mock widgets.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/rook-computer/bgenerator/internal/encode"
	"github.com/rook-computer/bgenerator/internal/noise"
	"github.com/rook-computer/bgenerator/internal/overlay"
	"github.com/rook-computer/bgenerator/internal/raster"
	"github.com/rook-computer/bgenerator/internal/texture"
	"github.com/rook-computer/bgenerator/internal/widget"
)

// ErrNoSurface is returned when no buffer could be allocated for a run.
var ErrNoSurface = errors.New("pipeline: no drawing surface")

// Mode selects whether widgets are rasterized into the buffer.
type Mode int

const (
	// Preview leaves widgets to the live display layer.
	Preview Mode = iota
	// Export draws widgets into the buffer.
	Export
)

func (m Mode) String() string {
	if m == Export {
		return "export"
	}
	return "preview"
}

// Request is everything one run consumes.
type Request struct {
	Config   texture.Config
	Overlays []overlay.Overlay
	Widgets  []widget.Widget
}

// Pipeline runs the stages. It keeps no per-run state, so one Pipeline may
// serve concurrent runs; each run owns its own buffer.
type Pipeline struct {
	widgets *widget.Rasterizer
}

// New returns a pipeline that draws widgets with w in Export mode.
func New(w *widget.Rasterizer) *Pipeline {
	return &Pipeline{widgets: w}
}

// Render executes every stage on a freshly allocated buffer. The config is
// validated first; nothing is allocated for an invalid one.
func (p *Pipeline) Render(req Request, src noise.Source, mode Mode) (*raster.Buffer, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	buf, err := raster.New(cfg.CanvasSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSurface, err)
	}

	Fill(buf, cfg.BaseColor)
	Tint(buf, cfg.TintColor, cfg.TintStrength)
	Grain(buf, noise.Sampler{Source: src, Kind: cfg.NoiseType, Intensity: cfg.GrainIntensity}, cfg.GrainSize)
	Tone(buf, cfg.Curve())
	Blur(buf, cfg.BlurRadius)
	Vignette(buf, cfg.VignetteStrength)
	overlay.Composite(buf.Image(), req.Overlays)
	if mode == Export && p.widgets != nil {
		p.widgets.Draw(buf.Image(), req.Widgets)
	}
	return buf, nil
}

// Export renders with widgets and encodes in the configured format.
func (p *Pipeline) Export(req Request, src noise.Source) (encode.Result, error) {
	buf, err := p.Render(req, src, Export)
	if err != nil {
		return encode.Result{}, err
	}
	return encode.Encode(buf.Image(), req.Config.ExportFormat)
}
