package web

import (
	"errors"

	"github.com/rook-computer/bgenerator/internal/encode"
	"github.com/rook-computer/bgenerator/internal/imageio"
	"github.com/rook-computer/bgenerator/internal/noise"
	"github.com/rook-computer/bgenerator/internal/pipeline"
	"github.com/rook-computer/bgenerator/internal/raster"
	"github.com/rook-computer/bgenerator/internal/state"
	"github.com/rook-computer/bgenerator/internal/texture"
)

// sysLogger matches the logging shape used across the app.
// It is intentionally tiny so callers can pass existing loggers without adapters.
type sysLogger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

// Previews exposes the published preview.
//
// The concrete implementation is the app's Regenerator.
type Previews interface {
	Latest() *raster.Buffer
	Trigger()
}

// Exporter renders and encodes one export.
type Exporter interface {
	Export(req pipeline.Request, src noise.Source) (encode.Result, error)
}

type APIV1Deps struct {
	Store    *state.Store
	Presets  *texture.Catalog
	Previews Previews
	Exporter Exporter
	Logger   sysLogger

	// MaxUploadBytes bounds overlay and analyze bodies.
	MaxUploadBytes int64
	// MaxImagePixels bounds the declared width×height of uploaded images.
	MaxImagePixels int
	// PublicURL is the externally reachable base used in share links.
	// When empty the request's host is used.
	PublicURL string
	// Seed makes exports reproducible when non-zero.
	Seed uint64
}

func (d APIV1Deps) withDefaults() APIV1Deps {
	out := d
	if out.Store == nil {
		out.Store = state.NewStore(texture.DefaultConfig())
	}
	if out.Presets == nil {
		if c, err := texture.Builtin(); err == nil {
			out.Presets = c
		}
	}
	if out.Previews == nil {
		out.Previews = NoopPreviews{}
	}
	if out.Exporter == nil {
		out.Exporter = pipeline.New(nil)
	}
	if out.Logger == nil {
		out.Logger = noopLogger{}
	}
	if out.MaxUploadBytes <= 0 {
		out.MaxUploadBytes = 20 << 20
	}
	return out
}

func (d APIV1Deps) decoder() imageio.Decoder {
	return imageio.Decoder{MaxPixels: d.MaxImagePixels}
}

func (d APIV1Deps) noiseSource() noise.Source {
	if d.Seed != 0 {
		return noise.NewSeeded(d.Seed)
	}
	return noise.NewEntropy()
}

// NoopPreviews never has a preview.
type NoopPreviews struct{}

func (NoopPreviews) Latest() *raster.Buffer { return nil }
func (NoopPreviews) Trigger()               {}

var errNoPreview = errors.New("no preview rendered yet")

type noopLogger struct{}

func (noopLogger) Infof(string, string, ...interface{})  {}
func (noopLogger) Errorf(string, string, ...interface{}) {}
