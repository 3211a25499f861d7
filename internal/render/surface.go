package render

import (
	"context"

	"github.com/rook-computer/bgenerator/internal/raster"
	"github.com/rook-computer/bgenerator/internal/widget"
)

// Frame is one thing to show: the published preview, the widgets the live
// layer draws over it and an optional share link.
type Frame struct {
	Preview  *raster.Buffer
	Widgets  []widget.Widget
	ShareURL string
}

// Surface is a live display for previews.
type Surface interface {
	Start(ctx context.Context) error
	Stop() error
	Present(frame Frame) error
}

// NoopSurface discards frames; used when no display is configured.
type NoopSurface struct{}

func (NoopSurface) Start(ctx context.Context) error { return nil }
func (NoopSurface) Stop() error                     { return nil }
func (NoopSurface) Present(Frame) error             { return nil }
