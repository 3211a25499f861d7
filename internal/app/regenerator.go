package app

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rook-computer/bgenerator/internal/metrics"
	"github.com/rook-computer/bgenerator/internal/noise"
	"github.com/rook-computer/bgenerator/internal/pipeline"
	"github.com/rook-computer/bgenerator/internal/raster"
	"github.com/rook-computer/bgenerator/internal/render"
	"github.com/rook-computer/bgenerator/internal/state"
	"github.com/rook-computer/bgenerator/internal/texture"
)

// Renderer produces one buffer per call.
type Renderer interface {
	Render(req pipeline.Request, src noise.Source, mode pipeline.Mode) (*raster.Buffer, error)
}

// Regenerator keeps the published preview in step with the store. Change
// bursts are debounced into one run; runs happen one at a time and a result
// is only published when it is newer than the one already shown.
type Regenerator struct {
	Store    *state.Store
	Renderer Renderer
	Surface  render.Surface
	Logger   Logger
	Debounce time.Duration
	// Seed makes every run reproducible when non-zero.
	Seed uint64
	// ShareURL, when set, builds the link shown next to the preview.
	ShareURL func(texture.Config) string

	runMu sync.Mutex // serializes runs

	mu        sync.RWMutex
	latest    *raster.Buffer
	published uint64
	nextGen   uint64
	rendered  uint64 // store revision of the latest run
	presented uint64 // widget revision last sent to the surface
	primed    bool

	forceCh chan struct{}
	once    sync.Once
}

func (r *Regenerator) init() {
	r.once.Do(func() {
		r.forceCh = make(chan struct{}, 1)
		if r.Logger == nil {
			r.Logger = NoopLogger{}
		}
		if r.Surface == nil {
			r.Surface = render.NoopSurface{}
		}
	})
}

// Latest returns the published preview, or nil before the first run.
func (r *Regenerator) Latest() *raster.Buffer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Trigger asks for a fresh run even when nothing changed, so the grain is
// redrawn. It never blocks.
func (r *Regenerator) Trigger() {
	r.init()
	select {
	case r.forceCh <- struct{}{}:
	default:
	}
}

// Run regenerates once at start and then after every debounced change
// until ctx is done.
func (r *Regenerator) Run(ctx context.Context) {
	r.init()
	r.Regenerate(true)

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending bool
		force   bool
	)
	arm := func() {
		if timer == nil {
			timer = time.NewTimer(r.Debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.Debounce)
		}
		timerC = timer.C
		pending = true
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.Store.Changes():
			arm()
		case <-r.forceCh:
			force = true
			arm()
		case <-timerC:
			timerC = nil
			if pending {
				pending = false
				r.Regenerate(force)
				force = false
			}
		}
	}
}

// Regenerate renders the current session when its inputs changed since the
// last run, or unconditionally when force is set. Widget-only changes just
// re-present the existing preview.
func (r *Regenerator) Regenerate(force bool) {
	r.init()
	r.runMu.Lock()
	defer r.runMu.Unlock()

	snap := r.Store.Snapshot()
	r.mu.RLock()
	stale := !r.primed || force || snap.Revision != r.rendered
	widgetsChanged := snap.WidgetRevision != r.presented
	r.mu.RUnlock()

	if !stale {
		if widgetsChanged {
			r.present(snap)
		}
		return
	}

	r.mu.Lock()
	r.nextGen++
	gen := r.nextGen
	r.primed = true
	r.rendered = snap.Revision
	r.mu.Unlock()

	r.Store.SetPhase(state.RENDERING)
	req := pipeline.Request{Config: snap.Config, Overlays: snap.Overlays, Widgets: snap.Widgets}
	canvas := strconv.Itoa(snap.Config.CanvasSize)

	start := time.Now()
	buf, err := r.Renderer.Render(req, r.noiseSource(), pipeline.Preview)
	elapsed := time.Since(start)

	if err != nil {
		metrics.RecordRender(pipeline.Preview.String(), canvas, "error", elapsed.Seconds())
		r.Logger.Errorf("regen", "generation %d failed: %v", gen, err)
		r.Store.UpdatePreview(state.PreviewInfo{
			Generation: gen, Revision: snap.Revision, RenderedAt: time.Now(), Duration: elapsed, Err: err.Error(),
		})
		r.Store.SetPhase(state.ERROR)
		return
	}
	metrics.RecordRender(pipeline.Preview.String(), canvas, "ok", elapsed.Seconds())

	if !r.publish(gen, buf) {
		r.Store.SetPhase(state.READY)
		return
	}
	r.Store.UpdatePreview(state.PreviewInfo{
		Generation: gen, Revision: snap.Revision, RenderedAt: time.Now(), Duration: elapsed,
	})
	r.Store.SetPhase(state.READY)
	r.Logger.Infof("regen", "generation %d published in %s", gen, elapsed.Round(time.Millisecond))
	r.present(snap)
}

// publish stores buf as the latest preview unless a newer generation is
// already published.
func (r *Regenerator) publish(gen uint64, buf *raster.Buffer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen <= r.published {
		metrics.RecordStale()
		return false
	}
	r.published = gen
	r.latest = buf
	return true
}

func (r *Regenerator) present(snap state.State) {
	preview := r.Latest()
	if preview == nil {
		return
	}
	frame := render.Frame{Preview: preview, Widgets: snap.Widgets}
	if r.ShareURL != nil {
		frame.ShareURL = r.ShareURL(snap.Config)
	}
	if err := r.Surface.Present(frame); err != nil {
		r.Logger.Errorf("regen", "present failed: %v", err)
		return
	}
	r.mu.Lock()
	r.presented = snap.WidgetRevision
	r.mu.Unlock()
}

func (r *Regenerator) noiseSource() noise.Source {
	if r.Seed != 0 {
		return noise.NewSeeded(r.Seed)
	}
	return noise.NewEntropy()
}
