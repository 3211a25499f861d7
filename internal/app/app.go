package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rook-computer/bgenerator/internal/render"
	"github.com/rook-computer/bgenerator/internal/state"
	"github.com/rook-computer/bgenerator/internal/system"
	"github.com/rook-computer/bgenerator/internal/texture"
	"github.com/rook-computer/bgenerator/internal/web"
)

// App runs the long-lived session: the live surface, the control panel
// server and the preview regenerator.
type App struct {
	Store   *state.Store
	Regen   *Regenerator
	Surface render.Surface
	Web     web.Server
	Logger  Logger

	// Console switches the VT to graphics mode while running and exits on
	// F4. Only meaningful with a framebuffer surface.
	Console bool

	exitOnce atomic.Bool
	exitCh   chan error
}

func New(store *state.Store, regen *Regenerator, surface render.Surface, webServer web.Server) *App {
	return &App{Store: store, Regen: regen, Surface: surface, Web: webServer, Logger: NoopLogger{}, exitCh: make(chan error, 1)}
}

// Exit requests the app to stop running.
func (app *App) Exit(err error) {
	if app.exitCh == nil {
		return
	}
	if !app.exitOnce.CompareAndSwap(false, true) {
		return
	}
	select {
	case app.exitCh <- err:
	default:
	}
}

// Start blocks until ctx is done or Exit is called.
func (app *App) Start(ctx context.Context) error {
	if app.exitCh == nil {
		app.exitCh = make(chan error, 1)
	}
	if app.Logger == nil {
		app.Logger = NoopLogger{}
	}
	if app.Surface == nil {
		app.Surface = render.NoopSurface{}
	}
	if app.Web == nil {
		app.Web = &web.NoopServer{}
	}
	app.exitOnce.Store(false)

	if err := app.Surface.Start(ctx); err != nil {
		app.Logger.Errorf("app", "surface start error: %v", err)
		return err
	}
	defer func() { _ = app.Surface.Stop() }()

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if app.Console {
		restore := system.EnterGraphics(app.Logger)
		defer restore()
		system.StartExitOnKey(loopCtx, app.Logger, system.KeyF4, func() { app.Exit(nil) })
	}

	if app.Regen.Surface == nil {
		app.Regen.Surface = app.Surface
	}
	if app.Regen.Logger == nil {
		app.Regen.Logger = app.Logger
	}

	if err := app.Web.Start(loopCtx); err != nil {
		app.Logger.Errorf("app", "web server start error: %v", err)
		return err
	}
	defer func() { _ = app.Web.Stop() }()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Regen.Run(loopCtx)
	}()
	app.Logger.Infof("app", "session started")

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-app.exitCh:
	}
	cancel()
	wg.Wait()
	return err
}

// Bootstrap builds the starting session from the named preset, falling back
// to the default look when the preset is unknown.
func Bootstrap(presetID string, logger Logger) (*state.Store, *texture.Catalog, error) {
	catalog, err := texture.Builtin()
	if err != nil {
		return nil, nil, err
	}
	store := state.NewStore(texture.DefaultConfig())
	if presetID == "" {
		return store, catalog, nil
	}
	p, err := catalog.Find(presetID)
	if err != nil {
		if logger != nil {
			logger.Errorf("app", "%v; using defaults", err)
		}
		return store, catalog, nil
	}
	store.ApplyPreset(p)
	return store, catalog, nil
}
