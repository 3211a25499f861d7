package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rook-computer/bgenerator/internal/app"
	"github.com/rook-computer/bgenerator/internal/pipeline"
	"github.com/rook-computer/bgenerator/internal/render"
	"github.com/rook-computer/bgenerator/internal/texture"
	"github.com/rook-computer/bgenerator/internal/web"
	"github.com/rook-computer/bgenerator/internal/widget"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control panel and live preview",
	Long: `Serve the control panel API and UI, keep the preview regenerated as the
session changes and, when a framebuffer device is configured, show it there.

Every flag defaults to its BGEN_* environment variable.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("listen", "", "http listen address (BGEN_LISTEN)")
	f.Bool("dev", false, "enable permissive CORS for a separately served UI (BGEN_DEV)")
	f.String("static-dir", "", "serve the UI from this directory instead of the embedded one (BGEN_STATIC_DIR)")
	f.String("framebuffer", "", "framebuffer device for the live display, e.g. /dev/fb0 (BGEN_FRAMEBUFFER)")
	f.String("preset", "", "preset the session starts from (BGEN_PRESET)")
	f.Uint64("seed", 0, "fixed noise seed; 0 draws fresh grain every run (BGEN_SEED)")
	f.String("public-url", "", "externally reachable base URL for share links (BGEN_PUBLIC_URL)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg)

	logger := newLogger(cmd, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, catalog, err := app.Bootstrap(cfg.Preset, logger)
	if err != nil {
		return fmt.Errorf("load presets: %w", err)
	}

	widgets, err := widget.NewRasterizer()
	if err != nil {
		return fmt.Errorf("load widget fonts: %w", err)
	}
	widgets.Logger = logger
	pipe := pipeline.New(widgets)

	var surface render.Surface = render.NoopSurface{}
	if cfg.Framebuffer != "" {
		fb := render.NewFBSurface(cfg.Framebuffer, widgets)
		fb.Logger = logger
		surface = fb
	}

	regen := &app.Regenerator{
		Store:    store,
		Renderer: pipe,
		Logger:   logger,
		Debounce: cfg.Debounce,
		Seed:     cfg.Seed,
	}
	if cfg.PublicURL != "" {
		base := cfg.PublicURL
		regen.ShareURL = func(c texture.Config) string { return web.ExportURL(base, c) }
	}

	server := web.NewHTTPServer(web.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		DevMode:    cfg.DevMode,
		StaticDir:  cfg.StaticDir,
	}, web.APIV1Deps{
		Store:          store,
		Presets:        catalog,
		Previews:       regen,
		Exporter:       pipe,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxImagePixels: cfg.MaxImagePixels,
		PublicURL:      cfg.PublicURL,
		Seed:           cfg.Seed,
	})

	a := app.New(store, regen, surface, server)
	a.Logger = logger
	a.Console = cfg.Framebuffer != ""

	logger.Infof("main", "serving on %s", cfg.ListenAddr)
	if err := a.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Infof("main", "stopped")
	return nil
}

// applyServeFlags lets explicitly set flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *app.Config) {
	f := cmd.Flags()
	if f.Changed("listen") {
		cfg.ListenAddr, _ = f.GetString("listen")
	}
	if f.Changed("dev") {
		cfg.DevMode, _ = f.GetBool("dev")
	}
	if f.Changed("static-dir") {
		cfg.StaticDir, _ = f.GetString("static-dir")
	}
	if f.Changed("framebuffer") {
		cfg.Framebuffer, _ = f.GetString("framebuffer")
	}
	if f.Changed("preset") {
		cfg.Preset, _ = f.GetString("preset")
	}
	if f.Changed("seed") {
		cfg.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("public-url") {
		cfg.PublicURL, _ = f.GetString("public-url")
	}
}
