package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rook-computer/bgenerator/internal/app"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bgenerator",
	Short: "Procedural square background generator",
	Long: `bgenerator renders square backgrounds: a base colour, tint, film grain,
tone curve, blur and vignette, with image overlays and mock UI widgets on top.

Examples:
  # Run the control panel (and the framebuffer display, if configured)
  bgenerator serve --listen :8080

  # One-shot export
  bgenerator render --preset warm --size 4096 --format webp -o bg.webp

  # Dominant colours of an image
  bgenerator analyze photo.jpg`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupStdIO,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(presetsCmd)

	rootCmd.PersistentFlags().Bool("debug", false, "human readable log output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); defaults to BGEN_LOG_LEVEL")
	rootCmd.PersistentFlags().String("stdio-log", "", "redirect stdout+stderr (including panics) to this file; also configurable via BGEN_STDIO_LOG")
}

// setupStdIO redirects all stdout/stderr output (including panic stack traces)
// to a file so crashes are diagnosable even when the console is left in
// graphics mode.
func setupStdIO(cmd *cobra.Command, args []string) error {
	logPath, _ := cmd.Flags().GetString("stdio-log")
	if logPath == "" {
		logPath = os.Getenv("BGEN_STDIO_LOG")
	}
	if logPath == "" {
		return nil
	}
	if err := redirectStdIO(logPath); err != nil {
		fmt.Fprintln(os.Stderr, "stdio log redirect error:", err)
	}
	return nil
}

func newLogger(cmd *cobra.Command, envLevel string) app.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = envLevel
	}
	debug, _ := cmd.Flags().GetBool("debug")
	return app.NewZeroLogger(os.Stderr, level, debug)
}
