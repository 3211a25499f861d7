package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/rook-computer/bgenerator/internal/imageio"
)

// Config holds the environment driven process settings. Command line flags
// override these after loading.
type Config struct {
	ListenAddr     string        `env:"BGEN_LISTEN" envDefault:":8080"`
	DevMode        bool          `env:"BGEN_DEV" envDefault:"false"`
	StaticDir      string        `env:"BGEN_STATIC_DIR"`
	Framebuffer    string        `env:"BGEN_FRAMEBUFFER"` // empty disables the live display
	Debounce       time.Duration `env:"BGEN_DEBOUNCE" envDefault:"50ms"`
	MaxUploadBytes int64         `env:"BGEN_MAX_UPLOAD_BYTES" envDefault:"20971520"`
	MaxImagePixels int           `env:"BGEN_MAX_IMAGE_PIXELS" envDefault:"67108864"`
	Seed           uint64        `env:"BGEN_SEED" envDefault:"0"`
	LogLevel       string        `env:"BGEN_LOG_LEVEL" envDefault:"info"`
	PublicURL      string        `env:"BGEN_PUBLIC_URL"`
	Preset         string        `env:"BGEN_PRESET" envDefault:"classic"`
}

// LoadConfig parses the BGEN_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	cfg.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")
	cfg.Framebuffer = strings.TrimSpace(cfg.Framebuffer)
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 * 1024 * 1024
	}
	if cfg.MaxImagePixels <= 0 {
		cfg.MaxImagePixels = imageio.DefaultMaxPixels
	}
	return cfg, nil
}
