package texture

import (
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rook-computer/bgenerator/internal/assets"
)

// ErrUnknownPreset is returned by Catalog.Find for ids not in the catalog.
var ErrUnknownPreset = errors.New("texture: unknown preset")

// Preset is a named, complete configuration.
type Preset struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Config Config `json:"config" yaml:"config"`
}

// Catalog is an ordered list of presets.
type Catalog struct {
	presets []Preset
}

type catalogFile struct {
	Presets []struct {
		ID     string    `yaml:"id"`
		Name   string    `yaml:"name"`
		Config yaml.Node `yaml:"config"`
	} `yaml:"presets"`
}

// LoadCatalog parses a YAML catalog. Each entry starts from DefaultConfig,
// so entries only list the fields that define the look.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("texture: parse catalog: %w", err)
	}
	c := &Catalog{}
	seen := make(map[string]bool, len(file.Presets))
	for _, entry := range file.Presets {
		if entry.ID == "" {
			return nil, fmt.Errorf("texture: preset %q has no id", entry.Name)
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("texture: duplicate preset id %q", entry.ID)
		}
		seen[entry.ID] = true

		cfg := DefaultConfig()
		if entry.Config.Kind != 0 {
			if err := entry.Config.Decode(&cfg); err != nil {
				return nil, fmt.Errorf("texture: preset %q: %w", entry.ID, err)
			}
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("texture: preset %q: %w", entry.ID, err)
		}
		c.presets = append(c.presets, Preset{ID: entry.ID, Name: entry.Name, Config: cfg})
	}
	return c, nil
}

var (
	builtinOnce sync.Once
	builtin     *Catalog
	builtinErr  error
)

// Builtin returns the embedded catalog.
func Builtin() (*Catalog, error) {
	builtinOnce.Do(func() {
		builtin, builtinErr = LoadCatalog(assets.PresetsYAML)
	})
	return builtin, builtinErr
}

// List returns the presets in catalog order.
func (c *Catalog) List() []Preset {
	out := make([]Preset, len(c.presets))
	copy(out, c.presets)
	return out
}

// Find looks a preset up by id.
func (c *Catalog) Find(id string) (Preset, error) {
	for _, p := range c.presets {
		if p.ID == id {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
}

// Apply replaces cfg wholesale with the preset's config, keeping only the
// session's canvas size, noise type and export format.
func (p Preset) Apply(cfg Config) Config {
	out := p.Config
	out.CanvasSize = cfg.CanvasSize
	out.NoiseType = cfg.NoiseType
	out.ExportFormat = cfg.ExportFormat
	return out.Clamp()
}
