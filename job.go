package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rook-computer/bgenerator/internal/imageio"
	"github.com/rook-computer/bgenerator/internal/overlay"
	"github.com/rook-computer/bgenerator/internal/pipeline"
	"github.com/rook-computer/bgenerator/internal/texture"
	"github.com/rook-computer/bgenerator/internal/widget"
)

// renderJob is the YAML file accepted by "render --config". Config fields
// override the preset, which overrides the defaults.
type renderJob struct {
	Preset   string        `yaml:"preset"`
	Config   yaml.Node     `yaml:"config"`
	Seed     uint64        `yaml:"seed"`
	Output   string        `yaml:"output"`
	Overlays []overlaySpec `yaml:"overlays"`
	Widgets  []widgetSpec  `yaml:"widgets"`
}

type overlaySpec struct {
	Path              string `yaml:"path"`
	overlay.Placement `yaml:",inline"`
}

func (s *overlaySpec) UnmarshalYAML(n *yaml.Node) error {
	type plain overlaySpec
	out := plain{Placement: overlay.DefaultPlacement()}
	if err := n.Decode(&out); err != nil {
		return err
	}
	*s = overlaySpec(out)
	return nil
}

type widgetSpec struct {
	Type    string  `yaml:"type"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Scale   float64 `yaml:"scale"`
	Text    string  `yaml:"text"`
	Variant string  `yaml:"variant"`
}

func (s *widgetSpec) UnmarshalYAML(n *yaml.Node) error {
	type plain widgetSpec
	out := plain{X: 50, Y: 50, Scale: 100}
	if err := n.Decode(&out); err != nil {
		return err
	}
	*s = widgetSpec(out)
	return nil
}

func (s widgetSpec) widget() (widget.Widget, error) {
	kind, err := widget.ParseKind(s.Type)
	if err != nil {
		return widget.Widget{}, err
	}
	w := widget.New(kind)
	w.X, w.Y, w.Scale = s.X, s.Y, s.Scale
	if s.Text != "" {
		w.Text = s.Text
	}
	if s.Variant != "" {
		w.Variant = widget.Variant(s.Variant)
	}
	return w.Clamp(), nil
}

func loadJob(path string) (renderJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return renderJob{}, err
	}
	var job renderJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return renderJob{}, fmt.Errorf("parse %s: %w", path, err)
	}
	// Overlay paths are relative to the job file.
	dir := filepath.Dir(path)
	for i := range job.Overlays {
		if p := job.Overlays[i].Path; p != "" && !filepath.IsAbs(p) {
			job.Overlays[i].Path = filepath.Join(dir, p)
		}
	}
	return job, nil
}

// config resolves the job's generation config against the catalog.
func (job renderJob) config(catalog *texture.Catalog) (texture.Config, error) {
	cfg := texture.DefaultConfig()
	if job.Preset != "" {
		p, err := catalog.Find(job.Preset)
		if err != nil {
			return texture.Config{}, err
		}
		cfg = p.Apply(cfg)
	}
	if job.Config.Kind != 0 {
		if err := job.Config.Decode(&cfg); err != nil {
			return texture.Config{}, fmt.Errorf("%w: %w", texture.ErrInvalidConfig, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return texture.Config{}, err
	}
	return cfg, nil
}

// request builds the pipeline input, decoding overlay files concurrently.
func (job renderJob) request(ctx context.Context, catalog *texture.Catalog) (pipeline.Request, error) {
	cfg, err := job.config(catalog)
	if err != nil {
		return pipeline.Request{}, err
	}
	if len(job.Overlays) > overlay.MaxOverlays {
		return pipeline.Request{}, fmt.Errorf("%w: %d overlays given", overlay.ErrCapacity, len(job.Overlays))
	}

	inputs := make([][]byte, len(job.Overlays))
	for i, spec := range job.Overlays {
		data, err := os.ReadFile(spec.Path)
		if err != nil {
			return pipeline.Request{}, err
		}
		inputs[i] = data
	}
	images, err := imageio.DecodeAll(ctx, inputs)
	if err != nil {
		return pipeline.Request{}, err
	}

	var stack overlay.Stack
	for i, img := range images {
		if _, err := stack.Add(img, job.Overlays[i].Placement); err != nil {
			return pipeline.Request{}, err
		}
	}

	widgets := make([]widget.Widget, 0, len(job.Widgets))
	for _, spec := range job.Widgets {
		w, err := spec.widget()
		if err != nil {
			return pipeline.Request{}, err
		}
		widgets = append(widgets, w)
	}
	return pipeline.Request{Config: cfg, Overlays: stack.List(), Widgets: widgets}, nil
}

// parseWidgetFlag reads "kind[=text][@x,y[,scale]]", e.g. "button=Sign up@50,70".
func parseWidgetFlag(s string) (widgetSpec, error) {
	spec := widgetSpec{X: 50, Y: 50, Scale: 100}
	rest := s
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		coords := strings.Split(rest[at+1:], ",")
		if len(coords) < 2 || len(coords) > 3 {
			return widgetSpec{}, fmt.Errorf("widget %q: want @x,y or @x,y,scale", s)
		}
		vals := make([]float64, len(coords))
		for i, c := range coords {
			v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
			if err != nil {
				return widgetSpec{}, fmt.Errorf("widget %q: %w", s, err)
			}
			vals[i] = v
		}
		spec.X, spec.Y = vals[0], vals[1]
		if len(vals) == 3 {
			spec.Scale = vals[2]
		}
		rest = rest[:at]
	}
	kind, text, _ := strings.Cut(rest, "=")
	spec.Type = strings.TrimSpace(kind)
	spec.Text = text
	if _, err := widget.ParseKind(spec.Type); err != nil {
		return widgetSpec{}, err
	}
	return spec, nil
}
