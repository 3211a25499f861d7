package state

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rook-computer/bgenerator/internal/overlay"
	"github.com/rook-computer/bgenerator/internal/texture"
	"github.com/rook-computer/bgenerator/internal/widget"
)

type Phase int

const (
	BOOTING Phase = iota
	READY
	RENDERING
	ERROR
)

func (p Phase) String() string {
	switch p {
	case BOOTING:
		return "booting"
	case READY:
		return "ready"
	case RENDERING:
		return "rendering"
	case ERROR:
		return "error"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// PreviewInfo describes the most recently published preview.
type PreviewInfo struct {
	Generation uint64        `json:"generation"`
	Revision   uint64        `json:"revision"`
	RenderedAt time.Time     `json:"renderedAt"`
	Duration   time.Duration `json:"durationNs"`
	Err        string        `json:"error,omitempty"`
}

// State is a point-in-time copy of the session. Revision counts changes to
// the render inputs (config and overlays); WidgetRevision counts widget
// changes, which only affect the display layer and exports.
type State struct {
	Phase          Phase
	Config         texture.Config
	PresetID       string
	Overlays       []overlay.Overlay
	Widgets        []widget.Widget
	Preview        PreviewInfo
	Revision       uint64
	WidgetRevision uint64
}

// Store is the authoritative session. Every mutation clamps its input and
// wakes the Changes channel.
type Store struct {
	mu       sync.RWMutex
	state    State
	overlays overlay.Stack
	changes  chan struct{}
}

func NewStore(cfg texture.Config) *Store {
	return &Store{
		state:   State{Phase: BOOTING, Config: cfg.Clamp()},
		changes: make(chan struct{}, 1),
	}
}

func (store *Store) Snapshot() State {
	store.mu.RLock()
	defer store.mu.RUnlock()
	snap := store.state
	snap.Overlays = store.overlays.List()
	snap.Widgets = append([]widget.Widget(nil), store.state.Widgets...)
	return snap
}

// Changes delivers a wake-up after mutations. Bursts coalesce into a single
// pending notification; readers re-read the Snapshot.
func (store *Store) Changes() <-chan struct{} { return store.changes }

func (store *Store) notify() {
	select {
	case store.changes <- struct{}{}:
	default:
	}
}

func (store *Store) SetPhase(phase Phase) {
	store.mu.Lock()
	store.state.Phase = phase
	store.mu.Unlock()
}

func (store *Store) UpdatePreview(info PreviewInfo) {
	store.mu.Lock()
	store.state.Preview = info
	store.mu.Unlock()
}

// SetConfig replaces the generation config. The stored value is clamped.
func (store *Store) SetConfig(cfg texture.Config) texture.Config {
	store.mu.Lock()
	store.state.Config = cfg.Clamp()
	store.state.PresetID = ""
	store.state.Revision++
	out := store.state.Config
	store.mu.Unlock()
	store.notify()
	return out
}

// UpdateConfig applies fn to a copy of the config and stores the clamped result.
func (store *Store) UpdateConfig(fn func(*texture.Config)) texture.Config {
	store.mu.Lock()
	cfg := store.state.Config
	fn(&cfg)
	store.state.Config = cfg.Clamp()
	store.state.PresetID = ""
	store.state.Revision++
	out := store.state.Config
	store.mu.Unlock()
	store.notify()
	return out
}

// ApplyPreset replaces the look in one step.
func (store *Store) ApplyPreset(p texture.Preset) texture.Config {
	store.mu.Lock()
	store.state.Config = p.Apply(store.state.Config)
	store.state.PresetID = p.ID
	store.state.Revision++
	out := store.state.Config
	store.mu.Unlock()
	store.notify()
	return out
}

// AddOverlay appends a decoded bitmap. At capacity it returns
// overlay.ErrCapacity and the session is unchanged.
func (store *Store) AddOverlay(img *image.RGBA, p overlay.Placement) (overlay.Overlay, error) {
	store.mu.Lock()
	o, err := store.overlays.Add(img, p)
	if err == nil {
		store.state.Revision++
	}
	store.mu.Unlock()
	if err != nil {
		return overlay.Overlay{}, err
	}
	store.notify()
	return o, nil
}

func (store *Store) UpdateOverlay(id string, p overlay.Placement) (overlay.Overlay, error) {
	store.mu.Lock()
	o, err := store.overlays.Update(id, p)
	if err == nil {
		store.state.Revision++
	}
	store.mu.Unlock()
	if err != nil {
		return overlay.Overlay{}, err
	}
	store.notify()
	return o, nil
}

func (store *Store) RemoveOverlay(id string) error {
	store.mu.Lock()
	err := store.overlays.Remove(id)
	if err == nil {
		store.state.Revision++
	}
	store.mu.Unlock()
	if err != nil {
		return err
	}
	store.notify()
	return nil
}

// OverlayCount returns the number of overlays.
func (store *Store) OverlayCount() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.overlays.Len()
}

// AddWidget appends w after clamping; an empty id gets a fresh one.
func (store *Store) AddWidget(w widget.Widget) widget.Widget {
	if w.ID == "" {
		w.ID = widget.New(w.Kind).ID
	}
	w = w.Clamp()
	store.mu.Lock()
	store.state.Widgets = append(store.state.Widgets, w)
	store.state.WidgetRevision++
	store.mu.Unlock()
	store.notify()
	return w
}

// UpdateWidget replaces widget id, keeping its id, kind and position in the list.
func (store *Store) UpdateWidget(id string, w widget.Widget) (widget.Widget, error) {
	store.mu.Lock()
	for i := range store.state.Widgets {
		if store.state.Widgets[i].ID == id {
			w.ID = id
			w.Kind = store.state.Widgets[i].Kind
			store.state.Widgets[i] = w.Clamp()
			store.state.WidgetRevision++
			updated := store.state.Widgets[i]
			store.mu.Unlock()
			store.notify()
			return updated, nil
		}
	}
	store.mu.Unlock()
	return widget.Widget{}, fmt.Errorf("%w: %s", widget.ErrNotFound, id)
}

func (store *Store) RemoveWidget(id string) error {
	store.mu.Lock()
	for i := range store.state.Widgets {
		if store.state.Widgets[i].ID == id {
			store.state.Widgets = append(store.state.Widgets[:i], store.state.Widgets[i+1:]...)
			store.state.WidgetRevision++
			store.mu.Unlock()
			store.notify()
			return nil
		}
	}
	store.mu.Unlock()
	return fmt.Errorf("%w: %s", widget.ErrNotFound, id)
}
