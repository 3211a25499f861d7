// Package overlay composites user-supplied bitmaps onto the generated texture.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// MaxOverlays is the capacity of a Stack.
const MaxOverlays = 10

var (
	// ErrCapacity is returned by Add once MaxOverlays overlays exist.
	ErrCapacity = errors.New("overlay: capacity reached")
	// ErrNotFound is returned for unknown overlay ids.
	ErrNotFound = errors.New("overlay: not found")
)

// Placement positions an overlay. X and Y are the canvas percentages of the
// bitmap's centre; Scale and Opacity are percentages.
type Placement struct {
	Opacity float64 `json:"opacity" yaml:"opacity"`
	Scale   float64 `json:"scale" yaml:"scale"`
	X       float64 `json:"x" yaml:"x"`
	Y       float64 `json:"y" yaml:"y"`
}

// DefaultPlacement is fully opaque, native size, centred.
func DefaultPlacement() Placement {
	return Placement{Opacity: 100, Scale: 100, X: 50, Y: 50}
}

// Clamp forces every field into its range: opacity 0–100, scale 10–200,
// x and y 0–100.
func (p Placement) Clamp() Placement {
	p.Opacity = clamp(p.Opacity, 0, 100)
	p.Scale = clamp(p.Scale, 10, 200)
	p.X = clamp(p.X, 0, 100)
	p.Y = clamp(p.Y, 0, 100)
	return p
}

// Overlay is a decoded bitmap plus its placement.
type Overlay struct {
	ID    string      `json:"id"`
	Image *image.RGBA `json:"-"`
	Placement
}

// Stack is the ordered overlay list. Insertion order is paint order.
// A Stack is not safe for concurrent use; the session store guards it.
type Stack struct {
	items []Overlay
}

// Add appends img with placement p and returns the stored overlay.
func (s *Stack) Add(img *image.RGBA, p Placement) (Overlay, error) {
	if len(s.items) >= MaxOverlays {
		return Overlay{}, fmt.Errorf("%w: %d overlays", ErrCapacity, MaxOverlays)
	}
	if img == nil {
		return Overlay{}, errors.New("overlay: nil image")
	}
	o := Overlay{ID: uuid.NewString(), Image: img, Placement: p.Clamp()}
	s.items = append(s.items, o)
	return o, nil
}

// Update replaces the placement of overlay id.
func (s *Stack) Update(id string, p Placement) (Overlay, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Placement = p.Clamp()
			return s.items[i], nil
		}
	}
	return Overlay{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Remove deletes overlay id, keeping the order of the rest.
func (s *Stack) Remove(id string) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Get returns overlay id.
func (s *Stack) Get(id string) (Overlay, bool) {
	for _, o := range s.items {
		if o.ID == id {
			return o, true
		}
	}
	return Overlay{}, false
}

// List returns a copy of the overlays in paint order. Bitmaps are shared and
// must not be modified.
func (s *Stack) List() []Overlay {
	out := make([]Overlay, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of overlays.
func (s *Stack) Len() int { return len(s.items) }

// Footprint returns the canvas rectangle o covers on a size×size canvas,
// before clipping.
func Footprint(o Overlay, size int) image.Rectangle {
	b := o.Image.Bounds()
	sw := int(math.Round(float64(b.Dx()) * o.Scale / 100))
	sh := int(math.Round(float64(b.Dy()) * o.Scale / 100))
	cx := o.X / 100 * float64(size)
	cy := o.Y / 100 * float64(size)
	x0 := int(math.Round(cx - float64(sw)/2))
	y0 := int(math.Round(cy - float64(sh)/2))
	return image.Rect(x0, y0, x0+sw, y0+sh)
}

// Composite draws the overlays onto dst in order, source-over at each
// overlay's opacity. Pixels outside a footprint are never touched and
// footprints are clipped to dst.
func Composite(dst *image.RGBA, overlays []Overlay) {
	size := dst.Bounds().Dx()
	for _, o := range overlays {
		if o.Image == nil || o.Opacity <= 0 {
			continue
		}
		rect := Footprint(o, size)
		visible := rect.Intersect(dst.Bounds())
		if visible.Empty() {
			continue
		}

		var src image.Image = o.Image
		sp := o.Image.Bounds().Min.Add(visible.Min.Sub(rect.Min))
		if rect.Dx() != o.Image.Bounds().Dx() || rect.Dy() != o.Image.Bounds().Dy() {
			src, sp = scaleVisible(o.Image, rect, visible), visible.Min
		}

		var mask image.Image
		if o.Opacity < 100 {
			mask = image.NewUniform(color.Alpha{A: uint8(math.Round(o.Opacity * 255 / 100))})
		}
		draw.DrawMask(dst, visible, src, sp, mask, image.Point{}, draw.Over)
	}
}

// scaleVisible resamples img onto rect and returns only the part inside
// visible. Work and memory are bounded by visible, not by rect.
func scaleVisible(img *image.RGBA, rect, visible image.Rectangle) *image.RGBA {
	sb := img.Bounds()
	sx := float64(rect.Dx()) / float64(sb.Dx())
	sy := float64(rect.Dy()) / float64(sb.Dy())
	s2d := f64.Aff3{
		sx, 0, float64(rect.Min.X) - float64(sb.Min.X)*sx,
		0, sy, float64(rect.Min.Y) - float64(sb.Min.Y)*sy,
	}
	out := image.NewRGBA(visible)
	xdraw.BiLinear.Transform(out, s2d, img, sb, xdraw.Src, nil)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
