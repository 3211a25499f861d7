// Package imageio turns user-supplied bytes into drawable bitmaps.
package imageio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// ErrUnsupportedType is returned when the sniffed content type is not an
// image format we can decode.
var ErrUnsupportedType = errors.New("imageio: unsupported content type")

// ErrTooLarge is returned when the image header declares more pixels than
// the decoder allows.
var ErrTooLarge = errors.New("imageio: image too large")

// DefaultMaxPixels is the pixel budget of the package-level helpers, one
// 8192×8192 bitmap.
const DefaultMaxPixels = 8192 * 8192

// Decoder decodes bitmaps within a pixel budget. The header is checked
// before any pixel buffer is allocated.
type Decoder struct {
	// MaxPixels bounds width×height. Zero or less means DefaultMaxPixels.
	MaxPixels int
}

var defaultDecoder = Decoder{MaxPixels: DefaultMaxPixels}

func (d Decoder) maxPixels() int {
	if d.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return d.MaxPixels
}

var allowedTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/bmp",
}

// Sniff returns the detected MIME type of data, or ErrUnsupportedType.
func Sniff(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	for _, allowed := range allowedTypes {
		if mt.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

// Decode sniffs and decodes data into an RGBA bitmap using the default
// pixel budget.
func Decode(data []byte) (*image.RGBA, error) { return defaultDecoder.Decode(data) }

// DecodeAsync starts a default-budget decode on its own goroutine.
func DecodeAsync(data []byte) *Pending { return defaultDecoder.DecodeAsync(data) }

// DecodeAll decodes every input concurrently with the default budget.
func DecodeAll(ctx context.Context, inputs [][]byte) ([]*image.RGBA, error) {
	return defaultDecoder.DecodeAll(ctx, inputs)
}

// Decode sniffs data, checks the declared dimensions against the budget and
// decodes it into an RGBA bitmap.
func (d Decoder) Decode(data []byte) (*image.RGBA, error) {
	if _, err := Sniff(data); err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imageio: decode header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("imageio: decode header: empty image %dx%d", cfg.Width, cfg.Height)
	}
	if limit := d.maxPixels(); cfg.Width > limit/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, limit)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imageio: decode: %w", err)
	}
	return ToRGBA(img), nil
}

// ToRGBA returns img as an *image.RGBA with bounds starting at the origin,
// converting when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

// Pending is a decode in flight. Callers that lose interest simply stop
// waiting; the result is then dropped.
type Pending struct {
	done chan struct{}
	img  *image.RGBA
	err  error
}

// DecodeAsync starts decoding data on its own goroutine.
func (d Decoder) DecodeAsync(data []byte) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.img, p.err = d.Decode(data)
	}()
	return p
}

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the decode finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*image.RGBA, error) {
	select {
	case <-p.done:
		return p.img, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DecodeAll decodes every input concurrently and returns the bitmaps in
// input order. The first failure cancels the rest.
func (d Decoder) DecodeAll(ctx context.Context, inputs [][]byte) ([]*image.RGBA, error) {
	out := make([]*image.RGBA, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	for i, data := range inputs {
		g.Go(func() error {
			img, err := d.DecodeAsync(data).Wait(ctx)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
