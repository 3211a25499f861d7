// Package raster holds the square RGBA8 pixel buffer every pipeline stage
// reads and writes in place.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
)

// ErrInvalidSize is returned when a buffer is requested with a non-positive size.
var ErrInvalidSize = errors.New("raster: invalid buffer size")

// Buffer is a size×size RGBA8 canvas stored row-major.
// A Buffer belongs to exactly one pipeline run; after the run hands it off,
// consumers must treat it as read-only.
type Buffer struct {
	img *image.RGBA
}

// New allocates a zeroed (transparent black) square buffer.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Buffer{img: image.NewRGBA(image.Rect(0, 0, size, size))}, nil
}

// Size returns the edge length in pixels.
func (b *Buffer) Size() int { return b.img.Rect.Dx() }

// Pix exposes the raw RGBA bytes. Pixel (x, y) starts at (y*Size()+x)*4.
func (b *Buffer) Pix() []uint8 { return b.img.Pix }

// Image returns the buffer as a drawable image sharing the same memory.
func (b *Buffer) Image() *image.RGBA { return b.img }

// Bounds returns the canvas rectangle.
func (b *Buffer) Bounds() image.Rectangle { return b.img.Rect }

// At returns the pixel at (x, y).
func (b *Buffer) At(x, y int) color.RGBA { return b.img.RGBAAt(x, y) }

// Fill paints every pixel with c.
func (b *Buffer) Fill(c color.RGBA) {
	draw.Draw(b.img, b.img.Rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// Clone returns an independent copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{img: image.NewRGBA(b.img.Rect)}
	copy(out.img.Pix, b.img.Pix)
	return out
}

// CopyFrom overwrites the buffer with the pixels of src, which must have the same bounds.
func (b *Buffer) CopyFrom(src image.Image) {
	draw.Draw(b.img, b.img.Rect, src, src.Bounds().Min, draw.Src)
}

// Equal reports whether both buffers hold identical bytes.
func (b *Buffer) Equal(other *Buffer) bool {
	if other == nil || b.img.Rect != other.img.Rect {
		return false
	}
	for i := range b.img.Pix {
		if b.img.Pix[i] != other.img.Pix[i] {
			return false
		}
	}
	return true
}

// Channel rounds v half-to-even and clamps it into [0, 255].
// NaN maps to 0.
func Channel(v float64) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.RoundToEven(v))
}
