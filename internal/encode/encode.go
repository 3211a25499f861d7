// Package encode serializes finished canvases to PNG, JPEG or WebP.
package encode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/HugoSmits86/nativewebp"

	"github.com/rook-computer/bgenerator/internal/texture"
)

// JPEGQuality is used for every JPEG export.
const JPEGQuality = 95

// ErrUnsupportedFormat is returned for formats without an encoder.
var ErrUnsupportedFormat = errors.New("encode: unsupported format")

// Result is an encoded export ready to be written or served.
type Result struct {
	Data     []byte
	MIMEType string
	Filename string
}

// MIMEType returns the content type of f.
func MIMEType(f texture.Format) string {
	switch f {
	case texture.PNG:
		return "image/png"
	case texture.JPEG:
		return "image/jpeg"
	case texture.WebP:
		return "image/webp"
	}
	return "application/octet-stream"
}

// Filename names an export after its canvas size and format.
func Filename(size int, f texture.Format) string {
	return fmt.Sprintf("bgenerator-%dx%d.%s", size, size, f)
}

// Encode serializes img. On error no bytes are returned.
func Encode(img image.Image, f texture.Format) (Result, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case texture.PNG:
		err = png.Encode(&buf, img)
	case texture.JPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality})
	case texture.WebP:
		err = nativewebp.Encode(&buf, img, &nativewebp.Options{})
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return Result{}, fmt.Errorf("encode: %s: %w", f, err)
	}
	return Result{
		Data:     buf.Bytes(),
		MIMEType: MIMEType(f),
		Filename: Filename(img.Bounds().Dx(), f),
	}, nil
}
