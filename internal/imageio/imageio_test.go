package imageio

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	pngData := encodePNG(t, solid(4, 4, color.RGBA{1, 2, 3, 255}))

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, solid(8, 8, color.RGBA{200, 10, 10, 255}), nil))

	var gf bytes.Buffer
	require.NoError(t, gif.Encode(&gf, solid(4, 4, color.RGBA{0, 0, 0, 255}), nil))

	cases := map[string][]byte{
		"image/png":  pngData,
		"image/jpeg": jpg.Bytes(),
		"image/gif":  gf.Bytes(),
	}
	for want, data := range cases {
		t.Run(want, func(t *testing.T) {
			got, err := Sniff(data)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := Sniff([]byte("plain text, not a picture"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDecode(t *testing.T) {
	want := solid(6, 3, color.RGBA{10, 20, 30, 255})
	got, err := Decode(encodePNG(t, want))
	require.NoError(t, err)
	assert.Equal(t, want.Rect, got.Rect)
	assert.Equal(t, want.Pix, got.Pix)
}

func TestDecodeCorruptImage(t *testing.T) {
	data := encodePNG(t, solid(6, 3, color.RGBA{10, 20, 30, 255}))
	_, err := Decode(data[:len(data)/2])
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedType)
}

func TestToRGBANormalizesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 8, 9))
	src.SetRGBA(5, 5, color.RGBA{9, 9, 9, 255})
	out := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 3, 4), out.Rect)
	assert.Equal(t, color.RGBA{9, 9, 9, 255}, out.RGBAAt(0, 0))
}

func TestPendingWait(t *testing.T) {
	p := DecodeAsync(encodePNG(t, solid(2, 2, color.RGBA{255, 0, 0, 255})))
	img, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, img.Rect.Dx())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := &Pending{done: make(chan struct{})}
	_, err = slow.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeAll(t *testing.T) {
	a := encodePNG(t, solid(2, 2, color.RGBA{255, 0, 0, 255}))
	b := encodePNG(t, solid(3, 3, color.RGBA{0, 255, 0, 255}))

	imgs, err := DecodeAll(context.Background(), [][]byte{a, b})
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, 2, imgs[0].Rect.Dx())
	assert.Equal(t, 3, imgs[1].Rect.Dx())

	_, err = DecodeAll(context.Background(), [][]byte{a, []byte("nope")})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

// forgePNGSize rewrites the IHDR dimensions of a valid PNG, leaving the
// pixel data as it was.
func forgePNGSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := bytes.Clone(data)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	forged := forgePNGSize(t, encodePNG(t, solid(1, 1, color.RGBA{1, 1, 1, 255})), 12000, 12000)

	cfg, err := png.DecodeConfig(bytes.NewReader(forged))
	require.NoError(t, err)
	require.Equal(t, 12000, cfg.Width)

	_, err = Decode(forged)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = DecodeAsync(forged).Wait(context.Background())
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecoderBudget(t *testing.T) {
	data := encodePNG(t, solid(10, 10, color.RGBA{5, 5, 5, 255}))

	img, err := Decoder{MaxPixels: 100}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Rect.Dx())

	_, err = Decoder{MaxPixels: 99}.Decode(data)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = Decoder{MaxPixels: 99}.DecodeAll(context.Background(), [][]byte{data})
	assert.ErrorIs(t, err, ErrTooLarge)
}
