package analyze

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestSolidImageHasOneBucket(t *testing.T) {
	rep, err := Analyze(solid(100, 100, color.NRGBA{52, 101, 199, 255}), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, rep.Colors, 1)
	assert.Equal(t, 100.0, rep.Colors[0].Percentage)
	assert.Equal(t, "#3264c8", rep.Dominant)
	assert.Equal(t, "rgb(50, 100, 200)", rep.Colors[0].RGB)
	assert.Equal(t, 1000, rep.Sampled)
}

func TestTransparentPixelsAreSkipped(t *testing.T) {
	img := solid(10, 10, color.NRGBA{0, 0, 0, 0})
	_, err := Analyze(img, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoSamples)

	// Left half opaque red, right half barely visible blue.
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x < 5 {
				img.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{0, 0, 255, 127})
			}
		}
	}
	rep, err := Analyze(img, Options{Stride: 1, MinAlpha: 128, Step: 10, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rep.Colors, 1)
	assert.Equal(t, "#fa0000", rep.Dominant)
	assert.Equal(t, 50, rep.Sampled)
}

func TestOrderingAndLimit(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 1))
	for x := 0; x < 20; x++ {
		var c color.NRGBA
		switch {
		case x < 12:
			c = color.NRGBA{10, 10, 10, 255}
		case x < 17:
			c = color.NRGBA{100, 100, 100, 255}
		default:
			c = color.NRGBA{200, 200, 200, 255}
		}
		img.SetNRGBA(x, 0, c)
	}

	rep, err := Analyze(img, Options{Stride: 1, MinAlpha: 128, Step: 10, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rep.Colors, 2)
	assert.Equal(t, "#0a0a0a", rep.Colors[0].Hex)
	assert.Equal(t, 60.0, rep.Colors[0].Percentage)
	assert.Equal(t, "#646464", rep.Colors[1].Hex)
	assert.Equal(t, 25.0, rep.Colors[1].Percentage)
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, uint8(0), quantize(4, 10))
	assert.Equal(t, uint8(10), quantize(5, 10))
	assert.Equal(t, uint8(250), quantize(254, 10))
	assert.Equal(t, uint8(250), quantize(255, 10))
}

func TestStrideSamplesFlatIndex(t *testing.T) {
	// 7 wide, so stride 10 walks across row boundaries.
	img := solid(7, 7, color.NRGBA{0, 0, 0, 255})
	rep, err := Analyze(img, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Sampled)
}
