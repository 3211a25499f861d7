package pipeline

import (
	"math"

	"github.com/disintegration/imaging"

	"github.com/rook-computer/bgenerator/internal/noise"
	"github.com/rook-computer/bgenerator/internal/raster"
	"github.com/rook-computer/bgenerator/internal/texture"
	"github.com/rook-computer/bgenerator/internal/tone"
)

// Fill paints the whole buffer with the opaque base colour.
func Fill(buf *raster.Buffer, base texture.Color) {
	buf.Fill(base.RGBA())
}

// Tint blends tint over the buffer at the given strength:
// out = tint*s + in*(1-s). Strength 0 leaves the buffer untouched.
func Tint(buf *raster.Buffer, tint texture.Color, strength float64) {
	if strength <= 0 {
		return
	}
	var lut [3][256]uint8
	for ch, t := range [3]uint8{tint.R, tint.G, tint.B} {
		for v := 0; v < 256; v++ {
			lut[ch][v] = raster.Channel(float64(t)*strength + float64(v)*(1-strength))
		}
	}
	pix := buf.Pix()
	for i := 0; i < len(pix); i += 4 {
		pix[i] = lut[0][pix[i]]
		pix[i+1] = lut[1][pix[i+1]]
		pix[i+2] = lut[2][pix[i+2]]
	}
}

// Grain adds one noise sample per run of size pixels, identically to R, G and
// B. Alpha is untouched and every write is clamped.
func Grain(buf *raster.Buffer, s noise.Sampler, size int) {
	if s.Intensity == 0 {
		return
	}
	if size < 1 {
		size = 1
	}
	pix := buf.Pix()
	for i := 0; i < len(pix); i += 4 * size {
		n := s.Next()
		for j := 0; j < size && i+j*4 < len(pix); j++ {
			k := i + j*4
			pix[k] = raster.Channel(float64(pix[k]) + n)
			pix[k+1] = raster.Channel(float64(pix[k+1]) + n)
			pix[k+2] = raster.Channel(float64(pix[k+2]) + n)
		}
	}
}

// Tone applies the curve to every pixel. An identity curve skips the pass.
func Tone(buf *raster.Buffer, c tone.Curve) {
	if c.IsIdentity() {
		return
	}
	p := c.Prepare()
	pix := buf.Pix()
	for i := 0; i < len(pix); i += 4 {
		r, g, b := p.Apply(float64(pix[i]), float64(pix[i+1]), float64(pix[i+2]))
		pix[i] = raster.Channel(r)
		pix[i+1] = raster.Channel(g)
		pix[i+2] = raster.Channel(b)
	}
}

// Blur applies a Gaussian blur with sigma = radius. The result is computed
// into a separate image and copied back.
func Blur(buf *raster.Buffer, radius float64) {
	if radius <= 0 {
		return
	}
	buf.CopyFrom(imaging.Blur(buf.Image(), radius))
}

// Vignette darkens towards the corners: black at alpha 0 in the centre rising
// linearly to strength at the half-diagonal, composited source-over.
func Vignette(buf *raster.Buffer, strength float64) {
	if strength <= 0 {
		return
	}
	size := buf.Size()
	centre := float64(size) / 2
	maxRadius := math.Hypot(centre, centre)
	pix := buf.Pix()
	for y := 0; y < size; y++ {
		dy := float64(y) + 0.5 - centre
		row := pix[y*size*4 : (y+1)*size*4]
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - centre
			a := strength * math.Min(math.Hypot(dx, dy)/maxRadius, 1)
			keep := 1 - a
			i := x * 4
			row[i] = raster.Channel(float64(row[i]) * keep)
			row[i+1] = raster.Channel(float64(row[i+1]) * keep)
			row[i+2] = raster.Channel(float64(row[i+2]) * keep)
		}
	}
}
