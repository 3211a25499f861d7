// Package analyze reports the dominant colours of an image.
package analyze

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
)

// ErrNoSamples is returned when every sampled pixel was transparent.
var ErrNoSamples = errors.New("analyze: no opaque pixels sampled")

// Options controls sampling and bucketing.
type Options struct {
	// Stride samples every Stride-th pixel in row-major order.
	Stride int
	// MinAlpha skips pixels with a lower alpha.
	MinAlpha uint8
	// Step is the quantization step per channel.
	Step int
	// Limit caps the number of returned swatches.
	Limit int
}

// DefaultOptions samples every 10th pixel, skips alpha < 128, quantizes to
// multiples of 10 and keeps the top 10 buckets.
func DefaultOptions() Options {
	return Options{Stride: 10, MinAlpha: 128, Step: 10, Limit: 10}
}

// Swatch is one quantized colour bucket.
type Swatch struct {
	Hex        string  `json:"hex"`
	RGB        string  `json:"rgb"`
	R          uint8   `json:"r"`
	G          uint8   `json:"g"`
	B          uint8   `json:"b"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Report lists swatches by descending frequency; the first is dominant.
type Report struct {
	Dominant string   `json:"dominant"`
	Colors   []Swatch `json:"colors"`
	Sampled  int      `json:"sampled"`
}

type bucket struct{ r, g, b uint8 }

func (k bucket) less(o bucket) bool {
	if k.r != o.r {
		return k.r < o.r
	}
	if k.g != o.g {
		return k.g < o.g
	}
	return k.b < o.b
}

// Analyze samples img and buckets the opaque samples. Percentages are of all
// opaque samples, not only the reported ones.
func Analyze(img image.Image, opts Options) (Report, error) {
	def := DefaultOptions()
	if opts.Stride <= 0 {
		opts.Stride = def.Stride
	}
	if opts.Step <= 0 {
		opts.Step = def.Step
	}
	if opts.Limit <= 0 {
		opts.Limit = def.Limit
	}

	b := img.Bounds()
	w, total := b.Dx(), b.Dx()*b.Dy()
	counts := map[bucket]int{}
	sampled := 0
	for i := 0; i < total; i += opts.Stride {
		x, y := b.Min.X+i%w, b.Min.Y+i/w
		c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		if c.A < opts.MinAlpha {
			continue
		}
		counts[bucket{quantize(c.R, opts.Step), quantize(c.G, opts.Step), quantize(c.B, opts.Step)}]++
		sampled++
	}
	if sampled == 0 {
		return Report{}, ErrNoSamples
	}

	keys := make([]bucket, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i].less(keys[j])
	})
	if len(keys) > opts.Limit {
		keys = keys[:opts.Limit]
	}

	rep := Report{Sampled: sampled, Colors: make([]Swatch, 0, len(keys))}
	for _, k := range keys {
		rep.Colors = append(rep.Colors, Swatch{
			Hex:        fmt.Sprintf("#%02x%02x%02x", k.r, k.g, k.b),
			RGB:        fmt.Sprintf("rgb(%d, %d, %d)", k.r, k.g, k.b),
			R:          k.r,
			G:          k.g,
			B:          k.b,
			Count:      counts[k],
			Percentage: float64(counts[k]) * 100 / float64(sampled),
		})
	}
	rep.Dominant = rep.Colors[0].Hex
	return rep, nil
}

// quantize rounds v to the nearest multiple of step, capped at the largest
// multiple that still fits a byte.
func quantize(v uint8, step int) uint8 {
	q := int(math.Round(float64(v)/float64(step))) * step
	return uint8(min(q, 255/step*step))
}
