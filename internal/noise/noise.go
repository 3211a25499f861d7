// Package noise produces the scalar grain samples injected by the pipeline.
//
// Randomness is never taken from global state: callers pass a Source, which
// is seeded for reproducible renders and entropy-backed in production.
package noise

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
)

// Kind selects the noise distribution.
type Kind string

const (
	Uniform  Kind = "uniform"
	Gaussian Kind = "gaussian"
)

// ParseKind converts a user-facing name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Uniform, Gaussian:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("noise: unknown kind %q", s)
	}
}

// Valid reports whether k names a supported distribution.
func (k Kind) Valid() bool { return k == Uniform || k == Gaussian }

// Source yields uniformly distributed values in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
}

// NewSeeded returns a deterministic source; equal seeds produce equal streams.
func NewSeeded(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewEntropy returns a source seeded from the operating system's CSPRNG.
func NewEntropy() Source {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to the runtime's seed.
		binary.LittleEndian.PutUint64(seed[:8], rand.Uint64())
	}
	return rand.New(rand.NewChaCha8(seed))
}

// Sample draws one noise value of the given kind scaled by intensity.
//
// Uniform values lie in [-intensity/2, intensity/2). Gaussian values use the
// Box–Muller transform with standard deviation intensity/3.
func Sample(src Source, kind Kind, intensity float64) float64 {
	if kind == Gaussian {
		// 1-U keeps u1 in (0, 1] so the logarithm stays finite.
		u1 := 1 - src.Float64()
		u2 := src.Float64()
		return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2) * (intensity / 3)
	}
	return (src.Float64() - 0.5) * intensity
}

// Sampler binds a source to a distribution and intensity.
type Sampler struct {
	Source    Source
	Kind      Kind
	Intensity float64
}

// Next draws the next value.
func (s Sampler) Next() float64 { return Sample(s.Source, s.Kind, s.Intensity) }
