package filter

import (
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// GaussianConfig configures the Gaussian smoother.
type GaussianConfig struct {
	// Width is the kernel footprint in position units. The standard
	// deviation is Width/8, so the kernel spans ±4σ.
	Width float64
	// UsePPM scales the width with position: at x it is PPMTolerance*1e-6*x.
	UsePPM       bool
	PPMTolerance float64
}

// Validate checks the kernel settings.
func (g GaussianConfig) Validate() error {
	if g.UsePPM {
		if !(g.PPMTolerance > 0) {
			return core.InvalidParam("filter.gaussian.ppm_tolerance", g.PPMTolerance, "must be positive")
		}
		return nil
	}
	if !(g.Width > 0) || math.IsInf(g.Width, 0) {
		return core.InvalidParam("filter.gaussian.gaussian_width", g.Width, "must be positive")
	}
	return nil
}

func (g GaussianConfig) sigma(x float64) float64 {
	if g.UsePPM {
		return g.PPMTolerance * 1e-6 * math.Abs(x) / 8
	}
	return g.Width / 8
}

// Apply convolves s with a normalised Gaussian evaluated at the actual
// sample distances, so irregular spacing is handled without resampling.
func (g GaussianConfig) Apply(s core.Samples) (core.Samples, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	values := s.Intensities()
	out := make([]float64, len(s))
	weights := make([]float64, 0, 64)
	prod := make([]float64, 0, 64)

	for i, p := range s {
		sigma := g.sigma(p.Pos)
		if sigma <= 0 {
			out[i] = p.Intensity
			continue
		}
		lo, hi := s.IndexRange(p.Pos-4*sigma, p.Pos+4*sigma)

		weights = resize(weights, hi-lo)
		for j := lo; j < hi; j++ {
			d := (s[j].Pos - p.Pos) / sigma
			weights[j-lo] = math.Exp(-0.5 * d * d)
		}
		prod = resize(prod, hi-lo)
		vecmath.MulBlock(prod, weights, values[lo:hi])

		norm := floats.Sum(weights)
		if norm == 0 {
			out[i] = p.Intensity
			continue
		}
		out[i] = floats.Sum(prod) / norm
	}
	return s.WithIntensities(out), nil
}

// resize returns buf with length n, reallocating when its capacity is short.
func resize(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n, 2*n)
	}
	return buf[:n]
}
