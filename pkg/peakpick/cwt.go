package peakpick

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// marrReach is the wavelet support in units of the scale.
const marrReach = 5.0

// marr is the Mexican hat wavelet at t scale units from its centre.
func marr(t float64) float64 {
	t2 := t * t
	return (1 - t2) * math.Exp(-t2/2)
}

// transform correlates the signal with a Marr wavelet of the given scale by
// numerical integration over the sample positions.
func (p *picker) transform(scale float64) []float64 {
	s := p.s
	values := s.Intensities()
	widths := make([]float64, len(s))
	for j := range s {
		lo, hi := j, j
		if j > 0 {
			lo = j - 1
		}
		if j < len(s)-1 {
			hi = j + 1
		}
		widths[j] = (s[hi].Pos - s[lo].Pos) / float64(hi-lo)
	}

	out := make([]float64, len(s))
	kernel := make([]float64, 0, 64)
	norm := 1 / math.Sqrt(scale)
	for i, x := range s {
		lo, hi := s.IndexRange(x.Pos-marrReach*scale, x.Pos+marrReach*scale)
		kernel = resize(kernel, hi-lo)
		for j := lo; j < hi; j++ {
			kernel[j-lo] = marr((s[j].Pos-x.Pos)/scale) * widths[j]
		}
		out[i] = norm * floats.Dot(kernel, values[lo:hi])
	}
	return out
}

// waveletMaxima returns one candidate per local maximum of the wavelet
// transform above the relative threshold, snapped to the highest raw sample
// within the search radius.
func (p *picker) waveletMaxima() []candidate {
	s := p.s
	w := p.transform(p.cfg.PeakWidth)
	maxW := floats.Max(w)
	if !(maxW > 0) {
		return nil
	}
	thr := p.cfg.CWTThreshold * maxW

	var out []candidate
	last := -1
	for i := 1; i < len(w)-1; i++ {
		if !(w[i] > w[i-1] && w[i] >= w[i+1]) || w[i] <= 0 || w[i] < thr {
			continue
		}
		lo, hi := i-p.cfg.SearchRadius, i+p.cfg.SearchRadius
		if lo < 0 {
			lo = 0
		}
		if hi > len(s)-1 {
			hi = len(s) - 1
		}
		apex := lo
		for j := lo + 1; j <= hi; j++ {
			if s[j].Intensity > s[apex].Intensity {
				apex = j
			}
		}
		// Transform maxima are visited in order, so duplicates are adjacent.
		if apex <= last {
			continue
		}
		last = apex
		out = append(out, candidate{apex: apex})
	}
	return out
}

func resize(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n, 2*n)
	}
	return buf[:n]
}
