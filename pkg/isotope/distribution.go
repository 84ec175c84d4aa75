// Package isotope computes theoretical isotope distributions of elemental
// formulas by polynomial expansion or by FFT convolution, and scores
// observed isotope envelopes against them.
package isotope

import (
	"math"
	"sort"
)

// Peak is one isotope peak. Offset counts resolution units above the
// all-lightest-isotope mass; at resolution 1 it is the nominal mass offset.
type Peak struct {
	Offset    int
	Mass      float64
	Abundance float64
}

// Distribution is an isotope pattern in offset order. Abundances sum to 1.
type Distribution []Peak

// Sum returns the total abundance.
func (d Distribution) Sum() float64 {
	s := 0.0
	for _, p := range d {
		s += p.Abundance
	}
	return s
}

// MostAbundant returns the tallest peak. Ties resolve to the lower offset.
func (d Distribution) MostAbundant() Peak {
	var best Peak
	for i, p := range d {
		if i == 0 || p.Abundance > best.Abundance {
			best = p
		}
	}
	return best
}

// AverageMass returns the abundance-weighted mean mass.
func (d Distribution) AverageMass() float64 {
	m, s := 0.0, 0.0
	for _, p := range d {
		m += p.Mass * p.Abundance
		s += p.Abundance
	}
	if s == 0 {
		return 0
	}
	return m / s
}

// Abundance returns the abundance at offset, zero if absent.
func (d Distribution) Abundance(offset int) float64 {
	i := sort.Search(len(d), func(k int) bool { return d[k].Offset >= offset })
	if i < len(d) && d[i].Offset == offset {
		return d[i].Abundance
	}
	return 0
}

// Dense returns abundances for offsets 0..n-1, zero filled.
func (d Distribution) Dense(n int) []float64 {
	out := make([]float64, n)
	for _, p := range d {
		if p.Offset >= 0 && p.Offset < n {
			out[p.Offset] = p.Abundance
		}
	}
	return out
}

// prepare drops peaks below minAbundance, keeps the first maxIsotopes offsets
// when maxIsotopes > 0 and renormalises. It returns a new distribution.
func (d Distribution) prepare(minAbundance float64, maxIsotopes int) Distribution {
	out := make(Distribution, 0, len(d))
	for _, p := range d {
		if p.Abundance <= 0 || p.Abundance < minAbundance || math.IsNaN(p.Abundance) {
			continue
		}
		if maxIsotopes > 0 && p.Offset >= maxIsotopes {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })

	s := out.Sum()
	if s > 0 {
		for i := range out {
			out[i].Abundance /= s
		}
	}
	return out
}

// Similarity returns the cosine similarity between observed intensities,
// indexed by isotope offset from 0, and the first len(observed) offsets of d.
func Similarity(observed []float64, d Distribution) float64 {
	theo := d.Dense(len(observed))
	dot, no, nt := 0.0, 0.0, 0.0
	for i := range observed {
		dot += observed[i] * theo[i]
		no += observed[i] * observed[i]
		nt += theo[i] * theo[i]
	}
	if no == 0 || nt == 0 {
		return 0
	}
	return dot / math.Sqrt(no*nt)
}
