package isotope

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/ChrisMcGann/msfeat/pkg/chem"
	"github.com/ChrisMcGann/msfeat/pkg/core"
)

const (
	// fftMinSize is the smallest transform length used.
	fftMinSize = 16
	// fftMaxSize caps the transform length for very fine resolutions.
	fftMaxSize = 1 << 22
	// fftSigmaSpan is the half window, in standard deviations, covered by
	// the transform.
	fftSigmaSpan = 15
	// fftDropBelow discards round-off noise in the inverse transform.
	fftDropBelow = 1e-12
)

type elementBins struct {
	count int
	bins  []int
	probs []float64
	mean  float64
	vari  float64
}

func binElement(e *chem.Element, n int, resolution float64) elementBins {
	light := e.Isotopes[0].Mass
	eb := elementBins{count: n}
	m1, m2 := 0.0, 0.0
	for _, iso := range e.Isotopes {
		b := int(math.Round((iso.Mass - light) / resolution))
		eb.bins = append(eb.bins, b)
		eb.probs = append(eb.probs, iso.Abundance)
		m1 += iso.Abundance * float64(b)
		m2 += iso.Abundance * float64(b) * float64(b)
	}
	eb.mean = m1
	eb.vari = m2 - m1*m1
	return eb
}

// fftSize returns the power-of-two transform length covering
// ±fftSigmaSpan standard deviations plus the widest single-atom span.
func fftSize(variance float64, span int) int {
	want := 2*int(math.Ceil(fftSigmaSpan*math.Sqrt(1+variance))) + 2*span
	n := fftMinSize
	for n < want {
		n <<= 1
	}
	return n
}

// fftDistribution computes the isotope distribution of f as the product of
// per-element characteristic functions raised to the atom counts.
func fftDistribution(f chem.Formula, db *chem.DB, resolution float64) (Distribution, error) {
	var elements []elementBins
	mean, variance := 0.0, 0.0
	span := 0
	lightMass, avgMass := 0.0, 0.0
	for _, s := range f.Symbols() {
		n := f[s]
		if n == 0 {
			continue
		}
		e, _ := db.Lookup(s)
		eb := binElement(e, n, resolution)
		elements = append(elements, eb)
		mean += float64(n) * eb.mean
		variance += float64(n) * eb.vari
		if last := eb.bins[len(eb.bins)-1]; last > span {
			span = last
		}
		lightMass += float64(n) * e.Isotopes[0].Mass
		avgMass += float64(n) * e.AverageWeight()
	}
	if len(elements) == 0 {
		return Distribution{{Offset: 0, Mass: 0, Abundance: 1}}, nil
	}

	size := fftSize(variance, span)
	if size > fftMaxSize {
		return nil, fmt.Errorf("%w: transform length %d exceeds %d; use a coarser resolution",
			core.ErrInvalidParameter, size, fftMaxSize)
	}

	fft := fourier.NewCmplxFFT(size)
	spectrum := make([]complex128, size)
	for i := range spectrum {
		spectrum[i] = 1
	}
	atom := make([]complex128, size)
	coeffs := make([]complex128, size)
	for _, eb := range elements {
		for i := range atom {
			atom[i] = 0
		}
		for k, b := range eb.bins {
			atom[b%size] += complex(eb.probs[k], 0)
		}
		coeffs = fft.Coefficients(coeffs, atom)
		n := float64(eb.count)
		for i, c := range coeffs {
			r := cmplx.Abs(c)
			if r == 0 {
				spectrum[i] = 0
				continue
			}
			spectrum[i] *= cmplx.Rect(math.Pow(r, n), n*cmplx.Phase(c))
		}
	}
	seq := fft.Sequence(nil, spectrum)

	// The result is circular; read it back into the window centred on the
	// mean offset.
	centre := int(math.Round(mean))
	start := centre - size/2
	spacing := resolution
	if mean > 0 {
		spacing = (avgMass - lightMass) / mean
	}

	scale := 0.0
	for _, v := range seq {
		scale += real(v)
	}
	if scale <= 0 || math.IsNaN(scale) {
		return nil, fmt.Errorf("%w: degenerate inverse transform", core.ErrNumericalInstability)
	}

	out := make(Distribution, 0, size)
	for k := 0; k < size; k++ {
		offset := start + k
		v := real(seq[mod(offset, size)]) / scale
		if offset < 0 || v < fftDropBelow {
			continue
		}
		out = append(out, Peak{
			Offset:    offset,
			Mass:      lightMass + float64(offset)*spacing,
			Abundance: v,
		})
	}
	return out, nil
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
