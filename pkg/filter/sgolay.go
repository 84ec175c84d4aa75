package filter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// rankTolerance is the smallest accepted ratio of the smallest to the largest
// singular value of the Vandermonde design matrix.
const rankTolerance = 1e-12

// SavitzkyGolayConfig configures the Savitzky-Golay smoother.
type SavitzkyGolayConfig struct {
	FrameLength     int // odd number of samples per fit
	PolynomialOrder int
}

// Validate checks the frame settings.
func (c SavitzkyGolayConfig) Validate() error {
	if c.PolynomialOrder < 0 {
		return core.InvalidParam("filter.savitzky_golay.polynomial_order", c.PolynomialOrder, "must be non-negative")
	}
	if c.FrameLength < 1 || c.FrameLength%2 == 0 {
		return core.InvalidParam("filter.savitzky_golay.frame_length", c.FrameLength, "must be a positive odd number")
	}
	if c.FrameLength < c.PolynomialOrder+1 {
		return core.InvalidParam("filter.savitzky_golay.frame_length", c.FrameLength,
			fmt.Sprintf("must be at least polynomial_order+1 (%d)", c.PolynomialOrder+1))
	}
	return nil
}

// Apply smooths s by local least-squares polynomial fits. The samples are
// assumed to be evenly spaced.
func (c SavitzkyGolayConfig) Apply(s core.Samples) (core.Samples, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	m := c.FrameLength
	n := len(s)
	if n < m {
		return nil, fmt.Errorf("%w: %d samples for a frame of %d", core.ErrInsufficientData, n, m)
	}
	half := m / 2

	// One coefficient set per evaluation offset within the frame; the centre
	// serves the interior, the others the clipped edges.
	coeffs := make([][]float64, m)
	for e := range coeffs {
		var err error
		coeffs[e], err = savitzkyGolayCoefficients(m, c.PolynomialOrder, e)
		if err != nil {
			return nil, err
		}
	}

	values := s.Intensities()
	out := make([]float64, n)
	for i := range out {
		start, e := i-half, half
		switch {
		case i < half:
			start, e = 0, i
		case i > n-1-half:
			start, e = n-m, i-(n-m)
		}
		sum := 0.0
		for r, w := range coeffs[e] {
			sum += w * values[start+r]
		}
		out[i] = sum
	}
	return s.WithIntensities(out), nil
}

// savitzkyGolayCoefficients returns the weights that evaluate the
// least-squares polynomial of the given order, fitted over m consecutive
// samples, at sample index eval within the frame. The weights are the first
// row of the pseudo-inverse of the Vandermonde matrix centred on eval.
func savitzkyGolayCoefficients(m, order, eval int) ([]float64, error) {
	cols := order + 1
	a := mat.NewDense(m, cols, nil)
	for r := 0; r < m; r++ {
		x := float64(r - eval)
		v := 1.0
		for k := 0; k < cols; k++ {
			a.Set(r, k, v)
			v *= x
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD of %dx%d Savitzky-Golay design matrix did not converge",
			core.ErrNumericalInstability, m, cols)
	}
	sv := svd.Values(nil)
	if sv[0] == 0 || sv[len(sv)-1]/sv[0] < rankTolerance {
		return nil, fmt.Errorf("%w: Savitzky-Golay design matrix is rank deficient (frame %d, order %d)",
			core.ErrNumericalInstability, m, order)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	out := make([]float64, m)
	for r := 0; r < m; r++ {
		w := 0.0
		for k := range sv {
			w += v.At(0, k) / sv[k] * u.At(r, k)
		}
		out[r] = w
	}
	return out, nil
}
