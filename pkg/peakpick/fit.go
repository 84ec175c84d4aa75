package peakpick

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// fwhmPerSigma converts a Gaussian standard deviation to its FWHM.
var fwhmPerSigma = 2 * math.Sqrt(2*math.Ln2)

// fitGaussian fits h*exp(-(x-mu)^2/(2*sigma^2)) to pts, starting from the
// measured peak. The fit is rejected unless the apex stays inside pts and
// the parameters are positive.
func fitGaussian(pts core.Samples, pk core.Peak) (core.Peak, bool) {
	if len(pts) < 4 || !(pk.FWHM > 0) {
		return pk, false
	}

	// We use the gonum.optimize package to find the best parameters:
	// https://pkg.go.dev/gonum.org/v1/gonum/optimize#Minimize
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			h, mu, sigma := x[0], x[1], math.Abs(x[2])
			if sigma == 0 {
				return math.MaxFloat64
			}
			sum := 0.0
			for _, q := range pts {
				d := (q.Pos - mu) / sigma
				r := h*math.Exp(-0.5*d*d) - q.Intensity
				sum += r * r
			}
			return sum
		},
	}
	start := []float64{pk.Intensity, pk.Pos, pk.FWHM / fwhmPerSigma}
	res, err := optimize.Minimize(problem, start, nil, nil)
	if err != nil {
		return pk, false
	}

	h, mu, sigma := res.X[0], res.X[1], math.Abs(res.X[2])
	if !(h > 0) || !(sigma > 0) || mu < pts[0].Pos || mu > pts[len(pts)-1].Pos {
		return pk, false
	}
	pk.Pos = mu
	pk.Intensity = h
	pk.FWHM = fwhmPerSigma * sigma
	return pk, true
}
