package noise

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

func (c Config) meanIterative(s core.Samples) *Estimate {
	est := &Estimate{Method: MeanIterative, Noise: make([]float64, len(s)), Converged: true}
	w := window{s: s, half: c.WindowWidth / 2}
	kept := make([]float64, 0, 64)
	next := make([]float64, 0, 64)

	for i := range s {
		w.advance(i)
		kept = kept[:0]
		for _, p := range s[w.lo:w.hi] {
			kept = append(kept, p.Intensity)
		}

		mean, converged := iterateMean(kept, next, c.Multiplier, c.MaxIterations)
		est.Noise[i] = mean
		if !converged {
			est.Converged = false
			est.Unconverged++
		}
	}
	return est
}

// iterateMean drops values above multiplier*mean until nothing changes or
// maxIter exclusion rounds ran. scratch is reused storage.
func iterateMean(values, scratch []float64, multiplier float64, maxIter int) (float64, bool) {
	mean := stat.Mean(values, nil)
	for iter := 0; iter < maxIter; iter++ {
		cutoff := multiplier * mean
		scratch = scratch[:0]
		for _, v := range values {
			if v <= cutoff {
				scratch = append(scratch, v)
			}
		}
		if len(scratch) == len(values) || len(scratch) == 0 {
			return mean, true
		}
		values, scratch = scratch, values
		mean = stat.Mean(values, nil)
	}

	// Converged only if the final mean would exclude nothing more.
	cutoff := multiplier * mean
	for _, v := range values {
		if v > cutoff {
			return mean, false
		}
	}
	return mean, true
}
