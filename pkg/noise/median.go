package noise

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

func (c Config) median(s core.Samples) *Estimate {
	est := &Estimate{Method: Median, Noise: make([]float64, len(s)), Converged: true}

	ceiling := c.MaxIntensity
	if ceiling <= 0 {
		mean, std := stat.MeanStdDev(s.Intensities(), nil)
		ceiling = mean + c.AutoStdevFactor*std
	}
	if ceiling <= 0 {
		// All intensities are zero.
		return est
	}
	binWidth := ceiling / float64(c.BinCount)
	bin := func(v float64) int {
		b := int(v / binWidth)
		if b >= c.BinCount {
			b = c.BinCount - 1
		}
		if b < 0 {
			b = 0
		}
		return b
	}

	hist := make([]int, c.BinCount)
	w := window{s: s, half: c.WindowWidth / 2}
	for i := range s {
		prevLo, prevHi := w.lo, w.hi
		w.advance(i)
		for k := prevHi; k < w.hi; k++ {
			hist[bin(s[k].Intensity)]++
		}
		for k := prevLo; k < w.lo; k++ {
			hist[bin(s[k].Intensity)]--
		}

		// Lower median rank, 1-based.
		rank := (w.hi - w.lo + 1) / 2
		seen := 0
		for b, n := range hist {
			seen += n
			if seen >= rank {
				est.Noise[i] = (float64(b) + 0.5) * binWidth
				break
			}
		}
	}
	return est
}
