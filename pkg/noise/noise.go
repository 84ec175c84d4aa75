// Package noise estimates the local noise level of a signal with sliding
// window statistics.
//
// Windows are centred on each sample and measured in position units. Near
// the ends of the signal the window is truncated to the available samples,
// so every sample receives a defined estimate.
package noise

import (
	"fmt"
	"math"
	"strings"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// Method selects the noise statistic.
type Method int

const (
	// MeanIterative reports the mean after iteratively excluding samples
	// above Multiplier times the current mean.
	MeanIterative Method = iota
	// Median reports the window median from a fixed-bin histogram.
	Median
)

func (m Method) String() string {
	if m == Median {
		return "median"
	}
	return "mean_iterative"
}

// ParseMethod parses "mean_iterative" or "median".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mean_iterative", "meaniterative":
		return MeanIterative, nil
	case "median":
		return Median, nil
	}
	return MeanIterative, core.InvalidParam("noise.method", s, "must be mean_iterative or median")
}

// Config holds estimator settings. Zero values take the defaults below.
type Config struct {
	Method      Method
	WindowWidth float64 // window width in position units

	// Mean-iterative settings.
	Multiplier    float64 // default 3
	MaxIterations int     // default 10

	// Median settings.
	BinCount        int     // default 30
	MaxIntensity    float64 // histogram ceiling; <= 0 selects it automatically
	AutoStdevFactor float64 // automatic ceiling is mean + factor*stdev; default 3
}

// Defaults.
const (
	DefaultMultiplier      = 3.0
	DefaultMaxIterations   = 10
	DefaultBinCount        = 30
	DefaultAutoStdevFactor = 3.0
)

func (c Config) withDefaults() Config {
	if c.Multiplier == 0 {
		c.Multiplier = DefaultMultiplier
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.BinCount == 0 {
		c.BinCount = DefaultBinCount
	}
	if c.AutoStdevFactor == 0 {
		c.AutoStdevFactor = DefaultAutoStdevFactor
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.WindowWidth <= 0 || math.IsNaN(c.WindowWidth) {
		return core.InvalidParam("noise.window_width", c.WindowWidth, "must be positive")
	}
	if c.Multiplier < 1 {
		return core.InvalidParam("noise.multiplier", c.Multiplier, "must be at least 1")
	}
	if c.MaxIterations < 1 {
		return core.InvalidParam("noise.max_iterations", c.MaxIterations, "must be positive")
	}
	if c.BinCount < 1 {
		return core.InvalidParam("noise.bin_count", c.BinCount, "must be positive")
	}
	if c.AutoStdevFactor < 0 {
		return core.InvalidParam("noise.auto_stdev_factor", c.AutoStdevFactor, "must be non-negative")
	}
	if c.Method != MeanIterative && c.Method != Median {
		return core.InvalidParam("noise.method", int(c.Method), "unknown method")
	}
	return nil
}

// Estimate holds per-sample noise levels.
type Estimate struct {
	Method Method
	Noise  []float64
	// Converged is false when at least one mean-iterative window hit the
	// iteration bound; those windows report their last estimate.
	Converged   bool
	Unconverged int
}

// SNR returns intensity divided by the noise at sample i. With zero noise
// it is +Inf for positive intensity and 0 otherwise.
func (e *Estimate) SNR(i int, intensity float64) float64 {
	n := e.Noise[i]
	if n <= 0 {
		if intensity > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return intensity / n
}

// Estimate computes the noise level of every sample of s.
func (c Config) Estimate(s core.Samples) (*Estimate, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c = c.withDefaults()

	if len(s) < 2 {
		return nil, fmt.Errorf("%w: noise estimation needs at least 2 samples, got %d", core.ErrInsufficientData, len(s))
	}
	lo, hi := s.Extent()
	if c.WindowWidth > hi-lo {
		return nil, fmt.Errorf("%w: noise window %g exceeds signal extent %g", core.ErrInsufficientData, c.WindowWidth, hi-lo)
	}

	switch c.Method {
	case Median:
		return c.median(s), nil
	default:
		return c.meanIterative(s), nil
	}
}

// window tracks the half-open index range of samples within half a window
// width of a moving centre.
type window struct {
	s      core.Samples
	half   float64
	lo, hi int
}

// advance moves the window to centre on sample i. Centres must not
// decrease between calls.
func (w *window) advance(i int) {
	x := w.s[i].Pos
	for w.hi < len(w.s) && w.s[w.hi].Pos <= x+w.half {
		w.hi++
	}
	for w.lo < len(w.s) && w.s[w.lo].Pos < x-w.half {
		w.lo++
	}
}
