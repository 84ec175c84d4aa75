// Package resample converts irregularly spaced signals onto a uniform grid
// by linear interpolation.
package resample

import (
	"fmt"
	"math"
	"sort"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// gridEpsilon absorbs floating point error when counting grid points, so a
// range that is an exact multiple of the spacing keeps its last point.
const gridEpsilon = 1e-9

type options struct {
	align bool
}

// Option configures Resample.
type Option func(*options)

// AlignToSpacing anchors the grid at integer multiples of the spacing. The
// grid then spans floor(first/spacing) to ceil(last/spacing) and points
// outside the input range are zero.
func AlignToSpacing() Option {
	return func(o *options) { o.align = true }
}

// Resample returns s interpolated onto a uniform grid of the given spacing.
// By default the grid starts at the first input position.
func Resample(s core.Samples, spacing float64, opts ...Option) (core.Samples, error) {
	if spacing <= 0 || math.IsNaN(spacing) || math.IsInf(spacing, 0) {
		return nil, core.InvalidParam("resample.spacing", spacing, "must be a positive finite number")
	}
	if len(s) < 2 {
		return nil, core.InvalidParam("resample.samples", len(s), "at least 2 samples required")
	}
	if !s.IsSorted() {
		return nil, fmt.Errorf("%w: samples must be sorted by position", core.ErrInvalidParameter)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	first, last := s.Extent()
	base := 0.0
	n := int(math.Floor((last-first)/spacing+gridEpsilon)) + 1
	if o.align {
		base = math.Floor(first/spacing + gridEpsilon)
		n = int(math.Ceil(last/spacing-gridEpsilon)-base) + 1
	}

	out := make(core.Samples, n)
	j := 0
	for k := 0; k < n; k++ {
		x := first + float64(k)*spacing
		if o.align {
			x = (base + float64(k)) * spacing
		}
		out[k] = core.Sample{Pos: x, Intensity: interpolate(s, x, &j)}
	}
	return out, nil
}

// Spectrum resamples a spectrum and returns a new spectrum with the same
// metadata.
func Spectrum(spec *core.Spectrum, spacing float64, opts ...Option) (*core.Spectrum, error) {
	samples, err := Resample(spec.Samples, spacing, opts...)
	if err != nil {
		return nil, fmt.Errorf("resample %s: %w", spec.NativeID, err)
	}
	return spec.WithSamples(samples), nil
}

// interpolate returns the linearly interpolated intensity at x. hint is the
// index of the segment found for the previous, smaller x.
func interpolate(s core.Samples, x float64, hint *int) float64 {
	first, last := s.Extent()
	if x < first-gridEpsilon*math.Max(1, math.Abs(first)) || x > last+gridEpsilon*math.Max(1, math.Abs(last)) {
		return 0
	}

	// Advance to the segment [j, j+1] containing x.
	j := *hint
	if j >= len(s)-1 || s[j].Pos > x {
		j = sort.Search(len(s), func(k int) bool { return s[k].Pos > x }) - 1
	}
	for j < len(s)-2 && s[j+1].Pos <= x {
		j++
	}
	if j > len(s)-2 {
		j = len(s) - 2
	}
	if j < 0 {
		j = 0
	}
	*hint = j

	a, b := s[j], s[j+1]
	if b.Pos == a.Pos {
		return a.Intensity
	}
	t := (x - a.Pos) / (b.Pos - a.Pos)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return a.Intensity + t*(b.Intensity-a.Intensity)
}
