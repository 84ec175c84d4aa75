package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// MorphMethod selects the morphological operator.
type MorphMethod int

const (
	TopHat MorphMethod = iota
	BotHat
	Erosion
	Dilation
	Opening
	Closing
	Gradient
)

var morphNames = map[MorphMethod]string{
	TopHat:   "tophat",
	BotHat:   "bothat",
	Erosion:  "erosion",
	Dilation: "dilation",
	Opening:  "opening",
	Closing:  "closing",
	Gradient: "gradient",
}

func (m MorphMethod) String() string {
	if s, ok := morphNames[m]; ok {
		return s
	}
	return fmt.Sprintf("MorphMethod(%d)", int(m))
}

// ParseMorphMethod parses an operator name such as "tophat".
func ParseMorphMethod(s string) (MorphMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TopHat, nil
	}
	for m, name := range morphNames {
		if name == s {
			return m, nil
		}
	}
	return TopHat, core.InvalidParam("filter.morphological.method", s,
		"must be tophat, bothat, erosion, dilation, opening, closing or gradient")
}

// MorphologicalConfig configures the morphological filter.
type MorphologicalConfig struct {
	Method MorphMethod
	// StructElemLength is the structuring element length in position units,
	// or in samples when InSamples is set.
	StructElemLength float64
	InSamples        bool
}

// Validate checks the structuring element.
func (c MorphologicalConfig) Validate() error {
	if !(c.StructElemLength > 0) || math.IsInf(c.StructElemLength, 0) {
		return core.InvalidParam("filter.morphological.struc_elem_length", c.StructElemLength, "must be positive")
	}
	if _, ok := morphNames[c.Method]; !ok {
		return core.InvalidParam("filter.morphological.method", int(c.Method), "unknown method")
	}
	return nil
}

// ElementSamples converts the structuring element length to an odd sample
// count using the mean sample spacing of s.
func (c MorphologicalConfig) ElementSamples(s core.Samples) int {
	k := c.StructElemLength
	if !c.InSamples {
		spacing := s.MeanSpacing()
		if spacing <= 0 {
			return 1
		}
		k = c.StructElemLength / spacing
	}
	n := int(math.Round(k))
	if n < 1 {
		n = 1
	}
	if n%2 == 0 {
		n++
	}
	return n
}

// Apply runs the configured operator over s.
func (c MorphologicalConfig) Apply(s core.Samples) (core.Samples, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	half := c.ElementSamples(s) / 2
	y := s.Intensities()

	var out []float64
	switch c.Method {
	case Erosion:
		out = erode(y, half)
	case Dilation:
		out = dilate(y, half)
	case Opening:
		out = dilate(erode(y, half), half)
	case Closing:
		out = erode(dilate(y, half), half)
	case Gradient:
		out = subtract(dilate(y, half), erode(y, half))
	case TopHat:
		out = subtract(y, dilate(erode(y, half), half))
	case BotHat:
		out = subtract(erode(dilate(y, half), half), y)
	}
	return s.WithIntensities(out), nil
}

func erode(y []float64, half int) []float64 {
	return slidingExtreme(y, half, func(a, b float64) bool { return a <= b })
}

func dilate(y []float64, half int) []float64 {
	return slidingExtreme(y, half, func(a, b float64) bool { return a >= b })
}

// slidingExtreme returns, for every i, the extreme of y over the clipped
// window [i-half, i+half]. better(a, b) reports whether a should replace b.
// A monotonic deque of indices keeps the pass linear.
func slidingExtreme(y []float64, half int, better func(a, b float64) bool) []float64 {
	n := len(y)
	out := make([]float64, n)
	deque := make([]int, 0, 2*half+1)
	next := 0
	for i := 0; i < n; i++ {
		for ; next < n && next <= i+half; next++ {
			for len(deque) > 0 && better(y[next], y[deque[len(deque)-1]]) {
				deque = deque[:len(deque)-1]
			}
			deque = append(deque, next)
		}
		for deque[0] < i-half {
			deque = deque[1:]
		}
		out[i] = y[deque[0]]
	}
	return out
}

func subtract(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
