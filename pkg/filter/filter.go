// Package filter provides smoothing and baseline filters for profile signals
// and filters for picked peak lists.
//
// All signal filters return a new trace of the same length and leave their
// input untouched. Windows near either end of the signal are clipped to the
// available samples: no synthetic samples are ever introduced. The Gaussian
// filter renormalises its clipped kernel, Savitzky-Golay evaluates the
// nearest full frame off-centre, and the morphological operators take their
// minimum or maximum over the clipped element.
package filter

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// Kind selects the smoothing strategy.
type Kind int

const (
	// None passes the signal through unchanged.
	None Kind = iota
	Gaussian
	SavitzkyGolay
	Morphological
)

func (k Kind) String() string {
	switch k {
	case Gaussian:
		return "gaussian"
	case SavitzkyGolay:
		return "savitzky_golay"
	case Morphological:
		return "morphological"
	default:
		return "none"
	}
}

// ParseKind parses a filter name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "gaussian", "gauss":
		return Gaussian, nil
	case "savitzky_golay", "savitzkygolay", "sgolay":
		return SavitzkyGolay, nil
	case "morphological", "morph":
		return Morphological, nil
	}
	return None, core.InvalidParam("filter.kind", s, "must be none, gaussian, savitzky_golay or morphological")
}

// Config holds filtering configuration. Only the section matching Kind is
// used.
type Config struct {
	Kind          Kind
	Gaussian      GaussianConfig
	SavitzkyGolay SavitzkyGolayConfig
	Morphological MorphologicalConfig
}

// Apply runs the configured filter over s and returns the filtered trace.
func (c *Config) Apply(s core.Samples) (core.Samples, error) {
	if !s.IsSorted() {
		return nil, fmt.Errorf("%w: samples must be sorted by position", core.ErrInvalidParameter)
	}

	switch c.Kind {
	case None:
		return s.Clone(), nil
	case Gaussian:
		return c.Gaussian.Apply(s)
	case SavitzkyGolay:
		return c.SavitzkyGolay.Apply(s)
	case Morphological:
		return c.Morphological.Apply(s)
	default:
		return nil, core.InvalidParam("filter.kind", int(c.Kind), "unknown filter")
	}
}

// ApplySpectrum filters a spectrum and returns a new spectrum with the same
// metadata.
func (c *Config) ApplySpectrum(spec *core.Spectrum) (*core.Spectrum, error) {
	samples, err := c.Apply(spec.Samples)
	if err != nil {
		return nil, fmt.Errorf("%s filter on %s: %w", c.Kind, spec.NativeID, err)
	}
	return spec.WithSamples(samples), nil
}
