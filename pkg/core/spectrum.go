// Package core provides the signal containers, peak model and error taxonomy
// shared by every msfeat processing stage.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Sample is a single position, intensity pair. Position is m/z for spectra
// and retention time for chromatograms.
type Sample struct {
	Pos       float64
	Intensity float64
}

// Samples is an ordered signal trace. Samples are kept sorted by position.
type Samples []Sample

// IsSorted reports whether samples are in non-decreasing position order.
func (s Samples) IsSorted() bool {
	for i := 1; i < len(s); i++ {
		if s[i].Pos < s[i-1].Pos {
			return false
		}
	}
	return true
}

// Sort sorts samples by position. Equal positions keep their input order.
func (s Samples) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Pos < s[j].Pos
	})
}

// Positions returns a fresh slice with the sample positions.
func (s Samples) Positions() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Pos
	}
	return out
}

// Intensities returns a fresh slice with the sample intensities.
func (s Samples) Intensities() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Intensity
	}
	return out
}

// WithIntensities returns a copy of s whose intensities are replaced by
// values. It panics if the lengths differ.
func (s Samples) WithIntensities(values []float64) Samples {
	if len(values) != len(s) {
		panic(fmt.Sprintf("core: %d intensities for %d samples", len(values), len(s)))
	}
	out := make(Samples, len(s))
	for i := range s {
		out[i] = Sample{Pos: s[i].Pos, Intensity: values[i]}
	}
	return out
}

// Clone returns a deep copy of s.
func (s Samples) Clone() Samples {
	if s == nil {
		return nil
	}
	out := make(Samples, len(s))
	copy(out, s)
	return out
}

// Extent returns the first and last position. Both are zero for an empty
// trace.
func (s Samples) Extent() (lo, hi float64) {
	if len(s) == 0 {
		return 0, 0
	}
	return s[0].Pos, s[len(s)-1].Pos
}

// MeanSpacing returns the average distance between neighbouring samples, or
// zero when fewer than two samples exist.
func (s Samples) MeanSpacing() float64 {
	if len(s) < 2 {
		return 0
	}
	lo, hi := s.Extent()
	return (hi - lo) / float64(len(s)-1)
}

// IndexRange returns the half-open index range [i, j) of samples with
// lo <= Pos <= hi.
func (s Samples) IndexRange(lo, hi float64) (int, int) {
	i := sort.Search(len(s), func(k int) bool { return s[k].Pos >= lo })
	j := sort.Search(len(s), func(k int) bool { return s[k].Pos > hi })
	if j < i {
		j = i
	}
	return i, j
}

// Range returns the sub-slice of samples within [lo, hi]. The result shares
// storage with s.
func (s Samples) Range(lo, hi float64) Samples {
	i, j := s.IndexRange(lo, hi)
	return s[i:j]
}

// MaxIntensity returns the index of the most intense sample, or -1 when s is
// empty. Ties resolve to the lowest index.
func (s Samples) MaxIntensity() int {
	best := -1
	for i, p := range s {
		if best < 0 || p.Intensity > s[best].Intensity {
			best = i
		}
	}
	return best
}

// TotalIntensity returns the sum of intensities.
func (s Samples) TotalIntensity() float64 {
	total := 0.0
	for _, p := range s {
		total += p.Intensity
	}
	return total
}

// Spectrum is a single scan: samples ordered by m/z plus scan metadata.
type Spectrum struct {
	NativeID string
	RT       float64 // retention time in seconds
	MSLevel  int
	Samples  Samples
}

// WithSamples returns a new spectrum with the same metadata and the given
// samples.
func (s *Spectrum) WithSamples(samples Samples) *Spectrum {
	return &Spectrum{
		NativeID: s.NativeID,
		RT:       s.RT,
		MSLevel:  s.MSLevel,
		Samples:  samples,
	}
}

// Validate checks that a spectrum meets all requirements for processing.
func (s *Spectrum) Validate() error {
	var errs []string

	if s.MSLevel < 1 {
		errs = append(errs, "ms level must be positive")
	}
	if math.IsNaN(s.RT) || math.IsInf(s.RT, 0) {
		errs = append(errs, "retention time must be finite")
	}
	errs = append(errs, validateSamples(s.Samples, "m/z")...)

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum " + s.NativeID,
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// Chromatogram is an intensity trace over retention time for one transition.
type Chromatogram struct {
	NativeID    string
	PrecursorMZ float64
	ProductMZ   float64
	Samples     Samples // Pos holds retention time
}

// AsSpectrum returns a spectrum view sharing the chromatogram's samples so
// signal operations apply unchanged.
func (c *Chromatogram) AsSpectrum() *Spectrum {
	return &Spectrum{NativeID: c.NativeID, MSLevel: 1, Samples: c.Samples}
}

// Validate checks that a chromatogram meets all requirements for processing.
func (c *Chromatogram) Validate() error {
	var errs []string
	if c.PrecursorMZ < 0 {
		errs = append(errs, "precursor m/z must be non-negative")
	}
	if c.ProductMZ < 0 {
		errs = append(errs, "product m/z must be non-negative")
	}
	errs = append(errs, validateSamples(c.Samples, "retention time")...)

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Chromatogram " + c.NativeID,
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

func validateSamples(samples Samples, posName string) []string {
	var errs []string
	for i, p := range samples {
		if math.IsNaN(p.Pos) || math.IsInf(p.Pos, 0) {
			errs = append(errs, fmt.Sprintf("sample %d has invalid %s", i, posName))
		}
		if math.IsNaN(p.Intensity) || math.IsInf(p.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("sample %d has invalid intensity", i))
		}
		if p.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("sample %d intensity must be non-negative", i))
		}
	}
	if !samples.IsSorted() {
		errs = append(errs, "samples must be sorted by "+posName)
	}
	return errs
}
