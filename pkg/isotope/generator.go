package isotope

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/msfeat/pkg/chem"
	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// Method selects the isotope distribution algorithm.
type Method int

const (
	// Auto uses Polynomial up to AutoFFTThreshold atoms and FFT above.
	Auto Method = iota
	Polynomial
	FFT
)

// DefaultResolution is used when Options.Resolution is not positive.
const DefaultResolution = 1.0

// DefaultAutoFFTThreshold is the atom count above which Auto switches to FFT.
const DefaultAutoFFTThreshold = 2000

func (m Method) String() string {
	switch m {
	case Polynomial:
		return "polynomial"
	case FFT:
		return "fft"
	default:
		return "auto"
	}
}

// ParseMethod parses "auto", "polynomial" or "fft".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "polynomial", "poly":
		return Polynomial, nil
	case "fft":
		return FFT, nil
	}
	return Auto, core.InvalidParam("isotope.method", s, "must be auto, polynomial or fft")
}

// Options configures Generate.
type Options struct {
	Method Method
	// Resolution is the mass bin width in Da. Values <= 0 use
	// DefaultResolution.
	Resolution float64
	// MaxIsotopes keeps only offsets below it when positive.
	MaxIsotopes int
	// MinAbundance drops peaks below it before renormalising.
	MinAbundance float64
	// AutoFFTThreshold overrides DefaultAutoFFTThreshold when positive.
	AutoFFTThreshold int
}

// Generate computes the isotope distribution of f using the element table
// db. Elements with a zero count are ignored; negative counts and unknown
// symbols fail with core.ErrInvalidFormula.
func Generate(f chem.Formula, db *chem.DB, opts Options) (Distribution, error) {
	if err := f.Validate(db); err != nil {
		return nil, err
	}
	if opts.MaxIsotopes < 0 {
		return nil, core.InvalidParam("isotope.max_isotopes", opts.MaxIsotopes, "must be non-negative")
	}
	if opts.MinAbundance < 0 || opts.MinAbundance >= 1 {
		return nil, core.InvalidParam("isotope.min_abundance", opts.MinAbundance, "must be in [0, 1)")
	}
	resolution := opts.Resolution
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	method := opts.Method
	if method == Auto {
		threshold := opts.AutoFFTThreshold
		if threshold <= 0 {
			threshold = DefaultAutoFFTThreshold
		}
		method = Polynomial
		if f.AtomCount() > threshold {
			method = FFT
		}
	}

	var (
		d   Distribution
		err error
	)
	switch method {
	case Polynomial:
		d = polynomialDistribution(f, db, resolution)
	case FFT:
		d, err = fftDistribution(f, db, resolution)
		if err != nil {
			return nil, fmt.Errorf("fft isotope distribution of %s: %w", f, err)
		}
	default:
		return nil, core.InvalidParam("isotope.method", int(method), "unknown method")
	}

	d = d.prepare(opts.MinAbundance, opts.MaxIsotopes)
	if len(d) == 0 {
		return nil, fmt.Errorf("%w: no isotope peaks left for %s", core.ErrInsufficientData, f)
	}
	return d, nil
}
