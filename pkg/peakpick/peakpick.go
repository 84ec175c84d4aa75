// Package peakpick detects peaks in smoothed profile signals.
//
// Picking runs in three steps: a strategy scans the signal for apex
// candidates, each candidate is measured (boundaries, FWHM, centroid and
// area) and finally validated against the intensity, signal-to-noise and
// width thresholds. Rejected candidates are dropped. The result is always in
// position order and depends only on the input and the configuration.
package peakpick

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChrisMcGann/msfeat/pkg/core"
	"github.com/ChrisMcGann/msfeat/pkg/noise"
)

// Method selects the candidate detection strategy.
type Method int

const (
	// CWT finds candidates as maxima of a Marr wavelet transform.
	CWT Method = iota
	// LocalMax takes strict local maxima of the signal itself.
	LocalMax
)

func (m Method) String() string {
	if m == LocalMax {
		return "local_max"
	}
	return "cwt"
}

// ParseMethod parses "cwt" or "local_max".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cwt", "wavelet":
		return CWT, nil
	case "local_max", "localmax", "hires":
		return LocalMax, nil
	}
	return CWT, core.InvalidParam("peak_picker.method", s, "must be cwt or local_max")
}

// Config holds peak picker settings. Start from DefaultConfig.
type Config struct {
	Method Method

	SignalToNoise      float64 // minimum apex SNR; ignored without a noise estimate
	IntensityThreshold float64 // minimum apex height
	MinFWHM            float64 // minimum FWHM in position units

	// CWT settings.
	PeakWidth            float64 // expected FWHM, also the wavelet scale
	CWTThreshold         float64 // minimum transform value relative to its maximum
	SearchRadius         int     // samples searched around a transform maximum for the raw apex
	CentroidPercentage   float64 // samples above this fraction of the apex form the centroid
	FWHMLowerBoundFactor float64
	FWHMUpperBoundFactor float64

	// CheckNeighbours requires both neighbours of a local maximum to pass
	// the SNR threshold as well.
	CheckNeighbours bool

	// FitGaussian refines apex, height and FWHM by a least-squares Gaussian
	// fit over the peak's samples.
	FitGaussian bool
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Method:               CWT,
		SignalToNoise:        1.0,
		PeakWidth:            0.15,
		CWTThreshold:         0.05,
		SearchRadius:         3,
		CentroidPercentage:   0.8,
		FWHMLowerBoundFactor: 0.7,
		FWHMUpperBoundFactor: 20,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	switch {
	case c.Method != CWT && c.Method != LocalMax:
		return core.InvalidParam("peak_picker.method", int(c.Method), "unknown method")
	case c.SignalToNoise < 0 || math.IsNaN(c.SignalToNoise):
		return core.InvalidParam("peak_picker.signal_to_noise", c.SignalToNoise, "must be non-negative")
	case c.IntensityThreshold < 0 || math.IsNaN(c.IntensityThreshold):
		return core.InvalidParam("peak_picker.intensity_threshold", c.IntensityThreshold, "must be non-negative")
	case c.MinFWHM < 0 || math.IsNaN(c.MinFWHM):
		return core.InvalidParam("peak_picker.min_fwhm", c.MinFWHM, "must be non-negative")
	case c.CentroidPercentage <= 0 || c.CentroidPercentage > 1:
		return core.InvalidParam("peak_picker.centroid_percentage", c.CentroidPercentage, "must be in (0, 1]")
	}
	if c.Method != CWT {
		return nil
	}
	switch {
	case !(c.PeakWidth > 0) || math.IsInf(c.PeakWidth, 0):
		return core.InvalidParam("peak_picker.peak_width", c.PeakWidth, "must be positive")
	case c.CWTThreshold < 0 || c.CWTThreshold > 1:
		return core.InvalidParam("peak_picker.cwt_threshold", c.CWTThreshold, "must be in [0, 1]")
	case c.SearchRadius < 0:
		return core.InvalidParam("peak_picker.search_radius", c.SearchRadius, "must be non-negative")
	case !(c.FWHMLowerBoundFactor > 0):
		return core.InvalidParam("peak_picker.fwhm_lower_bound_factor", c.FWHMLowerBoundFactor, "must be positive")
	case c.FWHMUpperBoundFactor <= c.FWHMLowerBoundFactor:
		return core.InvalidParam("peak_picker.fwhm_upper_bound_factor", c.FWHMUpperBoundFactor,
			"must exceed fwhm_lower_bound_factor")
	}
	return nil
}

// Pick detects the peaks of s. est may be nil, in which case the SNR
// threshold is not applied and peaks report an SNR of zero.
func Pick(s core.Samples, est *noise.Estimate, cfg Config) (core.Peaks, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !s.IsSorted() {
		return nil, fmt.Errorf("%w: samples must be sorted by position", core.ErrInvalidParameter)
	}
	if len(s) < 3 {
		return nil, fmt.Errorf("%w: peak picking needs at least 3 samples, got %d", core.ErrInsufficientData, len(s))
	}
	if est != nil && len(est.Noise) != len(s) {
		return nil, core.InvalidParam("noise", len(est.Noise), fmt.Sprintf("noise estimate covers %d samples, signal has %d", len(est.Noise), len(s)))
	}

	p := picker{cfg: cfg, s: s, est: est}
	var candidates []candidate
	switch cfg.Method {
	case LocalMax:
		candidates = p.localMaxima()
	default:
		candidates = p.waveletMaxima()
	}

	peaks := make(core.Peaks, 0, len(candidates))
	for _, c := range candidates {
		pk, ok := p.measure(c)
		if !ok || !p.accept(pk) {
			continue
		}
		peaks = append(peaks, pk)
	}
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].Pos < peaks[j].Pos })
	return peaks, nil
}

// PickSpectrum picks the peaks of a spectrum.
func PickSpectrum(spec *core.Spectrum, est *noise.Estimate, cfg Config) (core.Peaks, error) {
	peaks, err := Pick(spec.Samples, est, cfg)
	if err != nil {
		return nil, fmt.Errorf("pick %s: %w", spec.NativeID, err)
	}
	return peaks, nil
}

// candidate is an apex sample index with an optional interpolated apex.
type candidate struct {
	apex       int
	pos, inten float64
	refined    bool
}

type picker struct {
	cfg Config
	s   core.Samples
	est *noise.Estimate
}

func (p *picker) noiseAt(i int) float64 {
	if p.est == nil {
		return 0
	}
	return p.est.Noise[i]
}

func (p *picker) snr(i int, intensity float64) float64 {
	if p.est == nil {
		return 0
	}
	return p.est.SNR(i, intensity)
}

// measure derives the shape attributes of a candidate. It reports false
// for candidates without a positive apex.
func (p *picker) measure(c candidate) (core.Peak, bool) {
	s := p.s
	apex := c.apex
	height := s[apex].Intensity
	if c.refined {
		height = c.inten
	}
	if !(height > 0) {
		return core.Peak{}, false
	}

	// Walk outward while the signal keeps falling and is above the noise.
	left := apex
	for left > 0 && s[left-1].Intensity < s[left].Intensity && s[left].Intensity > p.noiseAt(left) {
		left--
	}
	right := apex
	for right < len(s)-1 && s[right+1].Intensity < s[right].Intensity && s[right].Intensity > p.noiseAt(right) {
		right++
	}

	pk := core.Peak{
		Pos:       s[apex].Pos,
		Intensity: height,
		Left:      s[left].Pos,
		Right:     s[right].Pos,
		FWHM:      fwhm(s, apex, left, right, height),
		Area:      area(s, left, right),
	}
	if c.refined {
		pk.Pos = c.pos
	} else {
		pk.Pos = centroid(s, apex, left, right, p.cfg.CentroidPercentage)
	}

	if p.cfg.FitGaussian {
		if fitted, ok := fitGaussian(s[left:right+1], pk); ok {
			pk = fitted
		}
	}
	pk.SNR = p.snr(apex, pk.Intensity)

	if p.cfg.Method == CWT {
		if pk.FWHM < p.cfg.FWHMLowerBoundFactor*p.cfg.PeakWidth || pk.FWHM > p.cfg.FWHMUpperBoundFactor*p.cfg.PeakWidth {
			return core.Peak{}, false
		}
	}
	return pk, true
}

func (p *picker) accept(pk core.Peak) bool {
	if pk.Intensity < p.cfg.IntensityThreshold {
		return false
	}
	if p.est != nil && pk.SNR < p.cfg.SignalToNoise {
		return false
	}
	return pk.FWHM >= p.cfg.MinFWHM
}

// fwhm interpolates the half-height crossings on both flanks. A flank that
// never falls below half height is cut at the peak boundary.
func fwhm(s core.Samples, apex, left, right int, height float64) float64 {
	half := height / 2
	lx := s[left].Pos
	for j := apex; j > left; j-- {
		if s[j-1].Intensity <= half {
			lx = crossing(s[j-1], s[j], half)
			break
		}
	}
	rx := s[right].Pos
	for j := apex; j < right; j++ {
		if s[j+1].Intensity <= half {
			rx = crossing(s[j+1], s[j], half)
			break
		}
	}
	return rx - lx
}

// crossing returns the position where the line from low to high reaches y.
// low is below y, high above it.
func crossing(low, high core.Sample, y float64) float64 {
	return low.Pos + (y-low.Intensity)*(high.Pos-low.Pos)/(high.Intensity-low.Intensity)
}

// centroid is the intensity-weighted mean position of the contiguous run of
// samples around the apex at or above frac of the apex height.
func centroid(s core.Samples, apex, left, right int, frac float64) float64 {
	thr := frac * s[apex].Intensity
	a, b := apex, apex
	for a > left && s[a-1].Intensity >= thr {
		a--
	}
	for b < right && s[b+1].Intensity >= thr {
		b++
	}
	var wx, w float64
	for _, q := range s[a : b+1] {
		wx += q.Pos * q.Intensity
		w += q.Intensity
	}
	if w == 0 {
		return s[apex].Pos
	}
	return wx / w
}

func area(s core.Samples, left, right int) float64 {
	total := 0.0
	for j := left; j < right; j++ {
		total += (s[j+1].Pos - s[j].Pos) * (s[j].Intensity + s[j+1].Intensity) / 2
	}
	return total
}
