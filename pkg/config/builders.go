package config

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/msfeat/pkg/align"
	"github.com/ChrisMcGann/msfeat/pkg/chem"
	"github.com/ChrisMcGann/msfeat/pkg/feature"
	"github.com/ChrisMcGann/msfeat/pkg/filter"
	"github.com/ChrisMcGann/msfeat/pkg/isotope"
	"github.com/ChrisMcGann/msfeat/pkg/noise"
	"github.com/ChrisMcGann/msfeat/pkg/peakpick"
	"github.com/ChrisMcGann/msfeat/pkg/resample"
)

// ResampleOptions returns the resampling options, or ok=false when
// resampling is disabled.
func (c *Config) ResampleOptions() (spacing float64, opts []resample.Option, ok bool) {
	if !c.Resample.Enabled {
		return 0, nil, false
	}
	if c.Resample.AlignToSpacing {
		opts = append(opts, resample.AlignToSpacing())
	}
	return c.Resample.Spacing, opts, true
}

// FilterConfig builds the smoothing filter configuration.
func (c *Config) FilterConfig() (filter.Config, error) {
	kind, err := filter.ParseKind(c.Filter.Kind)
	if err != nil {
		return filter.Config{}, err
	}
	method, err := filter.ParseMorphMethod(c.Filter.Morphological.Method)
	if err != nil {
		return filter.Config{}, err
	}

	fc := filter.Config{
		Kind: kind,
		Gaussian: filter.GaussianConfig{
			Width:        c.Filter.Gaussian.GaussianWidth,
			UsePPM:       c.Filter.Gaussian.UsePPMTolerance,
			PPMTolerance: c.Filter.Gaussian.PPMTolerance,
		},
		SavitzkyGolay: filter.SavitzkyGolayConfig{
			FrameLength:     c.Filter.SavitzkyGolay.FrameLength,
			PolynomialOrder: c.Filter.SavitzkyGolay.PolynomialOrder,
		},
		Morphological: filter.MorphologicalConfig{
			Method:           method,
			StructElemLength: c.Filter.Morphological.StrucElemLength,
			InSamples:        c.Filter.Morphological.StrucElemUnit == "samples",
		},
	}

	switch kind {
	case filter.Gaussian:
		err = fc.Gaussian.Validate()
	case filter.SavitzkyGolay:
		err = fc.SavitzkyGolay.Validate()
	case filter.Morphological:
		err = fc.Morphological.Validate()
	}
	return fc, err
}

// PeakFilter builds the post-pick peak list filter.
func (c *Config) PeakFilter() filter.PeakFilter {
	return filter.PeakFilter{
		TopN:            c.PeakPicker.TopN,
		IntensityCutoff: c.PeakPicker.IntensityCutoff,
	}
}

// NoiseConfig builds the noise estimator configuration.
func (c *Config) NoiseConfig() (noise.Config, error) {
	method, err := noise.ParseMethod(c.Noise.Method)
	if err != nil {
		return noise.Config{}, err
	}
	nc := noise.Config{
		Method:          method,
		WindowWidth:     c.Noise.WindowWidth,
		Multiplier:      c.Noise.Multiplier,
		MaxIterations:   c.Noise.MaxIterations,
		BinCount:        c.Noise.BinCount,
		MaxIntensity:    c.Noise.MaxIntensity,
		AutoStdevFactor: c.Noise.AutoStdevFactor,
	}
	return nc, nc.Validate()
}

// PeakPickerConfig builds the peak picker configuration.
func (c *Config) PeakPickerConfig() (peakpick.Config, error) {
	method, err := peakpick.ParseMethod(c.PeakPicker.Method)
	if err != nil {
		return peakpick.Config{}, err
	}
	pc := peakpick.Config{
		Method:               method,
		SignalToNoise:        c.PeakPicker.SignalToNoise,
		IntensityThreshold:   c.PeakPicker.IntensityThreshold,
		MinFWHM:              c.PeakPicker.MinFWHM,
		PeakWidth:            c.PeakPicker.PeakWidth,
		CWTThreshold:         c.PeakPicker.CWTThreshold,
		SearchRadius:         c.PeakPicker.SearchRadius,
		CentroidPercentage:   c.PeakPicker.CentroidPercentage,
		FWHMLowerBoundFactor: c.PeakPicker.FWHMLowerBoundFactor,
		FWHMUpperBoundFactor: c.PeakPicker.FWHMUpperBoundFactor,
		CheckNeighbours:      c.PeakPicker.CheckNeighbours,
		FitGaussian:          c.PeakPicker.FitGaussian,
	}
	return pc, pc.Validate()
}

// IsotopeOptions builds the isotope generator options.
func (c *Config) IsotopeOptions() (isotope.Options, error) {
	method, err := isotope.ParseMethod(c.Isotope.Method)
	if err != nil {
		return isotope.Options{}, err
	}
	return isotope.Options{
		Method:           method,
		Resolution:       c.Isotope.Resolution,
		MaxIsotopes:      c.Isotope.MaxIsotopes,
		MinAbundance:     c.Isotope.MinAbundance,
		AutoFFTThreshold: c.Isotope.AutoFFTThreshold,
	}, nil
}

// ElementDB returns the element table, overlaid with isotope.elements_file
// when it is set.
func (c *Config) ElementDB() (*chem.DB, error) {
	if c.Isotope.ElementsFile == "" {
		return chem.Default(), nil
	}
	f, err := os.Open(c.Isotope.ElementsFile)
	if err != nil {
		return nil, fmt.Errorf("open elements file: %w", err)
	}
	defer f.Close()
	return chem.Default().WithCSV(f)
}

// FinderConfig builds the feature finder configuration.
func (c *Config) FinderConfig() (feature.FinderConfig, error) {
	iso, err := c.IsotopeOptions()
	if err != nil {
		return feature.FinderConfig{}, err
	}
	fc := feature.FinderConfig{
		MinCharge:     c.FeatureFinder.MinCharge,
		MaxCharge:     c.FeatureFinder.MaxCharge,
		MZTolerance:   c.FeatureFinder.MZTolerance,
		MinSimilarity: c.FeatureFinder.MinSimilarity,
		MinIsotopes:   c.FeatureFinder.MinIsotopes,
		MaxIsotopes:   c.FeatureFinder.MaxIsotopes,
		MaxMissing:    c.FeatureFinder.MaxMissing,
		MinScans:      c.FeatureFinder.MinScans,
		Isotope:       iso,
	}
	return fc, fc.Validate()
}

// AlignConfig builds the alignment configuration.
func (c *Config) AlignConfig() (align.Config, error) {
	model, err := align.ParseModel(c.Alignment.Model)
	if err != nil {
		return align.Config{}, err
	}
	ac := align.Config{
		Model:                  model,
		RTTolerance:            c.Alignment.RTTolerance,
		MZTolerance:            c.Alignment.MZTolerance,
		MZPairMaxDistance:      c.Alignment.MZPairMaxDistance,
		ShiftBucketSize:        c.Alignment.ShiftBucketSize,
		ScalingBucketSize:      c.Alignment.ScalingBucketSize,
		MaxShift:               c.Alignment.MaxShift,
		MaxScaling:             c.Alignment.MaxScaling,
		RTPairDistanceFraction: c.Alignment.RTPairDistanceFraction,
		MaxPoseFeatures:        c.Alignment.MaxPoseFeatures,
		MinSupport:             c.Alignment.MinSupport,
		Interpolate:            c.Alignment.Interpolate,
	}
	return ac, ac.Validate()
}
