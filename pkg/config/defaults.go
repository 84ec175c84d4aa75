package config

import (
	"github.com/spf13/viper"

	"github.com/ChrisMcGann/msfeat/pkg/align"
	"github.com/ChrisMcGann/msfeat/pkg/feature"
	"github.com/ChrisMcGann/msfeat/pkg/isotope"
	"github.com/ChrisMcGann/msfeat/pkg/noise"
	"github.com/ChrisMcGann/msfeat/pkg/peakpick"
)

// Defaults returns the configuration used when no key is set.
func Defaults() *Config {
	pp := peakpick.DefaultConfig()
	ff := feature.DefaultFinderConfig()
	al := align.DefaultConfig()

	return &Config{
		Resample: ResampleConfig{Spacing: 0.01},
		Filter: FilterConfig{
			Kind:          "none",
			Gaussian:      GaussianConfig{GaussianWidth: 0.2, PPMTolerance: 10},
			SavitzkyGolay: SavitzkyGolayConfig{FrameLength: 11, PolynomialOrder: 4},
			Morphological: MorphologicalConfig{Method: "tophat", StrucElemLength: 3, StrucElemUnit: "position"},
		},
		Noise: NoiseConfig{
			Method:          "mean_iterative",
			WindowWidth:     200,
			Multiplier:      noise.DefaultMultiplier,
			MaxIterations:   noise.DefaultMaxIterations,
			BinCount:        noise.DefaultBinCount,
			AutoStdevFactor: noise.DefaultAutoStdevFactor,
		},
		PeakPicker: PeakPickerConfig{
			Method:               pp.Method.String(),
			SignalToNoise:        pp.SignalToNoise,
			IntensityThreshold:   pp.IntensityThreshold,
			MinFWHM:              pp.MinFWHM,
			PeakWidth:            pp.PeakWidth,
			CWTThreshold:         pp.CWTThreshold,
			SearchRadius:         pp.SearchRadius,
			CentroidPercentage:   pp.CentroidPercentage,
			FWHMLowerBoundFactor: pp.FWHMLowerBoundFactor,
			FWHMUpperBoundFactor: pp.FWHMUpperBoundFactor,
		},
		Isotope: IsotopeConfig{
			Method:           "auto",
			Resolution:       isotope.DefaultResolution,
			AutoFFTThreshold: isotope.DefaultAutoFFTThreshold,
		},
		FeatureFinder: FeatureFinderConfig{
			MinCharge:     ff.MinCharge,
			MaxCharge:     ff.MaxCharge,
			MZTolerance:   ff.MZTolerance,
			MinSimilarity: ff.MinSimilarity,
			MinIsotopes:   ff.MinIsotopes,
			MaxIsotopes:   ff.MaxIsotopes,
			MaxMissing:    ff.MaxMissing,
			MinScans:      ff.MinScans,
		},
		Alignment: AlignmentConfig{
			Model:                  al.Model.String(),
			RTTolerance:            al.RTTolerance,
			MZTolerance:            al.MZTolerance,
			MZPairMaxDistance:      al.MZPairMaxDistance,
			ShiftBucketSize:        al.ShiftBucketSize,
			ScalingBucketSize:      al.ScalingBucketSize,
			MaxShift:               al.MaxShift,
			MaxScaling:             al.MaxScaling,
			RTPairDistanceFraction: al.RTPairDistanceFraction,
			MaxPoseFeatures:        al.MaxPoseFeatures,
			MinSupport:             al.MinSupport,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers every default with v so that missing keys decode to
// their documented values.
func SetDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("strict", false)

	// Resample
	v.SetDefault("resample.enabled", d.Resample.Enabled)
	v.SetDefault("resample.spacing", d.Resample.Spacing)
	v.SetDefault("resample.align_to_spacing", d.Resample.AlignToSpacing)

	// Filter
	v.SetDefault("filter.kind", d.Filter.Kind)
	v.SetDefault("filter.gaussian.gaussian_width", d.Filter.Gaussian.GaussianWidth)
	v.SetDefault("filter.gaussian.use_ppm_tolerance", d.Filter.Gaussian.UsePPMTolerance)
	v.SetDefault("filter.gaussian.ppm_tolerance", d.Filter.Gaussian.PPMTolerance)
	v.SetDefault("filter.savitzky_golay.frame_length", d.Filter.SavitzkyGolay.FrameLength)
	v.SetDefault("filter.savitzky_golay.polynomial_order", d.Filter.SavitzkyGolay.PolynomialOrder)
	v.SetDefault("filter.morphological.method", d.Filter.Morphological.Method)
	v.SetDefault("filter.morphological.struc_elem_length", d.Filter.Morphological.StrucElemLength)
	v.SetDefault("filter.morphological.struc_elem_unit", d.Filter.Morphological.StrucElemUnit)

	// Noise
	v.SetDefault("noise.method", d.Noise.Method)
	v.SetDefault("noise.window_width", d.Noise.WindowWidth)
	v.SetDefault("noise.multiplier", d.Noise.Multiplier)
	v.SetDefault("noise.max_iterations", d.Noise.MaxIterations)
	v.SetDefault("noise.bin_count", d.Noise.BinCount)
	v.SetDefault("noise.max_intensity", d.Noise.MaxIntensity)
	v.SetDefault("noise.auto_stdev_factor", d.Noise.AutoStdevFactor)

	// Peak picker
	v.SetDefault("peak_picker.method", d.PeakPicker.Method)
	v.SetDefault("peak_picker.signal_to_noise", d.PeakPicker.SignalToNoise)
	v.SetDefault("peak_picker.intensity_threshold", d.PeakPicker.IntensityThreshold)
	v.SetDefault("peak_picker.min_fwhm", d.PeakPicker.MinFWHM)
	v.SetDefault("peak_picker.peak_width", d.PeakPicker.PeakWidth)
	v.SetDefault("peak_picker.cwt_threshold", d.PeakPicker.CWTThreshold)
	v.SetDefault("peak_picker.search_radius", d.PeakPicker.SearchRadius)
	v.SetDefault("peak_picker.centroid_percentage", d.PeakPicker.CentroidPercentage)
	v.SetDefault("peak_picker.fwhm_lower_bound_factor", d.PeakPicker.FWHMLowerBoundFactor)
	v.SetDefault("peak_picker.fwhm_upper_bound_factor", d.PeakPicker.FWHMUpperBoundFactor)
	v.SetDefault("peak_picker.check_neighbours", d.PeakPicker.CheckNeighbours)
	v.SetDefault("peak_picker.fit_gaussian", d.PeakPicker.FitGaussian)
	v.SetDefault("peak_picker.top_n", d.PeakPicker.TopN)
	v.SetDefault("peak_picker.intensity_cutoff", d.PeakPicker.IntensityCutoff)

	// Isotope
	v.SetDefault("isotope.method", d.Isotope.Method)
	v.SetDefault("isotope.resolution", d.Isotope.Resolution)
	v.SetDefault("isotope.max_isotopes", d.Isotope.MaxIsotopes)
	v.SetDefault("isotope.min_abundance", d.Isotope.MinAbundance)
	v.SetDefault("isotope.auto_fft_threshold", d.Isotope.AutoFFTThreshold)
	v.SetDefault("isotope.elements_file", d.Isotope.ElementsFile)

	// Feature finder
	v.SetDefault("feature_finder.enabled", d.FeatureFinder.Enabled)
	v.SetDefault("feature_finder.min_charge", d.FeatureFinder.MinCharge)
	v.SetDefault("feature_finder.max_charge", d.FeatureFinder.MaxCharge)
	v.SetDefault("feature_finder.mz_tolerance", d.FeatureFinder.MZTolerance)
	v.SetDefault("feature_finder.min_similarity", d.FeatureFinder.MinSimilarity)
	v.SetDefault("feature_finder.min_isotopes", d.FeatureFinder.MinIsotopes)
	v.SetDefault("feature_finder.max_isotopes", d.FeatureFinder.MaxIsotopes)
	v.SetDefault("feature_finder.max_missing", d.FeatureFinder.MaxMissing)
	v.SetDefault("feature_finder.min_scans", d.FeatureFinder.MinScans)

	// Alignment
	v.SetDefault("alignment.model", d.Alignment.Model)
	v.SetDefault("alignment.rt_tolerance", d.Alignment.RTTolerance)
	v.SetDefault("alignment.mz_tolerance", d.Alignment.MZTolerance)
	v.SetDefault("alignment.mz_pair_max_distance", d.Alignment.MZPairMaxDistance)
	v.SetDefault("alignment.shift_bucket_size", d.Alignment.ShiftBucketSize)
	v.SetDefault("alignment.scaling_bucket_size", d.Alignment.ScalingBucketSize)
	v.SetDefault("alignment.max_shift", d.Alignment.MaxShift)
	v.SetDefault("alignment.max_scaling", d.Alignment.MaxScaling)
	v.SetDefault("alignment.rt_pair_distance_fraction", d.Alignment.RTPairDistanceFraction)
	v.SetDefault("alignment.max_pose_features", d.Alignment.MaxPoseFeatures)
	v.SetDefault("alignment.min_support", d.Alignment.MinSupport)
	v.SetDefault("alignment.interpolate", d.Alignment.Interpolate)

	// Batch
	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("batch.fail_fast", d.Batch.FailFast)

	// Log
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
