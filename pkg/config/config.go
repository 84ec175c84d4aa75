// Package config loads the nested processing configuration.
//
// Configuration is read through viper from YAML files, environment or flags.
// Missing keys take the defaults in Defaults. Unknown keys are ignored unless
// strict is set, in which case they are rejected. Every failure is reported
// as core.ErrInvalidParameter.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// Config is the complete processing configuration.
type Config struct {
	Strict        bool                `mapstructure:"strict" yaml:"strict"`
	Resample      ResampleConfig      `mapstructure:"resample" yaml:"resample"`
	Filter        FilterConfig        `mapstructure:"filter" yaml:"filter"`
	Noise         NoiseConfig         `mapstructure:"noise" yaml:"noise"`
	PeakPicker    PeakPickerConfig    `mapstructure:"peak_picker" yaml:"peak_picker"`
	Isotope       IsotopeConfig       `mapstructure:"isotope" yaml:"isotope"`
	FeatureFinder FeatureFinderConfig `mapstructure:"feature_finder" yaml:"feature_finder"`
	Alignment     AlignmentConfig     `mapstructure:"alignment" yaml:"alignment"`
	Batch         BatchConfig         `mapstructure:"batch" yaml:"batch"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

// ResampleConfig controls resampling onto a uniform grid.
type ResampleConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	Spacing        float64 `mapstructure:"spacing" yaml:"spacing" validate:"gte=0"`
	AlignToSpacing bool    `mapstructure:"align_to_spacing" yaml:"align_to_spacing"`
}

// FilterConfig selects and configures the smoothing filter.
type FilterConfig struct {
	Kind          string              `mapstructure:"kind" yaml:"kind" validate:"oneof=none gaussian savitzky_golay morphological"`
	Gaussian      GaussianConfig      `mapstructure:"gaussian" yaml:"gaussian"`
	SavitzkyGolay SavitzkyGolayConfig `mapstructure:"savitzky_golay" yaml:"savitzky_golay"`
	Morphological MorphologicalConfig `mapstructure:"morphological" yaml:"morphological"`
}

type GaussianConfig struct {
	GaussianWidth   float64 `mapstructure:"gaussian_width" yaml:"gaussian_width" validate:"gt=0"`
	UsePPMTolerance bool    `mapstructure:"use_ppm_tolerance" yaml:"use_ppm_tolerance"`
	PPMTolerance    float64 `mapstructure:"ppm_tolerance" yaml:"ppm_tolerance" validate:"gte=0"`
}

type SavitzkyGolayConfig struct {
	FrameLength     int `mapstructure:"frame_length" yaml:"frame_length" validate:"gt=0"`
	PolynomialOrder int `mapstructure:"polynomial_order" yaml:"polynomial_order" validate:"gte=0"`
}

type MorphologicalConfig struct {
	Method          string  `mapstructure:"method" yaml:"method" validate:"oneof=tophat bothat erosion dilation opening closing gradient"`
	StrucElemLength float64 `mapstructure:"struc_elem_length" yaml:"struc_elem_length" validate:"gt=0"`
	// StrucElemUnit is "position" for position units or "samples" for
	// a sample count.
	StrucElemUnit string `mapstructure:"struc_elem_unit" yaml:"struc_elem_unit" validate:"oneof=position samples"`
}

type NoiseConfig struct {
	Method          string  `mapstructure:"method" yaml:"method" validate:"oneof=mean_iterative median"`
	WindowWidth     float64 `mapstructure:"window_width" yaml:"window_width" validate:"gt=0"`
	Multiplier      float64 `mapstructure:"multiplier" yaml:"multiplier" validate:"gte=1"`
	MaxIterations   int     `mapstructure:"max_iterations" yaml:"max_iterations" validate:"gt=0"`
	BinCount        int     `mapstructure:"bin_count" yaml:"bin_count" validate:"gt=0"`
	MaxIntensity    float64 `mapstructure:"max_intensity" yaml:"max_intensity"`
	AutoStdevFactor float64 `mapstructure:"auto_stdev_factor" yaml:"auto_stdev_factor" validate:"gte=0"`
}

type PeakPickerConfig struct {
	Method               string  `mapstructure:"method" yaml:"method" validate:"oneof=cwt local_max"`
	SignalToNoise        float64 `mapstructure:"signal_to_noise" yaml:"signal_to_noise" validate:"gte=0"`
	IntensityThreshold   float64 `mapstructure:"intensity_threshold" yaml:"intensity_threshold" validate:"gte=0"`
	MinFWHM              float64 `mapstructure:"min_fwhm" yaml:"min_fwhm" validate:"gte=0"`
	PeakWidth            float64 `mapstructure:"peak_width" yaml:"peak_width" validate:"gt=0"`
	CWTThreshold         float64 `mapstructure:"cwt_threshold" yaml:"cwt_threshold" validate:"gte=0,lte=1"`
	SearchRadius         int     `mapstructure:"search_radius" yaml:"search_radius" validate:"gte=0"`
	CentroidPercentage   float64 `mapstructure:"centroid_percentage" yaml:"centroid_percentage" validate:"gt=0,lte=1"`
	FWHMLowerBoundFactor float64 `mapstructure:"fwhm_lower_bound_factor" yaml:"fwhm_lower_bound_factor" validate:"gt=0"`
	FWHMUpperBoundFactor float64 `mapstructure:"fwhm_upper_bound_factor" yaml:"fwhm_upper_bound_factor" validate:"gtfield=FWHMLowerBoundFactor"`
	CheckNeighbours      bool    `mapstructure:"check_neighbours" yaml:"check_neighbours"`
	FitGaussian          bool    `mapstructure:"fit_gaussian" yaml:"fit_gaussian"`
	TopN                 int     `mapstructure:"top_n" yaml:"top_n" validate:"gte=0"`
	IntensityCutoff      float64 `mapstructure:"intensity_cutoff" yaml:"intensity_cutoff" validate:"gte=0,lte=100"`
}

type IsotopeConfig struct {
	Method           string  `mapstructure:"method" yaml:"method" validate:"oneof=auto polynomial fft"`
	Resolution       float64 `mapstructure:"resolution" yaml:"resolution" validate:"gte=0"`
	MaxIsotopes      int     `mapstructure:"max_isotopes" yaml:"max_isotopes" validate:"gte=0"`
	MinAbundance     float64 `mapstructure:"min_abundance" yaml:"min_abundance" validate:"gte=0,lt=1"`
	AutoFFTThreshold int     `mapstructure:"auto_fft_threshold" yaml:"auto_fft_threshold" validate:"gte=0"`
	// ElementsFile optionally replaces isotope data from a CSV file.
	ElementsFile string `mapstructure:"elements_file" yaml:"elements_file"`
}

type FeatureFinderConfig struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled"`
	MinCharge     int     `mapstructure:"min_charge" yaml:"min_charge" validate:"gte=1"`
	MaxCharge     int     `mapstructure:"max_charge" yaml:"max_charge" validate:"gtefield=MinCharge"`
	MZTolerance   float64 `mapstructure:"mz_tolerance" yaml:"mz_tolerance" validate:"gt=0"`
	MinSimilarity float64 `mapstructure:"min_similarity" yaml:"min_similarity" validate:"gte=0,lte=1"`
	MinIsotopes   int     `mapstructure:"min_isotopes" yaml:"min_isotopes" validate:"gte=1"`
	MaxIsotopes   int     `mapstructure:"max_isotopes" yaml:"max_isotopes" validate:"gtefield=MinIsotopes"`
	MaxMissing    int     `mapstructure:"max_missing" yaml:"max_missing" validate:"gte=0"`
	MinScans      int     `mapstructure:"min_scans" yaml:"min_scans" validate:"gte=1"`
}

type AlignmentConfig struct {
	Model                  string  `mapstructure:"model" yaml:"model" validate:"oneof=shift affine"`
	RTTolerance            float64 `mapstructure:"rt_tolerance" yaml:"rt_tolerance" validate:"gt=0"`
	MZTolerance            float64 `mapstructure:"mz_tolerance" yaml:"mz_tolerance" validate:"gt=0"`
	MZPairMaxDistance      float64 `mapstructure:"mz_pair_max_distance" yaml:"mz_pair_max_distance" validate:"gt=0"`
	ShiftBucketSize        float64 `mapstructure:"shift_bucket_size" yaml:"shift_bucket_size" validate:"gt=0"`
	ScalingBucketSize      float64 `mapstructure:"scaling_bucket_size" yaml:"scaling_bucket_size" validate:"gt=0"`
	MaxShift               float64 `mapstructure:"max_shift" yaml:"max_shift" validate:"gt=0"`
	MaxScaling             float64 `mapstructure:"max_scaling" yaml:"max_scaling" validate:"gt=1"`
	RTPairDistanceFraction float64 `mapstructure:"rt_pair_distance_fraction" yaml:"rt_pair_distance_fraction" validate:"gte=0,lt=1"`
	MaxPoseFeatures        int     `mapstructure:"max_pose_features" yaml:"max_pose_features" validate:"gte=2"`
	MinSupport             int     `mapstructure:"min_support" yaml:"min_support" validate:"gte=1"`
	Interpolate            bool    `mapstructure:"interpolate" yaml:"interpolate"`
}

type BatchConfig struct {
	// Workers bounds concurrent spectra; 0 uses GOMAXPROCS.
	Workers  int  `mapstructure:"workers" yaml:"workers" validate:"gte=0"`
	FailFast bool `mapstructure:"fail_fast" yaml:"fail_fast"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their configuration key.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load decodes the configuration held by v, filling in defaults.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{}
	decode := v.Unmarshal
	if v.GetBool("strict") {
		decode = v.UnmarshalExact
	}
	if err := decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: unable to decode configuration: %w", core.ErrInvalidParameter, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read config %s: %w", core.ErrInvalidParameter, path, err)
	}
	return Load(v)
}

// Validate checks struct constraints and then every component
// configuration built from c.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return core.InvalidParam(fieldKey(fe.Namespace()), fe.Value(), describe(fe))
		}
		return fmt.Errorf("%w: %w", core.ErrInvalidParameter, err)
	}
	if c.Resample.Enabled && !(c.Resample.Spacing > 0) {
		return core.InvalidParam("resample.spacing", c.Resample.Spacing, "must be positive when resampling is enabled")
	}

	checks := []func() error{
		func() error { _, err := c.FilterConfig(); return err },
		func() error { _, err := c.NoiseConfig(); return err },
		func() error { _, err := c.PeakPickerConfig(); return err },
		func() error { _, err := c.IsotopeOptions(); return err },
		func() error { _, err := c.FinderConfig(); return err },
		func() error { _, err := c.AlignConfig(); return err },
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// fieldKey turns "Config.filter.gaussian.gaussian_width" into
// "filter.gaussian.gaussian_width".
func fieldKey(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gtfield", "gtefield":
		return "must not be below " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}

// Dump writes c as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// NewLogger builds a slog logger writing to w in the configured format.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, core.InvalidParam("log.level", l.Level, "must be debug, info, warn or error")
	}
	opts := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, core.InvalidParam("log.format", l.Format, "must be text or json")
}
