package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/msfeat/pkg/align"
	"github.com/ChrisMcGann/msfeat/pkg/core"
	"github.com/ChrisMcGann/msfeat/pkg/filter"
	"github.com/ChrisMcGann/msfeat/pkg/isotope"
	"github.com/ChrisMcGann/msfeat/pkg/noise"
	"github.com/ChrisMcGann/msfeat/pkg/peakpick"
)

func loadYAML(t *testing.T, doc string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return Load(v)
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestLoadEmptyUsesDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	if diff := cmp.Diff(Defaults(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := loadYAML(t, `
filter:
  kind: gaussian
  gaussian:
    gaussian_width: 0.5
peak_picker:
  method: local_max
  signal_to_noise: 3
isotope:
  method: fft
  resolution: 0.5
alignment:
  model: affine
batch:
  workers: 4
`)
	require.NoError(t, err)

	assert.Equal(t, "gaussian", cfg.Filter.Kind)
	assert.Equal(t, 0.5, cfg.Filter.Gaussian.GaussianWidth)
	// Untouched keys in the same section keep their defaults.
	assert.Equal(t, Defaults().Filter.Gaussian.PPMTolerance, cfg.Filter.Gaussian.PPMTolerance)
	assert.Equal(t, 4, cfg.Batch.Workers)

	fc, err := cfg.FilterConfig()
	require.NoError(t, err)
	assert.Equal(t, filter.Gaussian, fc.Kind)
	assert.Equal(t, 0.5, fc.Gaussian.Width)

	pc, err := cfg.PeakPickerConfig()
	require.NoError(t, err)
	assert.Equal(t, peakpick.LocalMax, pc.Method)
	assert.Equal(t, 3.0, pc.SignalToNoise)

	iso, err := cfg.IsotopeOptions()
	require.NoError(t, err)
	assert.Equal(t, isotope.FFT, iso.Method)
	assert.Equal(t, 0.5, iso.Resolution)

	ac, err := cfg.AlignConfig()
	require.NoError(t, err)
	assert.Equal(t, align.Affine, ac.Model)
}

func TestLoadUnknownKeys(t *testing.T) {
	const doc = `
noise:
  window_width: 50
  windw: 3
`
	cfg, err := loadYAML(t, doc)
	require.NoError(t, err, "lenient mode ignores unknown keys")
	assert.Equal(t, 50.0, cfg.Noise.WindowWidth)

	_, err = loadYAML(t, "strict: true\n"+doc)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		param string
	}{
		{"negative gaussian width", "filter:\n  gaussian:\n    gaussian_width: -1\n", "filter.gaussian.gaussian_width"},
		{"unknown filter", "filter:\n  kind: wiener\n", "filter.kind"},
		{"zero bins", "noise:\n  bin_count: 0\n", "noise.bin_count"},
		{"even frame", "filter:\n  kind: savitzky_golay\n  savitzky_golay:\n    frame_length: 10\n", "filter.savitzky_golay.frame_length"},
		{"charge range", "feature_finder:\n  min_charge: 3\n  max_charge: 2\n", "feature_finder.max_charge"},
		{"log level", "log:\n  level: loud\n", "log.level"},
		{"resample spacing", "resample:\n  enabled: true\n  spacing: 0\n", "resample.spacing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.doc)
			require.ErrorIs(t, err, core.ErrInvalidParameter)

			var pe *core.ParamError
			require.True(t, errors.As(err, &pe), "error %v is not a *core.ParamError", err)
			assert.Equal(t, tt.param, pe.Param)
		})
	}
}

func TestDumpRoundTrip(t *testing.T) {
	want := Defaults()
	want.Filter.Kind = "morphological"
	want.Filter.Morphological.StrucElemUnit = "samples"
	want.Noise.Method = "median"

	var buf bytes.Buffer
	require.NoError(t, want.Dump(&buf))
	assert.Contains(t, buf.String(), "struc_elem_unit: samples")

	path := filepath.Join(t.TempDir(), "msfeat.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := LoadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadFile(Dump()) mismatch (-want +got):\n%s", diff)
	}

	fc, err := got.FilterConfig()
	require.NoError(t, err)
	assert.True(t, fc.Morphological.InSamples)
	assert.Equal(t, filter.TopHat, fc.Morphological.Method)

	nc, err := got.NoiseConfig()
	require.NoError(t, err)
	assert.Equal(t, noise.Median, nc.Method)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestResampleOptions(t *testing.T) {
	cfg := Defaults()
	_, _, ok := cfg.ResampleOptions()
	assert.False(t, ok)

	cfg.Resample.Enabled = true
	cfg.Resample.AlignToSpacing = true
	spacing, opts, ok := cfg.ResampleOptions()
	assert.True(t, ok)
	assert.Equal(t, 0.01, spacing)
	assert.Len(t, opts, 1)
}

func TestPeakFilter(t *testing.T) {
	cfg := Defaults()
	cfg.PeakPicker.TopN = 5
	cfg.PeakPicker.IntensityCutoff = 10
	assert.Equal(t, filter.PeakFilter{TopN: 5, IntensityCutoff: 10}, cfg.PeakFilter())
}

func TestElementDB(t *testing.T) {
	cfg := Defaults()
	db, err := cfg.ElementDB()
	require.NoError(t, err)
	_, ok := db.Lookup("C")
	assert.True(t, ok)

	cfg.Isotope.ElementsFile = filepath.Join(t.TempDir(), "none.csv")
	_, err = cfg.ElementDB()
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "spectrum", "scan=1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = LogConfig{Level: "info", Format: "xml"}.NewLogger(&buf)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}
