package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/msfeat/pkg/config"
	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// profile returns a spectrum with Gaussian peaks (sigma 0.05) at 400, 410
// and 420 on a 0.01 grid.
func profile(id string, rt float64) *core.Spectrum {
	centres := []float64{400, 410, 420}
	heights := []float64{1000, 500, 800}

	samples := make(core.Samples, 2201)
	for i := range samples {
		x := 399 + 0.01*float64(i)
		y := 0.0
		for k, c := range centres {
			d := (x - c) / 0.05
			y += heights[k] * math.Exp(-0.5*d*d)
		}
		samples[i] = core.Sample{Pos: x, Intensity: y}
	}
	return &core.Spectrum{NativeID: id, RT: rt, MSLevel: 1, Samples: samples}
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.PeakPicker.Method = "local_max"
	cfg.Noise.WindowWidth = 5
	cfg.Batch.Workers = 3
	return cfg
}

func newTestProcessor(t *testing.T, cfg *config.Config) (*Processor, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	p, err := New(cfg, WithMetrics(m))
	require.NoError(t, err)
	return p, m
}

func TestProcess(t *testing.T) {
	p, m := newTestProcessor(t, testConfig())

	res := p.Process(profile("scan=1", 10))
	require.NoError(t, res.Err)
	require.NotNil(t, res.Noise)
	require.Len(t, res.Peaks, 3)
	for i, want := range []float64{400, 410, 420} {
		assert.InDelta(t, want, res.Peaks[i].Pos, 1e-3)
		assert.Greater(t, res.Peaks[i].SNR, 1.0)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpectraTotal.WithLabelValues(StatusOK)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PeaksTotal))
}

func TestProcessNarrowSpectrumSkipsNoise(t *testing.T) {
	cfg := testConfig()
	cfg.Noise.WindowWidth = 100
	p, _ := newTestProcessor(t, cfg)

	res := p.Process(profile("scan=1", 10))
	require.NoError(t, res.Err)
	assert.Nil(t, res.Noise)
	require.Len(t, res.Peaks, 3)
	assert.Zero(t, res.Peaks[0].SNR)
}

func TestProcessTopN(t *testing.T) {
	cfg := testConfig()
	cfg.PeakPicker.TopN = 2
	p, _ := newTestProcessor(t, cfg)

	res := p.Process(profile("scan=1", 10))
	require.NoError(t, res.Err)
	require.Len(t, res.Peaks, 2)
	assert.InDelta(t, 400, res.Peaks[0].Pos, 1e-3)
	assert.InDelta(t, 420, res.Peaks[1].Pos, 1e-3)
}

func TestProcessWithResampleAndFilter(t *testing.T) {
	cfg := testConfig()
	cfg.Resample.Enabled = true
	cfg.Resample.Spacing = 0.005
	cfg.Filter.Kind = "gaussian"
	cfg.Filter.Gaussian.GaussianWidth = 0.1
	p, _ := newTestProcessor(t, cfg)

	res := p.Process(profile("scan=1", 10))
	require.NoError(t, res.Err)
	require.Len(t, res.Peaks, 3)
	assert.InDelta(t, 410, res.Peaks[1].Pos, 1e-3)
}

func TestBatchPreservesOrder(t *testing.T) {
	p, m := newTestProcessor(t, testConfig())

	spectra := make([]*core.Spectrum, 10)
	for i := range spectra {
		spectra[i] = profile(fmt.Sprintf("scan=%d", i+1), float64(i))
	}

	results, err := p.Batch(context.Background(), spectra)
	require.NoError(t, err)
	require.Len(t, results, len(spectra))
	for i, r := range results {
		assert.Equal(t, spectra[i].NativeID, r.NativeID)
		assert.NoError(t, r.Err)
		assert.Len(t, r.Peaks, 3)
	}
	assert.Equal(t, 10.0, testutil.ToFloat64(m.SpectraTotal.WithLabelValues(StatusOK)))
}

func TestBatchItemFailure(t *testing.T) {
	bad := profile("scan=2", 1)
	bad.Samples[5], bad.Samples[6] = bad.Samples[6], bad.Samples[5]
	spectra := []*core.Spectrum{profile("scan=1", 0), bad, profile("scan=3", 2)}

	t.Run("continue", func(t *testing.T) {
		p, m := newTestProcessor(t, testConfig())
		results, err := p.Batch(context.Background(), spectra)
		require.NoError(t, err)
		assert.NoError(t, results[0].Err)
		assert.ErrorIs(t, results[1].Err, core.ErrInsufficientData)
		assert.NoError(t, results[2].Err)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SpectraTotal.WithLabelValues(StatusError)))
	})

	t.Run("fail fast", func(t *testing.T) {
		cfg := testConfig()
		cfg.Batch.FailFast = true
		cfg.Batch.Workers = 1
		p, _ := newTestProcessor(t, cfg)

		results, err := p.Batch(context.Background(), spectra)
		require.ErrorIs(t, err, core.ErrInsufficientData)
		assert.NoError(t, results[0].Err)
		assert.ErrorIs(t, results[2].Err, context.Canceled)
	})
}

func TestBatchCancelled(t *testing.T) {
	p, m := newTestProcessor(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spectra := []*core.Spectrum{profile("scan=1", 0), profile("scan=2", 1)}
	results, err := p.Batch(ctx, spectra)
	require.ErrorIs(t, err, context.Canceled)
	for _, r := range results {
		assert.True(t, errors.Is(r.Err, context.Canceled))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SpectraTotal.WithLabelValues(StatusCancelled)))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.PeakPicker.Method = "wavelets"
	_, err := New(cfg)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestFeatures(t *testing.T) {
	cfg := testConfig()
	p, _ := newTestProcessor(t, cfg)

	results := []Result{
		{NativeID: "scan=1", RT: 1, MSLevel: 1},
		{NativeID: "scan=2", RT: 2, MSLevel: 2, Peaks: core.Peaks{{Pos: 500, Intensity: 10}}},
		{NativeID: "scan=3", RT: 3, MSLevel: 1, Err: errors.New("boom")},
	}
	fm, err := p.Features(context.Background(), "run", results)
	require.NoError(t, err)
	assert.Equal(t, 0, fm.Len())
	assert.Equal(t, "run", fm.Name)
}
