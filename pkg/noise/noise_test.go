package noise

import (
	"errors"
	"math"
	"testing"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

func flatWithSpike(n int, level, spike float64, at int) core.Samples {
	s := make(core.Samples, n)
	for i := range s {
		s[i] = core.Sample{Pos: float64(i), Intensity: level}
	}
	s[at].Intensity = spike
	return s
}

func TestMeanIterativeExcludesSpikes(t *testing.T) {
	s := flatWithSpike(200, 10, 1000, 100)

	est, err := Config{Method: MeanIterative, WindowWidth: 20}.Estimate(s)
	if err != nil {
		t.Fatalf("Estimate() error: %v", err)
	}
	if !est.Converged || est.Unconverged != 0 {
		t.Errorf("Converged = %v (%d windows), want true", est.Converged, est.Unconverged)
	}
	for i, n := range est.Noise {
		if math.Abs(n-10) > 1e-9 {
			t.Fatalf("Noise[%d] = %v, want 10", i, n)
		}
	}
	if snr := est.SNR(100, s[100].Intensity); math.Abs(snr-100) > 1e-9 {
		t.Errorf("SNR at spike = %v, want 100", snr)
	}
}

func TestMeanIterativeReportsNonConvergence(t *testing.T) {
	values := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 5, 25, 125}
	s := make(core.Samples, len(values))
	for i, v := range values {
		s[i] = core.Sample{Pos: float64(i), Intensity: v}
	}

	est, err := Config{WindowWidth: 12, MaxIterations: 1}.Estimate(s)
	if err != nil {
		t.Fatalf("Estimate() error: %v", err)
	}
	if est.Converged || est.Unconverged == 0 {
		t.Errorf("Converged = %v (%d windows), want non-convergence", est.Converged, est.Unconverged)
	}
	// The last window keeps its one-round estimate: 125 dropped, 25 kept.
	if got, want := est.Noise[12], 34.0/6.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("Noise[12] = %v, want %v", got, want)
	}

	est, err = Config{WindowWidth: 12}.Estimate(s)
	if err != nil {
		t.Fatalf("Estimate() error: %v", err)
	}
	if !est.Converged {
		t.Errorf("Converged = false with default iteration bound (%d windows)", est.Unconverged)
	}
	if got := est.Noise[12]; math.Abs(got-1.8) > 1e-9 {
		t.Errorf("Noise[12] = %v, want 1.8", got)
	}
}

func TestMedianHistogram(t *testing.T) {
	s := flatWithSpike(200, 10, 1000, 100)

	est, err := Config{Method: Median, WindowWidth: 30, BinCount: 300, MaxIntensity: 300}.Estimate(s)
	if err != nil {
		t.Fatalf("Estimate() error: %v", err)
	}
	for i, n := range est.Noise {
		if math.Abs(n-10.5) > 1e-9 {
			t.Fatalf("Noise[%d] = %v, want bin centre 10.5", i, n)
		}
	}
}

func TestMedianAutoCeiling(t *testing.T) {
	s := make(core.Samples, 100)
	for i := range s {
		s[i] = core.Sample{Pos: float64(i) * 0.1, Intensity: float64(i % 10)}
	}

	est, err := Config{Method: Median, WindowWidth: 5}.Estimate(s)
	if err != nil {
		t.Fatalf("Estimate() error: %v", err)
	}
	for i, n := range est.Noise {
		if n <= 0 || n > 10 {
			t.Errorf("Noise[%d] = %v, want within (0, 10]", i, n)
		}
	}
}

func TestZeroSignal(t *testing.T) {
	s := flatWithSpike(50, 0, 0, 0)
	for _, m := range []Method{MeanIterative, Median} {
		est, err := Config{Method: m, WindowWidth: 10}.Estimate(s)
		if err != nil {
			t.Fatalf("%s: Estimate() error: %v", m, err)
		}
		if est.Noise[10] != 0 {
			t.Errorf("%s: Noise[10] = %v, want 0", m, est.Noise[10])
		}
		if snr := est.SNR(10, 0); snr != 0 {
			t.Errorf("%s: SNR(0) = %v, want 0", m, snr)
		}
		if snr := est.SNR(10, 5); !math.IsInf(snr, 1) {
			t.Errorf("%s: SNR(5) = %v, want +Inf", m, snr)
		}
	}
}

func TestEstimateErrors(t *testing.T) {
	s := flatWithSpike(10, 1, 1, 0)

	tests := []struct {
		name string
		cfg  Config
		in   core.Samples
		want error
	}{
		{"window wider than extent", Config{WindowWidth: 9.5}, s, core.ErrInsufficientData},
		{"single sample", Config{WindowWidth: 1}, s[:1], core.ErrInsufficientData},
		{"zero window", Config{WindowWidth: 0}, s, core.ErrInvalidParameter},
		{"multiplier below one", Config{WindowWidth: 2, Multiplier: 0.5}, s, core.ErrInvalidParameter},
		{"negative bins", Config{Method: Median, WindowWidth: 2, BinCount: -1}, s, core.ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Estimate(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Estimate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTruncatedEdgeWindows(t *testing.T) {
	// A ramp makes the asymmetric edge windows visible in the estimate.
	s := make(core.Samples, 21)
	for i := range s {
		s[i] = core.Sample{Pos: float64(i), Intensity: float64(i + 1)}
	}

	est, err := Config{WindowWidth: 4, Multiplier: 100}.Estimate(s)
	if err != nil {
		t.Fatalf("Estimate() error: %v", err)
	}
	// Sample 0 sees positions 0..2, sample 10 sees 8..12, sample 20 sees 18..20.
	want := map[int]float64{0: 2, 10: 11, 20: 20}
	for i, w := range want {
		if math.Abs(est.Noise[i]-w) > 1e-9 {
			t.Errorf("Noise[%d] = %v, want %v", i, est.Noise[i], w)
		}
	}
}

func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod("median"); err != nil || m != Median {
		t.Errorf("ParseMethod(median) = %v, %v", m, err)
	}
	if _, err := ParseMethod("quantile"); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("ParseMethod(quantile) error = %v", err)
	}
}
