package core

import (
	"errors"
	"math"
	"testing"
)

func TestSpectrumValidation(t *testing.T) {
	tests := []struct {
		name    string
		spec    *Spectrum
		wantErr bool
	}{
		{
			name: "valid spectrum",
			spec: &Spectrum{
				NativeID: "scan=1",
				RT:       12.5,
				MSLevel:  1,
				Samples: Samples{
					{Pos: 100.0, Intensity: 1000.0},
					{Pos: 200.0, Intensity: 2000.0},
				},
			},
			wantErr: false,
		},
		{
			name: "empty spectrum is valid",
			spec: &Spectrum{MSLevel: 2},
		},
		{
			name: "zero ms level",
			spec: &Spectrum{
				Samples: Samples{{Pos: 100.0, Intensity: 1.0}},
			},
			wantErr: true,
		},
		{
			name: "negative intensity",
			spec: &Spectrum{
				MSLevel: 1,
				Samples: Samples{{Pos: 100.0, Intensity: -1.0}},
			},
			wantErr: true,
		},
		{
			name: "nan position",
			spec: &Spectrum{
				MSLevel: 1,
				Samples: Samples{{Pos: math.NaN(), Intensity: 1.0}},
			},
			wantErr: true,
		},
		{
			name: "unsorted samples",
			spec: &Spectrum{
				MSLevel: 1,
				Samples: Samples{
					{Pos: 200.0, Intensity: 2000.0},
					{Pos: 100.0, Intensity: 1000.0},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInsufficientData) {
				t.Errorf("Validate() error %v does not match ErrInsufficientData", err)
			}
		})
	}
}

func TestChromatogramValidation(t *testing.T) {
	c := &Chromatogram{
		NativeID:    "SRM 500>300",
		PrecursorMZ: 500.2,
		ProductMZ:   300.1,
		Samples:     Samples{{Pos: 10, Intensity: 5}, {Pos: 11, Intensity: 8}},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	spec := c.AsSpectrum()
	if len(spec.Samples) != 2 || spec.NativeID != c.NativeID {
		t.Errorf("AsSpectrum() = %+v, want shared samples and id", spec)
	}

	c.ProductMZ = -1
	if err := c.Validate(); err == nil {
		t.Error("Validate() expected error for negative product m/z")
	}
}

func TestSamplesSort(t *testing.T) {
	s := Samples{
		{Pos: 300.0, Intensity: 3000.0},
		{Pos: 100.0, Intensity: 1000.0},
		{Pos: 200.0, Intensity: 2000.0},
	}

	if s.IsSorted() {
		t.Error("IsSorted() = true, want false")
	}
	s.Sort()
	if !s.IsSorted() {
		t.Error("IsSorted() after Sort() = false, want true")
	}
	if s[0].Pos != 100.0 || s[1].Pos != 200.0 || s[2].Pos != 300.0 {
		t.Errorf("Sort() produced wrong order: %v", s)
	}
}

func TestSamplesIndexRange(t *testing.T) {
	s := Samples{{Pos: 1}, {Pos: 2}, {Pos: 3}, {Pos: 4}, {Pos: 5}}

	tests := []struct {
		name   string
		lo, hi float64
		wantI  int
		wantJ  int
	}{
		{"inner range", 2, 4, 1, 4},
		{"exact single", 3, 3, 2, 3},
		{"below all", -10, 0.5, 0, 0},
		{"above all", 6, 10, 5, 5},
		{"covering", 0, 10, 0, 5},
		{"inverted", 4, 2, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, j := s.IndexRange(tt.lo, tt.hi)
			if i != tt.wantI || j != tt.wantJ {
				t.Errorf("IndexRange(%v, %v) = (%d, %d), want (%d, %d)", tt.lo, tt.hi, i, j, tt.wantI, tt.wantJ)
			}
		})
	}
}

func TestSamplesHelpers(t *testing.T) {
	s := Samples{{Pos: 10, Intensity: 1}, {Pos: 12, Intensity: 4}, {Pos: 14, Intensity: 4}}

	if got := s.MeanSpacing(); got != 2 {
		t.Errorf("MeanSpacing() = %v, want 2", got)
	}
	if got := s.MaxIntensity(); got != 1 {
		t.Errorf("MaxIntensity() = %d, want 1 (first of tie)", got)
	}
	if got := s.TotalIntensity(); got != 9 {
		t.Errorf("TotalIntensity() = %v, want 9", got)
	}

	replaced := s.WithIntensities([]float64{7, 8, 9})
	if replaced[2].Intensity != 9 || replaced[2].Pos != 14 {
		t.Errorf("WithIntensities() = %v", replaced)
	}
	if s[2].Intensity != 4 {
		t.Error("WithIntensities() modified the receiver")
	}
	if got := (Samples{}).MaxIntensity(); got != -1 {
		t.Errorf("MaxIntensity() on empty = %d, want -1", got)
	}
}

func TestParamErrorMatchesSentinel(t *testing.T) {
	err := InvalidParam("window", 0.0, "must be positive")
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("errors.Is(%v, ErrInvalidParameter) = false", err)
	}
	if errors.Is(err, ErrInsufficientData) {
		t.Errorf("errors.Is(%v, ErrInsufficientData) = true", err)
	}
}
