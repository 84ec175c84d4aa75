package isotope

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ChrisMcGann/msfeat/pkg/chem"
	"github.com/ChrisMcGann/msfeat/pkg/core"
)

func TestAbundancesSumToOne(t *testing.T) {
	formulas := []string{"H2O", "CH3OH", "C6H12O6", "C100H200O50N20", "C254H377N65O75S6", "CH2Cl2", "C12H8Br2"}
	for _, method := range []Method{Polynomial, FFT} {
		for _, s := range formulas {
			t.Run(method.String()+"/"+s, func(t *testing.T) {
				d, err := Generate(chem.MustParseFormula(s), chem.Default(), Options{Method: method})
				if err != nil {
					t.Fatalf("Generate() error: %v", err)
				}
				if sum := d.Sum(); math.Abs(sum-1) > 1e-6 {
					t.Errorf("Sum() = %.9f, want 1", sum)
				}
				for i := 1; i < len(d); i++ {
					if d[i].Offset <= d[i-1].Offset {
						t.Fatalf("offsets not increasing at %d: %v", i, d)
					}
				}
			})
		}
	}
}

func TestPolynomialMatchesFFT(t *testing.T) {
	f := chem.MustParseFormula("C100H200O50N20")
	opts := Options{Resolution: 1}

	opts.Method = Polynomial
	poly, err := Generate(f, chem.Default(), opts)
	if err != nil {
		t.Fatalf("polynomial Generate() error: %v", err)
	}
	opts.Method = FFT
	fft, err := Generate(f, chem.Default(), opts)
	if err != nil {
		t.Fatalf("fft Generate() error: %v", err)
	}

	const n = 20
	if diff := cmp.Diff(poly.Dense(n), fft.Dense(n), cmpopts.EquateApprox(0, 1e-4)); diff != "" {
		t.Errorf("polynomial and fft distributions differ (-poly +fft):\n%s", diff)
	}
	if math.Abs(poly[0].Mass-fft[0].Mass) > 1e-6 {
		t.Errorf("monoisotopic masses differ: %.6f vs %.6f", poly[0].Mass, fft[0].Mass)
	}
	if math.Abs(poly.AverageMass()-fft.AverageMass()) > 1e-3 {
		t.Errorf("average masses differ: %.6f vs %.6f", poly.AverageMass(), fft.AverageMass())
	}
}

func TestCarbonBinomial(t *testing.T) {
	d, err := Generate(chem.Formula{"C": 100}, chem.Default(), Options{Method: Polynomial})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	p := 0.0107
	for k := 0; k < 4; k++ {
		binom := math.Gamma(101) / (math.Gamma(float64(k+1)) * math.Gamma(float64(101-k)))
		want := binom * math.Pow(p, float64(k)) * math.Pow(1-p, float64(100-k))
		if got := d.Abundance(k); math.Abs(got-want) > 1e-9 {
			t.Errorf("Abundance(%d) = %.10f, want %.10f", k, got, want)
		}
	}
	if got := d[0].Mass; math.Abs(got-1200) > 1e-9 {
		t.Errorf("monoisotopic mass = %v, want 1200", got)
	}
	if got := d[1].Mass; math.Abs(got-1201.0033548378) > 1e-9 {
		t.Errorf("M+1 mass = %.10f, want 1201.0033548378", got)
	}
}

func TestGenerateEdgeCases(t *testing.T) {
	db := chem.Default()

	t.Run("zero count is a no-op", func(t *testing.T) {
		with, err := Generate(chem.Formula{"C": 6, "H": 6, "S": 0}, db, Options{})
		if err != nil {
			t.Fatal(err)
		}
		without, err := Generate(chem.Formula{"C": 6, "H": 6}, db, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(with, without); diff != "" {
			t.Errorf("zero count changed the result:\n%s", diff)
		}
	})

	t.Run("negative count", func(t *testing.T) {
		for _, m := range []Method{Polynomial, FFT} {
			_, err := Generate(chem.Formula{"C": 6, "H": -1}, db, Options{Method: m})
			if !errors.Is(err, core.ErrInvalidFormula) {
				t.Errorf("%s: error = %v, want ErrInvalidFormula", m, err)
			}
		}
	})

	t.Run("non-positive resolution uses default", func(t *testing.T) {
		f := chem.MustParseFormula("C50H80N10O12")
		got, err := Generate(f, db, Options{Resolution: -3})
		if err != nil {
			t.Fatal(err)
		}
		want, err := Generate(f, db, Options{Resolution: DefaultResolution})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("resolution fallback differs:\n%s", diff)
		}
	})

	t.Run("max isotopes", func(t *testing.T) {
		d, err := Generate(chem.MustParseFormula("C100H200O50N20"), db, Options{MaxIsotopes: 3})
		if err != nil {
			t.Fatal(err)
		}
		if len(d) != 3 {
			t.Fatalf("len = %d, want 3", len(d))
		}
		if math.Abs(d.Sum()-1) > 1e-9 {
			t.Errorf("Sum() = %v after trimming", d.Sum())
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := Generate(chem.Formula{"C": 1}, db, Options{MinAbundance: 1.5})
		if !errors.Is(err, core.ErrInvalidParameter) {
			t.Errorf("error = %v, want ErrInvalidParameter", err)
		}
	})
}

func TestMonoisotopicPeakMass(t *testing.T) {
	f := chem.MustParseFormula("C6H12O6")
	d, err := Generate(f, chem.Default(), Options{Method: FFT})
	if err != nil {
		t.Fatal(err)
	}
	mono, _ := f.MonoisotopicMass(chem.Default())
	if math.Abs(d[0].Mass-mono) > 1e-9 {
		t.Errorf("offset 0 mass = %.6f, want %.6f", d[0].Mass, mono)
	}
	if d.MostAbundant().Offset != 0 {
		t.Errorf("MostAbundant() = %+v, want offset 0", d.MostAbundant())
	}
}

func TestAveragine(t *testing.T) {
	for _, mass := range []float64{500, 1000, 2500, 5000} {
		f := Averagine(mass)
		got, err := f.MonoisotopicMass(chem.Default())
		if err != nil {
			t.Fatalf("Averagine(%v) produced invalid formula %v: %v", mass, f, err)
		}
		if math.Abs(got-mass) > 0.6 {
			t.Errorf("Averagine(%v) = %s with mass %.3f", mass, f, got)
		}
	}
	if len(Averagine(-1)) != 0 {
		t.Error("Averagine(-1) should be empty")
	}
}

func TestSimilarity(t *testing.T) {
	d, err := Generate(Averagine(1500), chem.Default(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	observed := d.Dense(4)
	for i := range observed {
		observed[i] *= 1e6
	}
	if got := Similarity(observed, d); math.Abs(got-1) > 1e-9 {
		t.Errorf("Similarity(self) = %v, want 1", got)
	}
	if got := Similarity([]float64{0, 0, 1e6, 0}, d); got > 0.5 {
		t.Errorf("Similarity(shifted) = %v, want < 0.5", got)
	}
	if got := Similarity(nil, d); got != 0 {
		t.Errorf("Similarity(nil) = %v, want 0", got)
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"fft", FFT, false},
		{"Polynomial", Polynomial, false},
		{"", Auto, false},
		{"midas", Auto, true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMethod(%q) = %v, %v", tt.in, got, err)
		}
	}
}
