package align

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/msfeat/pkg/core"
	"github.com/ChrisMcGann/msfeat/pkg/feature"
)

func referenceMap(n int) *feature.FeatureMap {
	m := feature.NewFeatureMap("ref")
	for i := 0; i < n; i++ {
		m.Add(feature.Feature{
			RT:        50 + 100*float64(i),
			MZ:        400 + 17.3*float64(i),
			Intensity: 1000 + float64(i),
			Charge:    2,
		})
	}
	m.UpdateRanges()
	return m
}

// warped returns a copy of ref whose RTs satisfy rt_ref = a*rt + b.
func warped(ref *feature.FeatureMap, a, b float64) *feature.FeatureMap {
	m := ref.Clone()
	m.Name = "target"
	m.TransformRT(func(rt float64) float64 { return (rt - b) / a })
	m.UpdateRanges()
	return m
}

func TestAlignIdenticalMaps(t *testing.T) {
	ref := referenceMap(30)

	for _, model := range []Model{Shift, Affine} {
		t.Run(model.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Model = model

			res, err := Align(ref, ref.Clone(), cfg)
			require.NoError(t, err)
			assert.InDelta(t, 1, res.Transform.Slope, 1e-9)
			assert.InDelta(t, 0, res.Transform.Intercept, 1e-9)
			assert.Equal(t, 1.0, res.Support)
			assert.Equal(t, 30, res.Matched)
			assert.Positive(t, res.Candidates)
			for _, p := range res.Pairs {
				assert.Equal(t, p.Ref, p.Target)
			}
		})
	}
}

func TestAlignRecoversShift(t *testing.T) {
	ref := referenceMap(30)
	target := warped(ref, 1, 42)
	// Features without a reference partner.
	for i := 0; i < 5; i++ {
		target.Add(feature.Feature{RT: 300 * float64(i), MZ: 1500 + float64(i), Intensity: 10, Charge: 2})
	}

	res, err := Align(ref, target, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, Linear, res.Transform.Kind)
	assert.Equal(t, 1.0, res.Transform.Slope)
	assert.InDelta(t, 42, res.Transform.Intercept, 1e-9)
	assert.Equal(t, 30, res.Matched)
	assert.InDelta(t, 30.0/35.0, res.Support, 1e-12)
}

func TestAlignRecoversAffine(t *testing.T) {
	ref := referenceMap(30)
	target := warped(ref, 1.05, 12)

	cfg := DefaultConfig()
	cfg.Model = Affine
	res, err := Align(ref, target, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 1.05, res.Transform.Slope, 1e-9)
	assert.InDelta(t, 12, res.Transform.Intercept, 1e-6)
	assert.Equal(t, 1.0, res.Support)
}

func TestAlignDoesNotMutateInputs(t *testing.T) {
	ref := referenceMap(20)
	target := warped(ref, 1, -30)
	before := target.Features()

	_, err := Align(ref, target, DefaultConfig())
	require.NoError(t, err)
	if diff := cmp.Diff(before, target.Features()); diff != "" {
		t.Errorf("Align() modified target (-before +after):\n%s", diff)
	}
	assert.False(t, target.Stale())
	assert.False(t, ref.Stale())
}

func TestApply(t *testing.T) {
	ref := referenceMap(20)
	target := warped(ref, 1, 25)

	res, err := Align(ref, target, DefaultConfig())
	require.NoError(t, err)

	Apply(target, res.Transform)
	_, err = target.Ranges()
	require.ErrorIs(t, err, core.ErrStaleRanges)

	got := target.UpdateRanges()
	want, err := ref.Ranges()
	require.NoError(t, err)
	assert.InDelta(t, want.RT.Min, got.RT.Min, 1e-9)
	assert.InDelta(t, want.RT.Max, got.RT.Max, 1e-9)
}

func TestAlignInterpolate(t *testing.T) {
	ref := referenceMap(10)
	target := warped(ref, 1, 8)

	cfg := DefaultConfig()
	cfg.Interpolate = true
	res, err := Align(ref, target, cfg)
	require.NoError(t, err)
	require.Equal(t, Interpolated, res.Transform.Kind)
	assert.Len(t, res.Transform.Knots, 10)
	for i := 0; i < target.Len(); i++ {
		assert.InDelta(t, ref.At(i).RT, res.Transform.Apply(target.At(i).RT), 1e-9)
	}
}

func TestAlignInsufficientOverlap(t *testing.T) {
	ref := referenceMap(10)

	far := ref.Clone()
	for i := 0; i < far.Len(); i++ {
		f := far.At(i)
		f.MZ += 5
		far.Set(i, f)
	}

	tests := []struct {
		name   string
		target *feature.FeatureMap
		cfg    func(*Config)
	}{
		{"no m/z partners", far, nil},
		{"empty target", feature.NewFeatureMap("empty"), nil},
		{"min support", ref.Clone(), func(c *Config) { c.MinSupport = 11 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			_, err := Align(ref, tt.target, cfg)
			if !errors.Is(err, core.ErrInsufficientOverlap) {
				t.Errorf("Align() error = %v, want ErrInsufficientOverlap", err)
			}
		})
	}
}

func TestBestBucketTieBreak(t *testing.T) {
	tests := []struct {
		name  string
		votes map[bucket]float64
		want  bucket
	}{
		{"smallest shift", map[bucket]float64{{0, 10}: 3, {0, -10}: 3, {0, 4}: 3}, bucket{0, 4}},
		{"negative before positive", map[bucket]float64{{0, 2}: 3, {0, -2}: 3}, bucket{0, -2}},
		{"scale nearest one", map[bucket]float64{{3, 0}: 2, {-1, 0}: 2, {5, 0}: 2}, bucket{-1, 0}},
		{"neighbour smoothing", map[bucket]float64{{0, 0}: 1, {0, 5}: 1, {0, 6}: 1}, bucket{0, 5}},
		{"votes win over position", map[bucket]float64{{0, 0}: 1, {0, 40}: 4}, bucket{0, 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bestBucket(tt.votes))
		})
	}
}

func TestTransformation(t *testing.T) {
	lin := LinearTransform(2, 3)
	assert.Equal(t, 13.0, lin.Apply(5))
	inv, err := lin.Inverse()
	require.NoError(t, err)
	assert.InDelta(t, 5, inv.Apply(13), 1e-12)

	_, err = LinearTransform(0, 1).Inverse()
	assert.ErrorIs(t, err, core.ErrNumericalInstability)

	id := IdentityTransform()
	assert.Equal(t, 7.5, id.Apply(7.5))
	assert.Equal(t, "identity", id.String())

	ip, err := InterpolatedTransform([]Knot{{10, 20}, {0, 0}, {20, 30}})
	require.NoError(t, err)
	assert.Equal(t, 10.0, ip.Apply(5))
	assert.Equal(t, 25.0, ip.Apply(15))
	assert.Equal(t, -20.0, ip.Apply(-10))
	assert.Equal(t, 40.0, ip.Apply(30))

	ipInv, err := ip.Inverse()
	require.NoError(t, err)
	assert.Equal(t, 15.0, ipInv.Apply(25))

	_, err = InterpolatedTransform([]Knot{{1, 1}})
	assert.ErrorIs(t, err, core.ErrInsufficientData)
	_, err = InterpolatedTransform([]Knot{{1, 1}, {1, 2}})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	folded, err := InterpolatedTransform([]Knot{{0, 0}, {1, 5}, {2, 3}})
	require.NoError(t, err)
	_, err = folded.Inverse()
	assert.ErrorIs(t, err, core.ErrNumericalInstability)
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("affine")
	require.NoError(t, err)
	assert.Equal(t, Affine, m)
	_, err = ParseModel("spline")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}
