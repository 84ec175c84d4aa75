// Package align aligns the retention time axis of one feature map to a
// reference by pose clustering.
//
// Candidate transformations ("poses") are computed from feature pairs with
// similar m/z, voted into buckets in parameter space and the dominant bucket
// is refined by least squares over the feature pairs it matches.
package align

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChrisMcGann/msfeat/pkg/core"
	"github.com/ChrisMcGann/msfeat/pkg/feature"
)

// Model selects the transformation family searched for.
type Model int

const (
	// Shift searches rt_ref = rt_target + b.
	Shift Model = iota
	// Affine searches rt_ref = a*rt_target + b.
	Affine
)

func (m Model) String() string {
	if m == Affine {
		return "affine"
	}
	return "shift"
}

// ParseModel parses "shift" or "affine".
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "shift":
		return Shift, nil
	case "affine", "linear":
		return Affine, nil
	}
	return Shift, core.InvalidParam("alignment.model", s, "must be shift or affine")
}

// Config holds alignment settings. Start from DefaultConfig.
type Config struct {
	Model Model

	RTTolerance       float64 // match window after transformation
	MZTolerance       float64 // match window for refinement and support
	MZPairMaxDistance float64 // m/z window for pose candidates

	ShiftBucketSize   float64
	ScalingBucketSize float64
	MaxShift          float64
	MaxScaling        float64 // affine scales outside [1/MaxScaling, MaxScaling] are discarded

	// RTPairDistanceFraction is the minimum RT separation of the two
	// points of an affine pose, relative to the target RT range.
	RTPairDistanceFraction float64
	// MaxPoseFeatures limits affine pose generation to the most intense
	// features of each map.
	MaxPoseFeatures int

	MinSupport int // minimum matched feature pairs

	// Interpolate returns a piecewise linear transformation through the
	// matched pairs instead of the fitted line.
	Interpolate bool
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Model:                  Shift,
		RTTolerance:            20,
		MZTolerance:            0.01,
		MZPairMaxDistance:      0.5,
		ShiftBucketSize:        5,
		ScalingBucketSize:      0.005,
		MaxShift:               1000,
		MaxScaling:             2,
		RTPairDistanceFraction: 0.1,
		MaxPoseFeatures:        200,
		MinSupport:             3,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	switch {
	case c.Model != Shift && c.Model != Affine:
		return core.InvalidParam("alignment.model", int(c.Model), "unknown model")
	case !(c.RTTolerance > 0):
		return core.InvalidParam("alignment.rt_tolerance", c.RTTolerance, "must be positive")
	case !(c.MZTolerance > 0):
		return core.InvalidParam("alignment.mz_tolerance", c.MZTolerance, "must be positive")
	case !(c.MZPairMaxDistance > 0):
		return core.InvalidParam("alignment.mz_pair_max_distance", c.MZPairMaxDistance, "must be positive")
	case !(c.ShiftBucketSize > 0):
		return core.InvalidParam("alignment.shift_bucket_size", c.ShiftBucketSize, "must be positive")
	case !(c.ScalingBucketSize > 0):
		return core.InvalidParam("alignment.scaling_bucket_size", c.ScalingBucketSize, "must be positive")
	case !(c.MaxShift > 0):
		return core.InvalidParam("alignment.max_shift", c.MaxShift, "must be positive")
	case !(c.MaxScaling > 1):
		return core.InvalidParam("alignment.max_scaling", c.MaxScaling, "must exceed 1")
	case c.RTPairDistanceFraction < 0 || c.RTPairDistanceFraction >= 1:
		return core.InvalidParam("alignment.rt_pair_distance_fraction", c.RTPairDistanceFraction, "must be in [0, 1)")
	case c.MaxPoseFeatures < 2:
		return core.InvalidParam("alignment.max_pose_features", c.MaxPoseFeatures, "must be at least 2")
	case c.MinSupport < 1:
		return core.InvalidParam("alignment.min_support", c.MinSupport, "must be positive")
	}
	return nil
}

// Pair is a matched feature pair, by index into the reference and target
// maps.
type Pair struct {
	Ref, Target int
}

// Result is the outcome of an alignment.
type Result struct {
	Transform  Transformation // maps target RT to reference RT
	Support    float64        // matched target features / target size
	Matched    int
	Candidates int // poses voted
	Pairs      []Pair
}

// Align finds the transformation of target's RT axis onto ref's. Neither
// map is modified.
func Align(ref, target *feature.FeatureMap, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rs, ts := ref.Features(), target.Features()
	if len(rs) == 0 || len(ts) == 0 {
		return nil, fmt.Errorf("%w: cannot align %d reference to %d target features", core.ErrInsufficientOverlap, len(rs), len(ts))
	}

	var poses []pose
	if cfg.Model == Affine {
		poses = affinePoses(rs, ts, cfg)
	} else {
		poses = shiftPoses(rs, ts, cfg)
	}
	if len(poses) == 0 {
		return nil, fmt.Errorf("%w: no feature pairs within m/z %g", core.ErrInsufficientOverlap, cfg.MZPairMaxDistance)
	}

	initial := cluster(poses, cfg)
	pairs := match(rs, ts, initial, cfg)
	if len(pairs) < cfg.MinSupport {
		return nil, fmt.Errorf("%w: %d matched pairs, need %d", core.ErrInsufficientOverlap, len(pairs), cfg.MinSupport)
	}

	refined := refine(rs, ts, pairs, cfg.Model)
	pairs = match(rs, ts, refined, cfg)
	if len(pairs) < cfg.MinSupport {
		return nil, fmt.Errorf("%w: %d matched pairs after refinement, need %d", core.ErrInsufficientOverlap, len(pairs), cfg.MinSupport)
	}

	res := &Result{
		Transform:  refined,
		Support:    float64(len(pairs)) / float64(len(ts)),
		Matched:    len(pairs),
		Candidates: len(poses),
		Pairs:      pairs,
	}
	if cfg.Interpolate {
		if t, err := interpolate(rs, ts, pairs); err == nil {
			res.Transform = t
		}
	}
	return res, nil
}

// Apply maps the RTs of m through t. The map's ranges become stale.
func Apply(m *feature.FeatureMap, t Transformation) {
	m.TransformRT(t.Apply)
}

type pose struct {
	scale, shift float64
}

// byMZ returns the indices of fs sorted by m/z.
func byMZ(fs []feature.Feature) []int {
	idx := make([]int, len(fs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return fs[idx[a]].MZ < fs[idx[b]].MZ })
	return idx
}

// partners calls fn for every reference feature within tol m/z of mz.
// order is byMZ(rs).
func partners(rs []feature.Feature, order []int, mz, tol float64, fn func(r int)) {
	lo := sort.Search(len(order), func(i int) bool { return rs[order[i]].MZ >= mz-tol })
	for i := lo; i < len(order) && rs[order[i]].MZ <= mz+tol; i++ {
		fn(order[i])
	}
}

func compatible(a, b feature.Feature) bool {
	return a.Charge == 0 || b.Charge == 0 || a.Charge == b.Charge
}

func shiftPoses(rs, ts []feature.Feature, cfg Config) []pose {
	order := byMZ(rs)
	var poses []pose
	for _, t := range ts {
		partners(rs, order, t.MZ, cfg.MZPairMaxDistance, func(r int) {
			if !compatible(rs[r], t) {
				return
			}
			if b := rs[r].RT - t.RT; math.Abs(b) <= cfg.MaxShift {
				poses = append(poses, pose{scale: 1, shift: b})
			}
		})
	}
	return poses
}

type couple struct {
	ref, target feature.Feature
}

func affinePoses(rs, ts []feature.Feature, cfg Config) []pose {
	rs = mostIntense(rs, cfg.MaxPoseFeatures)
	ts = mostIntense(ts, cfg.MaxPoseFeatures)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range ts {
		lo, hi = math.Min(lo, t.RT), math.Max(hi, t.RT)
	}
	minSep := cfg.RTPairDistanceFraction * (hi - lo)

	order := byMZ(rs)
	var couples []couple
	for _, t := range ts {
		partners(rs, order, t.MZ, cfg.MZPairMaxDistance, func(r int) {
			if compatible(rs[r], t) {
				couples = append(couples, couple{ref: rs[r], target: t})
			}
		})
	}

	logMax := math.Log(cfg.MaxScaling)
	var poses []pose
	for i := range couples {
		for j := i + 1; j < len(couples); j++ {
			p, q := couples[i], couples[j]
			dt := q.target.RT - p.target.RT
			if math.Abs(dt) < minSep || dt == 0 {
				continue
			}
			a := (q.ref.RT - p.ref.RT) / dt
			if !(a > 0) || math.Abs(math.Log(a)) > logMax {
				continue
			}
			b := p.ref.RT - a*p.target.RT
			if math.Abs(b) > cfg.MaxShift {
				continue
			}
			poses = append(poses, pose{scale: a, shift: b})
		}
	}
	return poses
}

// mostIntense returns up to n features by descending intensity. Ties keep
// the input order.
func mostIntense(fs []feature.Feature, n int) []feature.Feature {
	if len(fs) <= n {
		return fs
	}
	out := append([]feature.Feature(nil), fs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Intensity > out[j].Intensity })
	return out[:n]
}
