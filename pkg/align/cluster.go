package align

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/msfeat/pkg/feature"
)

type bucket struct {
	scale, shift int
}

func (c Config) bucketOf(p pose) bucket {
	return bucket{
		scale: int(math.Round((p.scale - 1) / c.ScalingBucketSize)),
		shift: int(math.Round(p.shift / c.ShiftBucketSize)),
	}
}

// cluster votes poses into buckets and returns the mean pose of the
// dominant bucket and its direct neighbours.
func cluster(poses []pose, cfg Config) Transformation {
	votes := make(map[bucket]float64)
	for _, p := range poses {
		votes[cfg.bucketOf(p)]++
	}
	best := bestBucket(votes)

	var sa, sb, n float64
	for _, p := range poses {
		k := cfg.bucketOf(p)
		if absInt(k.scale-best.scale) <= 1 && absInt(k.shift-best.shift) <= 1 {
			sa += p.scale
			sb += p.shift
			n++
		}
	}
	return LinearTransform(sa/n, sb/n)
}

// bestBucket returns the bucket with the highest smoothed score: its own
// votes plus half the votes of its eight neighbours. Ties prefer the
// smallest shift magnitude, then the scale closest to 1, then the lower
// shift and scale.
func bestBucket(votes map[bucket]float64) bucket {
	keys := make([]bucket, 0, len(votes))
	for k := range votes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if absInt(a.shift) != absInt(b.shift) {
			return absInt(a.shift) < absInt(b.shift)
		}
		if absInt(a.scale) != absInt(b.scale) {
			return absInt(a.scale) < absInt(b.scale)
		}
		if a.shift != b.shift {
			return a.shift < b.shift
		}
		return a.scale < b.scale
	})

	var best bucket
	bestScore := math.Inf(-1)
	for _, k := range keys {
		score := votes[k]
		for ds := -1; ds <= 1; ds++ {
			for db := -1; db <= 1; db++ {
				if ds == 0 && db == 0 {
					continue
				}
				score += 0.5 * votes[bucket{scale: k.scale + ds, shift: k.shift + db}]
			}
		}
		if score > bestScore {
			best, bestScore = k, score
		}
	}
	return best
}

type edge struct {
	ref, target int
	dist        float64
}

// match pairs target features with reference features within the m/z and
// transformed RT tolerances. Each feature takes part in at most one pair;
// closer pairs win. Pairs are returned in target order.
func match(rs, ts []feature.Feature, t Transformation, cfg Config) []Pair {
	order := byMZ(rs)
	var edges []edge
	for i, f := range ts {
		rt := t.Apply(f.RT)
		partners(rs, order, f.MZ, cfg.MZTolerance, func(r int) {
			if !compatible(rs[r], f) {
				return
			}
			if d := math.Abs(rs[r].RT - rt); d <= cfg.RTTolerance {
				edges = append(edges, edge{ref: r, target: i, dist: d})
			}
		})
	}
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.target != b.target {
			return a.target < b.target
		}
		return a.ref < b.ref
	})

	usedRef := make(map[int]bool)
	usedTarget := make(map[int]bool)
	var pairs []Pair
	for _, e := range edges {
		if usedRef[e.ref] || usedTarget[e.target] {
			continue
		}
		usedRef[e.ref] = true
		usedTarget[e.target] = true
		pairs = append(pairs, Pair{Ref: e.ref, Target: e.target})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Target < pairs[j].Target })
	return pairs
}

// refine fits the model to the matched pairs by least squares.
func refine(rs, ts []feature.Feature, pairs []Pair, model Model) Transformation {
	x := make([]float64, len(pairs))
	y := make([]float64, len(pairs))
	diff := make([]float64, len(pairs))
	for i, p := range pairs {
		x[i] = ts[p.Target].RT
		y[i] = rs[p.Ref].RT
		diff[i] = y[i] - x[i]
	}
	if model == Affine && len(pairs) >= 2 {
		alpha, beta := stat.LinearRegression(x, y, nil, false)
		if !math.IsNaN(alpha) && !math.IsNaN(beta) && !math.IsInf(beta, 0) && beta > 0 {
			return LinearTransform(beta, alpha)
		}
	}
	return LinearTransform(1, stat.Mean(diff, nil))
}

// interpolate builds a piecewise linear transformation through the matched
// pairs. Pairs sharing a target RT are averaged.
func interpolate(rs, ts []feature.Feature, pairs []Pair) (Transformation, error) {
	sums := make(map[float64][2]float64)
	for _, p := range pairs {
		src := ts[p.Target].RT
		s := sums[src]
		s[0] += rs[p.Ref].RT
		s[1]++
		sums[src] = s
	}
	knots := make([]Knot, 0, len(sums))
	for src, s := range sums {
		knots = append(knots, Knot{Source: src, Target: s[0] / s[1]})
	}
	return InterpolatedTransform(knots)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
