// Package feature holds detected features and the feature finder that
// builds them from picked peaks.
package feature

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// Point is a position in the RT x m/z plane.
type Point struct {
	RT, MZ float64
}

// Feature is a detected chemical species.
type Feature struct {
	ID        uuid.UUID
	RT        float64 // apex retention time
	MZ        float64 // monoisotopic m/z
	Intensity float64 // summed envelope intensity
	Charge    int
	Quality   float64 // mean isotope pattern similarity
	Hull      []Point // convex hull of the contributing peaks, counter-clockwise
}

// Range is a closed interval. The empty range has Min > Max.
type Range struct {
	Min, Max float64
}

// Empty reports whether the range contains no values.
func (r Range) Empty() bool { return r.Min > r.Max }

// Contains reports whether v lies in the range.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Span returns Max-Min, or zero for the empty range.
func (r Range) Span() float64 {
	if r.Empty() {
		return 0
	}
	return r.Max - r.Min
}

func (r *Range) extend(v float64) {
	r.Min = math.Min(r.Min, v)
	r.Max = math.Max(r.Max, v)
}

var emptyRange = Range{Min: math.Inf(1), Max: math.Inf(-1)}

// Ranges holds the RT, m/z and intensity extent of a feature map.
type Ranges struct {
	RT, MZ, Intensity Range
}

// EmptyRanges is the extent of a map without features.
var EmptyRanges = Ranges{RT: emptyRange, MZ: emptyRange, Intensity: emptyRange}

// Empty reports whether the ranges describe no features.
func (r Ranges) Empty() bool { return r.RT.Empty() }

// FeatureMap is an ordered feature collection with cached ranges.
//
// Every mutation marks the cached ranges stale. Ranges fails with
// core.ErrStaleRanges until UpdateRanges recomputes them. A FeatureMap is
// not safe for concurrent mutation.
type FeatureMap struct {
	ID       uuid.UUID
	Name     string
	features []Feature
	ranges   Ranges
	stale    bool
}

// NewFeatureMap returns a map holding a copy of features. Its ranges start
// stale.
func NewFeatureMap(name string, features ...Feature) *FeatureMap {
	m := &FeatureMap{ID: uuid.New(), Name: name, stale: true}
	m.features = append(m.features, features...)
	return m
}

// Len returns the number of features.
func (m *FeatureMap) Len() int { return len(m.features) }

// At returns feature i.
func (m *FeatureMap) At(i int) Feature { return m.features[i] }

// Features returns a copy of the features.
func (m *FeatureMap) Features() []Feature {
	out := make([]Feature, len(m.features))
	copy(out, m.features)
	return out
}

// Add appends features and marks the ranges stale.
func (m *FeatureMap) Add(fs ...Feature) {
	m.features = append(m.features, fs...)
	m.stale = true
}

// Set replaces feature i and marks the ranges stale.
func (m *FeatureMap) Set(i int, f Feature) {
	m.features[i] = f
	m.stale = true
}

// SortByPosition orders features by RT, then m/z, then ID. Ordering does
// not change the ranges.
func (m *FeatureMap) SortByPosition() {
	sort.SliceStable(m.features, func(i, j int) bool {
		a, b := m.features[i], m.features[j]
		if a.RT != b.RT {
			return a.RT < b.RT
		}
		if a.MZ != b.MZ {
			return a.MZ < b.MZ
		}
		return a.ID.String() < b.ID.String()
	})
}

// TransformRT maps every feature RT and hull point through fn and marks the
// ranges stale.
func (m *FeatureMap) TransformRT(fn func(rt float64) float64) {
	for i := range m.features {
		f := &m.features[i]
		f.RT = fn(f.RT)
		hull := make([]Point, len(f.Hull))
		for k, p := range f.Hull {
			hull[k] = Point{RT: fn(p.RT), MZ: p.MZ}
		}
		f.Hull = hull
	}
	m.stale = true
}

// Clone returns a deep copy with the same ID and staleness.
func (m *FeatureMap) Clone() *FeatureMap {
	c := *m
	c.features = make([]Feature, len(m.features))
	for i, f := range m.features {
		f.Hull = append([]Point(nil), f.Hull...)
		c.features[i] = f
	}
	return &c
}

// Stale reports whether the cached ranges need recomputing.
func (m *FeatureMap) Stale() bool { return m.stale }

// UpdateRanges recomputes and returns the cached ranges. An empty map yields
// EmptyRanges.
func (m *FeatureMap) UpdateRanges() Ranges {
	r := EmptyRanges
	for _, f := range m.features {
		r.RT.extend(f.RT)
		r.MZ.extend(f.MZ)
		r.Intensity.extend(f.Intensity)
	}
	m.ranges = r
	m.stale = false
	return r
}

// Ranges returns the cached ranges.
func (m *FeatureMap) Ranges() (Ranges, error) {
	if m.stale {
		return EmptyRanges, fmt.Errorf("%w: feature map %q was modified after the last UpdateRanges", core.ErrStaleRanges, m.Name)
	}
	return m.ranges, nil
}
