package align

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// Kind identifies the form of a Transformation.
type Kind int

const (
	Identity Kind = iota
	Linear
	Interpolated
)

func (k Kind) String() string {
	switch k {
	case Linear:
		return "linear"
	case Interpolated:
		return "interpolated"
	default:
		return "identity"
	}
}

// Knot is one source to target correspondence of an interpolated
// transformation.
type Knot struct {
	Source, Target float64
}

// Transformation maps a source RT to a target RT.
type Transformation struct {
	Kind      Kind
	Slope     float64 // Linear only
	Intercept float64 // Linear only
	Knots     []Knot  // Interpolated only, strictly increasing Source
}

// IdentityTransform returns the identity mapping.
func IdentityTransform() Transformation {
	return Transformation{Kind: Identity, Slope: 1}
}

// LinearTransform returns x -> slope*x + intercept.
func LinearTransform(slope, intercept float64) Transformation {
	return Transformation{Kind: Linear, Slope: slope, Intercept: intercept}
}

// InterpolatedTransform returns the piecewise linear mapping through knots,
// extended linearly beyond the first and last segment. Knots are sorted by
// source; at least two with distinct sources are required.
func InterpolatedTransform(knots []Knot) (Transformation, error) {
	ks := append([]Knot(nil), knots...)
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].Source < ks[j].Source })
	if len(ks) < 2 {
		return Transformation{}, fmt.Errorf("%w: interpolation needs at least 2 knots, got %d", core.ErrInsufficientData, len(ks))
	}
	for i := 1; i < len(ks); i++ {
		if ks[i].Source == ks[i-1].Source {
			return Transformation{}, core.InvalidParam("knots", ks[i].Source, "duplicate source position")
		}
	}
	return Transformation{Kind: Interpolated, Knots: ks}, nil
}

// Apply maps x.
func (t Transformation) Apply(x float64) float64 {
	switch t.Kind {
	case Linear:
		return t.Slope*x + t.Intercept
	case Interpolated:
		ks := t.Knots
		j := sort.Search(len(ks), func(i int) bool { return ks[i].Source > x }) - 1
		if j < 0 {
			j = 0
		}
		if j > len(ks)-2 {
			j = len(ks) - 2
		}
		a, b := ks[j], ks[j+1]
		return a.Target + (x-a.Source)*(b.Target-a.Target)/(b.Source-a.Source)
	default:
		return x
	}
}

// Inverse returns the inverse mapping. It fails for a constant linear
// mapping and for interpolations whose targets are not strictly increasing.
func (t Transformation) Inverse() (Transformation, error) {
	switch t.Kind {
	case Linear:
		if t.Slope == 0 {
			return Transformation{}, fmt.Errorf("%w: linear transformation with zero slope has no inverse", core.ErrNumericalInstability)
		}
		return LinearTransform(1/t.Slope, -t.Intercept/t.Slope), nil
	case Interpolated:
		inv := make([]Knot, len(t.Knots))
		for i, k := range t.Knots {
			if i > 0 && k.Target <= t.Knots[i-1].Target {
				return Transformation{}, fmt.Errorf("%w: interpolated transformation is not monotonic", core.ErrNumericalInstability)
			}
			inv[i] = Knot{Source: k.Target, Target: k.Source}
		}
		return Transformation{Kind: Interpolated, Knots: inv}, nil
	default:
		return IdentityTransform(), nil
	}
}

func (t Transformation) String() string {
	switch t.Kind {
	case Linear:
		return fmt.Sprintf("linear(slope=%g, intercept=%g)", t.Slope, t.Intercept)
	case Interpolated:
		return fmt.Sprintf("interpolated(%d knots)", len(t.Knots))
	default:
		return "identity"
	}
}
