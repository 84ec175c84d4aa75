package isotope

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/msfeat/pkg/chem"
)

// pruneBelow drops polynomial terms whose probability underflows any
// meaningful abundance.
const pruneBelow = 1e-16

// term is one coefficient of an isotope generating polynomial. wmass is the
// probability-weighted mass so merged terms keep an exact mean mass.
type term struct {
	bin   int
	prob  float64
	wmass float64
}

type polynomial []term

func unitPolynomial() polynomial {
	return polynomial{{bin: 0, prob: 1, wmass: 0}}
}

// elementPolynomial bins one atom's isotopes on the resolution grid.
func elementPolynomial(e *chem.Element, resolution float64) polynomial {
	light := e.Isotopes[0].Mass
	merged := map[int]*term{}
	for _, iso := range e.Isotopes {
		b := int(math.Round((iso.Mass - light) / resolution))
		t, ok := merged[b]
		if !ok {
			t = &term{bin: b}
			merged[b] = t
		}
		t.prob += iso.Abundance
		t.wmass += iso.Abundance * iso.Mass
	}
	out := make(polynomial, 0, len(merged))
	for _, t := range merged {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].bin < out[j].bin })
	return out
}

// multiply convolves a and b, merging equal bins and pruning tiny terms.
func (a polynomial) multiply(b polynomial) polynomial {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	lo := a[0].bin + b[0].bin
	hi := a[len(a)-1].bin + b[len(b)-1].bin
	acc := make([]term, hi-lo+1)
	for _, x := range a {
		for _, y := range b {
			t := &acc[x.bin+y.bin-lo]
			t.prob += x.prob * y.prob
			t.wmass += x.wmass*y.prob + y.wmass*x.prob
		}
	}
	out := make(polynomial, 0, len(acc))
	for i, t := range acc {
		if t.prob < pruneBelow {
			continue
		}
		t.bin = lo + i
		out = append(out, t)
	}
	return out
}

// pow raises p to n by repeated squaring.
func (p polynomial) pow(n int) polynomial {
	result := unitPolynomial()
	base := p
	for n > 0 {
		if n&1 == 1 {
			result = result.multiply(base)
		}
		n >>= 1
		if n > 0 {
			base = base.multiply(base)
		}
	}
	return result
}

// polynomialDistribution expands the generating polynomial of f.
func polynomialDistribution(f chem.Formula, db *chem.DB, resolution float64) Distribution {
	total := unitPolynomial()
	for _, s := range f.Symbols() {
		n := f[s]
		if n == 0 {
			continue
		}
		e, _ := db.Lookup(s)
		total = total.multiply(elementPolynomial(e, resolution).pow(n))
	}

	out := make(Distribution, 0, len(total))
	for _, t := range total {
		out = append(out, Peak{Offset: t.bin, Mass: t.wmass / t.prob, Abundance: t.prob})
	}
	return out
}
