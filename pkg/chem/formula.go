package chem

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// Formula maps element symbols to atom counts. Counts may be negative while
// a formula is used as a delta; mass and isotope calculations reject them.
type Formula map[string]int

// ParseFormula parses formulas such as "CH3OH", "C6H12O6", "(CH2)4O" or the
// delta "H-2O-1". Whitespace is ignored.
func ParseFormula(s string) (Formula, error) {
	p := &formulaParser{src: []rune(strings.Join(strings.Fields(s), ""))}
	f, err := p.parseGroup(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", core.ErrInvalidFormula, s, err)
	}
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("%w: %q: unexpected '%c' at %d", core.ErrInvalidFormula, s, p.src[p.pos], p.pos)
	}
	return f, nil
}

// MustParseFormula is like ParseFormula but panics on error. It is intended
// for formula literals.
func MustParseFormula(s string) Formula {
	f, err := ParseFormula(s)
	if err != nil {
		panic(err)
	}
	return f
}

type formulaParser struct {
	src []rune
	pos int
}

func (p *formulaParser) parseGroup(depth int) (Formula, error) {
	f := Formula{}
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		switch {
		case r == '(':
			p.pos++
			inner, err := p.parseGroup(depth + 1)
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.src) || p.src[p.pos] != ')' {
				return nil, fmt.Errorf("unbalanced '('")
			}
			p.pos++
			n, err := p.parseCount()
			if err != nil {
				return nil, err
			}
			f.addScaled(inner, n)
		case r == ')':
			if depth == 0 {
				return nil, fmt.Errorf("unbalanced ')'")
			}
			return f, nil
		case unicode.IsUpper(r):
			start := p.pos
			p.pos++
			for p.pos < len(p.src) && unicode.IsLower(p.src[p.pos]) {
				p.pos++
			}
			symbol := string(p.src[start:p.pos])
			n, err := p.parseCount()
			if err != nil {
				return nil, err
			}
			f[symbol] += n
		default:
			return nil, fmt.Errorf("unexpected '%c' at %d", r, p.pos)
		}
	}
	return f, nil
}

// parseCount reads an optional signed integer, defaulting to 1.
func (p *formulaParser) parseCount() (int, error) {
	start := p.pos
	if p.pos < len(p.src) && p.src[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.src) && unicode.IsDigit(p.src[p.pos]) {
		p.pos++
	}
	text := string(p.src[start:p.pos])
	switch text {
	case "":
		return 1, nil
	case "-":
		return 0, fmt.Errorf("missing count after '-' at %d", start)
	}
	return strconv.Atoi(text)
}

func (f Formula) addScaled(other Formula, n int) {
	for s, c := range other {
		f[s] += c * n
	}
}

// Add returns f + other.
func (f Formula) Add(other Formula) Formula {
	out := f.Clone()
	out.addScaled(other, 1)
	return out.compact()
}

// Sub returns f - other.
func (f Formula) Sub(other Formula) Formula {
	out := f.Clone()
	out.addScaled(other, -1)
	return out.compact()
}

// Scale returns f with every count multiplied by n.
func (f Formula) Scale(n int) Formula {
	out := Formula{}
	out.addScaled(f, n)
	return out.compact()
}

// Clone returns a copy of f.
func (f Formula) Clone() Formula {
	out := make(Formula, len(f))
	for s, c := range f {
		out[s] = c
	}
	return out
}

func (f Formula) compact() Formula {
	for s, c := range f {
		if c == 0 {
			delete(f, s)
		}
	}
	return f
}

// AtomCount returns the total number of atoms.
func (f Formula) AtomCount() int {
	n := 0
	for _, c := range f {
		n += c
	}
	return n
}

// Symbols returns the element symbols of f in Hill order: C, then H, then the
// rest alphabetically. Without carbon all symbols are alphabetical.
func (f Formula) Symbols() []string {
	symbols := make([]string, 0, len(f))
	for s := range f {
		symbols = append(symbols, s)
	}
	_, hasC := f["C"]
	rank := func(s string) int {
		if !hasC {
			return 2
		}
		switch s {
		case "C":
			return 0
		case "H":
			return 1
		}
		return 2
	}
	sort.Slice(symbols, func(i, j int) bool {
		ri, rj := rank(symbols[i]), rank(symbols[j])
		if ri != rj {
			return ri < rj
		}
		return symbols[i] < symbols[j]
	})
	return symbols
}

// String returns f in Hill notation, e.g. "CH4O".
func (f Formula) String() string {
	var b strings.Builder
	for _, s := range f.Symbols() {
		c := f[s]
		if c == 0 {
			continue
		}
		b.WriteString(s)
		if c != 1 {
			b.WriteString(strconv.Itoa(c))
		}
	}
	return b.String()
}

// Validate checks that every symbol is known to db and no count is negative.
func (f Formula) Validate(db *DB) error {
	for _, s := range f.Symbols() {
		if f[s] < 0 {
			return fmt.Errorf("%w: negative count %d for %s", core.ErrInvalidFormula, f[s], s)
		}
		if _, ok := db.Lookup(s); !ok {
			return fmt.Errorf("%w: unknown element %q", core.ErrInvalidFormula, s)
		}
	}
	return nil
}

// MonoisotopicMass returns the sum of monoisotopic element masses.
func (f Formula) MonoisotopicMass(db *DB) (float64, error) {
	return f.mass(db, (*Element).MonoisotopicMass)
}

// AverageWeight returns the sum of average element weights.
func (f Formula) AverageWeight(db *DB) (float64, error) {
	return f.mass(db, (*Element).AverageWeight)
}

func (f Formula) mass(db *DB, elementMass func(*Element) float64) (float64, error) {
	if err := f.Validate(db); err != nil {
		return 0, err
	}
	total := 0.0
	for _, s := range f.Symbols() {
		e, _ := db.Lookup(s)
		total += float64(f[s]) * elementMass(e)
	}
	return total, nil
}
