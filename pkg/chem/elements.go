// Package chem provides the element and isotope reference table and
// elemental formula arithmetic.
//
// The default table is built once per process and never mutated; it is safe
// to share between goroutines. Custom tables are built with NewDB or
// (*DB).WithCSV, which return new values and leave the receiver untouched.
package chem

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// abundanceTolerance bounds how far the isotope abundances of an element may
// sum away from 1.
const abundanceTolerance = 1e-4

// Isotope is one stable isotope of an element.
type Isotope struct {
	MassNumber int
	Mass       float64 // exact mass in Da
	Abundance  float64 // natural abundance, fraction of 1
}

// Element is a chemical element with its natural isotope distribution.
type Element struct {
	Symbol   string
	Name     string
	Isotopes []Isotope // ordered by mass
}

// MonoisotopicMass returns the mass of the most abundant isotope.
func (e *Element) MonoisotopicMass() float64 {
	best := 0
	for i, iso := range e.Isotopes {
		if iso.Abundance > e.Isotopes[best].Abundance {
			best = i
		}
	}
	return e.Isotopes[best].Mass
}

// AverageWeight returns the abundance-weighted mean isotope mass.
func (e *Element) AverageWeight() float64 {
	w := 0.0
	for _, iso := range e.Isotopes {
		w += iso.Mass * iso.Abundance
	}
	return w
}

// DB is an immutable element table keyed by symbol.
type DB struct {
	elements map[string]*Element
}

// NewDB builds a table from elements. Isotopes are sorted by mass and each
// element's abundances must sum to 1.
func NewDB(elements ...Element) (*DB, error) {
	db := &DB{elements: make(map[string]*Element, len(elements))}
	for _, e := range elements {
		if err := db.put(e); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func (db *DB) put(e Element) error {
	if e.Symbol == "" {
		return fmt.Errorf("element without symbol")
	}
	if len(e.Isotopes) == 0 {
		return fmt.Errorf("element %s has no isotopes", e.Symbol)
	}
	isotopes := make([]Isotope, len(e.Isotopes))
	copy(isotopes, e.Isotopes)
	sort.Slice(isotopes, func(i, j int) bool { return isotopes[i].Mass < isotopes[j].Mass })

	sum := 0.0
	for _, iso := range isotopes {
		if iso.Mass <= 0 || iso.Abundance < 0 {
			return fmt.Errorf("element %s: invalid isotope %d (mass %g, abundance %g)",
				e.Symbol, iso.MassNumber, iso.Mass, iso.Abundance)
		}
		sum += iso.Abundance
	}
	if math.Abs(sum-1) > abundanceTolerance {
		return fmt.Errorf("element %s: isotope abundances sum to %g, want 1", e.Symbol, sum)
	}

	e.Isotopes = isotopes
	db.elements[e.Symbol] = &e
	return nil
}

// Lookup returns the element for symbol.
func (db *DB) Lookup(symbol string) (*Element, bool) {
	e, ok := db.elements[symbol]
	return e, ok
}

// Symbols returns all element symbols in alphabetical order.
func (db *DB) Symbols() []string {
	out := make([]string, 0, len(db.elements))
	for s := range db.elements {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// WithCSV returns a copy of db extended with the isotopes in r. The CSV has a
// header line followed by rows of symbol,name,mass_number,mass,abundance.
// Rows sharing a symbol form one element; a symbol already in db is replaced.
func (db *DB) WithCSV(r io.Reader) (*DB, error) {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	loaded := make(map[string]*Element)
	var order []string
	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != 5 {
			return nil, fmt.Errorf("line %d: invalid format, expected 5 comma-separated fields", lineNum)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		massNumber, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid mass number '%s': %w", lineNum, parts[2], err)
		}
		mass, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid mass '%s': %w", lineNum, parts[3], err)
		}
		abundance, err := strconv.ParseFloat(parts[4], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid abundance '%s': %w", lineNum, parts[4], err)
		}

		e, ok := loaded[parts[0]]
		if !ok {
			e = &Element{Symbol: parts[0], Name: parts[1]}
			loaded[parts[0]] = e
			order = append(order, parts[0])
		}
		e.Isotopes = append(e.Isotopes, Isotope{MassNumber: massNumber, Mass: mass, Abundance: abundance})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}

	out := &DB{elements: make(map[string]*Element, len(db.elements)+len(loaded))}
	for s, e := range db.elements {
		out.elements[s] = e
	}
	for _, s := range order {
		if err := out.put(*loaded[s]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

var (
	defaultOnce sync.Once
	defaultDB   *DB
)

// Default returns the built-in element table. It is built on first use and
// shared by all callers.
func Default() *DB {
	defaultOnce.Do(func() {
		db, err := NewDB(builtinElements...)
		if err != nil {
			panic("chem: invalid builtin element table: " + err.Error())
		}
		defaultDB = db
	})
	return defaultDB
}

// Isotope masses and abundances after IUPAC.
var builtinElements = []Element{
	{Symbol: "H", Name: "Hydrogen", Isotopes: []Isotope{
		{1, 1.0078250321, 0.999885},
		{2, 2.014101778, 0.000115},
	}},
	{Symbol: "C", Name: "Carbon", Isotopes: []Isotope{
		{12, 12.0, 0.9893},
		{13, 13.0033548378, 0.0107},
	}},
	{Symbol: "N", Name: "Nitrogen", Isotopes: []Isotope{
		{14, 14.0030740052, 0.99636},
		{15, 15.0001088984, 0.00364},
	}},
	{Symbol: "O", Name: "Oxygen", Isotopes: []Isotope{
		{16, 15.9949146221, 0.99757},
		{17, 16.99913150, 0.00038},
		{18, 17.9991604, 0.00205},
	}},
	{Symbol: "S", Name: "Sulfur", Isotopes: []Isotope{
		{32, 31.97207069, 0.9499},
		{33, 32.97145850, 0.0075},
		{34, 33.96786683, 0.0425},
		{36, 35.96708088, 0.0001},
	}},
	{Symbol: "P", Name: "Phosphorus", Isotopes: []Isotope{
		{31, 30.97376151, 1.0},
	}},
	{Symbol: "F", Name: "Fluorine", Isotopes: []Isotope{
		{19, 18.99840320, 1.0},
	}},
	{Symbol: "Na", Name: "Sodium", Isotopes: []Isotope{
		{23, 22.98976966, 1.0},
	}},
	{Symbol: "Cl", Name: "Chlorine", Isotopes: []Isotope{
		{35, 34.96885271, 0.7576},
		{37, 36.96590260, 0.2424},
	}},
	{Symbol: "K", Name: "Potassium", Isotopes: []Isotope{
		{39, 38.9637069, 0.932581},
		{40, 39.96399867, 0.000117},
		{41, 40.96182597, 0.067302},
	}},
	{Symbol: "Br", Name: "Bromine", Isotopes: []Isotope{
		{79, 78.9183376, 0.5069},
		{81, 80.916291, 0.4931},
	}},
	{Symbol: "I", Name: "Iodine", Isotopes: []Isotope{
		{127, 126.904468, 1.0},
	}},
	{Symbol: "Se", Name: "Selenium", Isotopes: []Isotope{
		{74, 73.9224766, 0.0089},
		{76, 75.9192141, 0.0937},
		{77, 76.9199146, 0.0763},
		{78, 77.9173095, 0.2377},
		{80, 79.9165218, 0.4961},
		{82, 81.9167, 0.0873},
	}},
}
