package isotope

import (
	"math"

	"github.com/ChrisMcGann/msfeat/pkg/chem"
)

// averagineMass and averagineComposition describe the mean amino acid
// residue of Senko et al. (1995).
const averagineMass = 111.1254

var averagineComposition = map[string]float64{
	"C": 4.9384,
	"H": 7.7583,
	"N": 1.3577,
	"O": 1.4773,
	"S": 0.0417,
}

// Averagine returns an integer formula approximating a peptide of the given
// monoisotopic mass. Hydrogen absorbs the rounding residue.
func Averagine(mass float64) chem.Formula {
	f := chem.Formula{}
	if mass <= 0 {
		return f
	}
	db := chem.Default()
	k := mass / averagineMass
	for s, c := range averagineComposition {
		if n := int(math.Round(k * c)); n > 0 {
			f[s] = n
		}
	}
	approx, _ := f.MonoisotopicMass(db)
	h, _ := db.Lookup("H")
	f["H"] += int(math.Round((mass - approx) / h.MonoisotopicMass()))
	if f["H"] <= 0 {
		delete(f, "H")
	}
	return f
}
