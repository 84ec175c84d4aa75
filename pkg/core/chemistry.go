package core

import "math"

// Physical constants used for charge and isotope calculations.
const (
	ProtonMass = 1.00727646688
	// C13Delta is the mass difference between 13C and 12C, the nominal
	// isotope spacing of organic molecules.
	C13Delta = 1.0033548378
)

// MZ returns the m/z of a neutral mass carrying charge protons.
func MZ(neutralMass float64, charge int) float64 {
	if charge == 0 {
		return neutralMass
	}
	z := math.Abs(float64(charge))
	return (neutralMass + float64(charge)*ProtonMass) / z
}

// NeutralMass returns the neutral mass of an ion observed at mz.
func NeutralMass(mz float64, charge int) float64 {
	if charge == 0 {
		return mz
	}
	z := math.Abs(float64(charge))
	return mz*z - float64(charge)*ProtonMass
}

// PPM returns the relative deviation of observed from theoretical in parts per
// million.
func PPM(observed, theoretical float64) float64 {
	return (observed - theoretical) / theoretical * 1e6
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
