package core

// Peak is a picked signal maximum with shape attributes. Peaks are created by
// the peak picker and not modified afterwards.
type Peak struct {
	Pos       float64 // apex position (centroid)
	Intensity float64 // apex height
	FWHM      float64 // full width at half maximum, position units
	SNR       float64
	Charge    int     // 0 when unknown
	Left      float64 // left boundary position
	Right     float64 // right boundary position
	Area      float64 // trapezoidal area between boundaries
}

// Peaks is a picked peak list in position order.
type Peaks []Peak

// IsSorted reports whether peaks are in non-decreasing position order.
func (p Peaks) IsSorted() bool {
	for i := 1; i < len(p); i++ {
		if p[i].Pos < p[i-1].Pos {
			return false
		}
	}
	return true
}

// Samples returns the peak apexes as a sample trace.
func (p Peaks) Samples() Samples {
	out := make(Samples, len(p))
	for i, pk := range p {
		out[i] = Sample{Pos: pk.Pos, Intensity: pk.Intensity}
	}
	return out
}

// BaseIntensity returns the tallest peak height, or zero for an empty list.
func (p Peaks) BaseIntensity() float64 {
	base := 0.0
	for _, pk := range p {
		if pk.Intensity > base {
			base = pk.Intensity
		}
	}
	return base
}
