package peakpick

// localMaxima returns samples strictly higher than both neighbours with at
// least two samples on either side. The apex is refined by a parabola
// through the maximum and its neighbours.
func (p *picker) localMaxima() []candidate {
	s := p.s
	var out []candidate
	for i := 2; i < len(s)-2; i++ {
		y := s[i].Intensity
		if !(y > s[i-1].Intensity && y > s[i+1].Intensity) {
			continue
		}
		if p.cfg.CheckNeighbours && p.est != nil {
			if p.snr(i-1, s[i-1].Intensity) < p.cfg.SignalToNoise || p.snr(i+1, s[i+1].Intensity) < p.cfg.SignalToNoise {
				continue
			}
		}
		pos, inten := parabolicApex(s[i-1].Pos, s[i].Pos, s[i+1].Pos, s[i-1].Intensity, y, s[i+1].Intensity)
		out = append(out, candidate{apex: i, pos: pos, inten: inten, refined: true})
	}
	return out
}

// parabolicApex returns the vertex of the parabola through three points.
// It falls back to the middle point when the parabola does not open
// downward.
func parabolicApex(x0, x1, x2, y0, y1, y2 float64) (float64, float64) {
	// Work relative to x1 for precision.
	u0, u2 := x0-x1, x2-x1
	denom := u0 * u2 * (u0 - u2)
	if denom == 0 {
		return x1, y1
	}
	a := (u2*(y0-y1) - u0*(y2-y1)) / denom
	b := (u0*u0*(y2-y1) - u2*u2*(y0-y1)) / denom
	if a >= 0 {
		return x1, y1
	}
	uv := -b / (2 * a)
	if uv < u0 || uv > u2 {
		return x1, y1
	}
	return x1 + uv, y1 - b*b/(4*a)
}
