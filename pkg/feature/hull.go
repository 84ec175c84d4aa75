package feature

import "sort"

// ConvexHull returns the convex hull of pts in counter-clockwise order,
// starting from the point with the lowest RT (then m/z). Collinear points
// are dropped. Fewer than three distinct points are returned as they are,
// sorted.
func ConvexHull(pts []Point) []Point {
	ps := append([]Point(nil), pts...)
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].RT != ps[j].RT {
			return ps[i].RT < ps[j].RT
		}
		return ps[i].MZ < ps[j].MZ
	})
	ps = dedupe(ps)
	if len(ps) < 3 {
		return ps
	}

	hull := make([]Point, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func cross(o, a, b Point) float64 {
	return (a.RT-o.RT)*(b.MZ-o.MZ) - (a.MZ-o.MZ)*(b.RT-o.RT)
}

func dedupe(sorted []Point) []Point {
	out := sorted[:0]
	for _, p := range sorted {
		if len(out) == 0 || p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
