package feature

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/msfeat/pkg/chem"
	"github.com/ChrisMcGann/msfeat/pkg/core"
	"github.com/ChrisMcGann/msfeat/pkg/isotope"
)

// Scan is the picked peak list of one spectrum.
type Scan struct {
	NativeID string
	RT       float64
	Peaks    core.Peaks
}

// FinderConfig configures the feature finder.
type FinderConfig struct {
	MinCharge     int
	MaxCharge     int
	MZTolerance   float64 // Da, for isotope spacing and RT linking
	MinSimilarity float64 // minimum cosine similarity to the averagine pattern
	MinIsotopes   int     // minimum peaks per envelope
	MaxIsotopes   int     // maximum peaks per envelope
	MaxMissing    int     // scans a trace may skip before it is closed
	MinScans      int     // minimum envelopes per feature
	Isotope       isotope.Options
}

// DefaultFinderConfig returns the default settings.
func DefaultFinderConfig() FinderConfig {
	return FinderConfig{
		MinCharge:     1,
		MaxCharge:     4,
		MZTolerance:   0.01,
		MinSimilarity: 0.8,
		MinIsotopes:   3,
		MaxIsotopes:   6,
		MaxMissing:    1,
		MinScans:      1,
	}
}

// Validate checks the settings.
func (c FinderConfig) Validate() error {
	switch {
	case c.MinCharge < 1:
		return core.InvalidParam("feature_finder.min_charge", c.MinCharge, "must be at least 1")
	case c.MaxCharge < c.MinCharge:
		return core.InvalidParam("feature_finder.max_charge", c.MaxCharge, "must be at least min_charge")
	case !(c.MZTolerance > 0):
		return core.InvalidParam("feature_finder.mz_tolerance", c.MZTolerance, "must be positive")
	case c.MinSimilarity < 0 || c.MinSimilarity > 1:
		return core.InvalidParam("feature_finder.min_similarity", c.MinSimilarity, "must be in [0, 1]")
	case c.MinIsotopes < 1:
		return core.InvalidParam("feature_finder.min_isotopes", c.MinIsotopes, "must be positive")
	case c.MaxIsotopes < c.MinIsotopes:
		return core.InvalidParam("feature_finder.max_isotopes", c.MaxIsotopes, "must be at least min_isotopes")
	case c.MaxMissing < 0:
		return core.InvalidParam("feature_finder.max_missing", c.MaxMissing, "must be non-negative")
	case c.MinScans < 1:
		return core.InvalidParam("feature_finder.min_scans", c.MinScans, "must be positive")
	}
	return nil
}

// Finder groups picked peaks into isotope envelopes and links envelopes
// across scans into features. A Finder is safe for concurrent use.
type Finder struct {
	cfg FinderConfig
	db  *chem.DB
	log *slog.Logger
}

// NewFinder returns a finder using the element table db. A nil db selects
// chem.Default and a nil logger discards output.
func NewFinder(cfg FinderConfig, db *chem.DB, logger *slog.Logger) (*Finder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if db == nil {
		db = chem.Default()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Finder{cfg: cfg, db: db, log: logger}, nil
}

type envelope struct {
	scan       int
	rt         float64
	mz         float64 // monoisotopic
	charge     int
	intensity  float64
	similarity float64
	mzs        []float64
}

type trace struct {
	charge   int
	lastMZ   float64
	lastScan int
	envs     []envelope
}

// Find detects features in scans. Scans are processed in RT order;
// cancellation is checked before each scan. The returned map is sorted by
// position and has fresh ranges.
func (f *Finder) Find(ctx context.Context, name string, scans []Scan) (*FeatureMap, error) {
	order := make([]int, len(scans))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scans[order[a]].RT < scans[order[b]].RT })

	patterns := make(map[int]isotope.Distribution)
	var open, closed []*trace
	envelopes := 0

	for k, idx := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		envs, err := f.envelopes(scans[idx], k, patterns)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", scans[idx].NativeID, err)
		}
		envelopes += len(envs)

		for _, e := range envs {
			if t := f.match(open, e); t != nil {
				t.envs = append(t.envs, e)
				t.lastMZ = e.mz
				t.lastScan = k
				continue
			}
			open = append(open, &trace{charge: e.charge, lastMZ: e.mz, lastScan: k, envs: []envelope{e}})
		}

		still := open[:0]
		for _, t := range open {
			if k-t.lastScan > f.cfg.MaxMissing {
				closed = append(closed, t)
				continue
			}
			still = append(still, t)
		}
		open = still
	}
	closed = append(closed, open...)

	m := NewFeatureMap(name)
	for _, t := range closed {
		if len(t.envs) < f.cfg.MinScans {
			continue
		}
		m.Add(t.feature())
	}
	m.SortByPosition()
	m.UpdateRanges()

	f.log.Debug("feature finding done",
		"map", name,
		"scans", len(scans),
		"envelopes", envelopes,
		"features", m.Len())
	return m, nil
}

// match returns the open trace of the same charge closest in m/z to e that
// has not been extended in e's scan yet. Ties go to the older trace.
func (f *Finder) match(open []*trace, e envelope) *trace {
	var best *trace
	bestDist := math.Inf(1)
	for _, t := range open {
		if t.charge != e.charge || t.lastScan == e.scan {
			continue
		}
		d := math.Abs(t.lastMZ - e.mz)
		if d <= f.cfg.MZTolerance && d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}

func (t *trace) feature() Feature {
	apex := 0
	var total, quality float64
	var pts []Point
	for i, e := range t.envs {
		if e.intensity > t.envs[apex].intensity {
			apex = i
		}
		total += e.intensity
		quality += e.similarity
		for _, mz := range e.mzs {
			pts = append(pts, Point{RT: e.rt, MZ: mz})
		}
	}
	return Feature{
		ID:        uuid.New(),
		RT:        t.envs[apex].rt,
		MZ:        t.envs[apex].mz,
		Intensity: total,
		Charge:    t.charge,
		Quality:   quality / float64(len(t.envs)),
		Hull:      ConvexHull(pts),
	}
}

// envelopes extracts the isotope envelopes of one scan. Peaks are tried as
// monoisotopic seeds in position order; each peak joins at most one
// envelope. Of the charges whose envelope matches, the most similar wins
// and ties keep the lower charge.
func (f *Finder) envelopes(s Scan, k int, patterns map[int]isotope.Distribution) ([]envelope, error) {
	peaks := s.Peaks
	if !peaks.IsSorted() {
		peaks = append(core.Peaks(nil), peaks...)
		sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].Pos < peaks[j].Pos })
	}
	used := make([]bool, len(peaks))

	var out []envelope
	for i := range peaks {
		if used[i] {
			continue
		}
		var (
			best     envelope
			bestIdxs []int
		)
		for z := f.cfg.MinCharge; z <= f.cfg.MaxCharge; z++ {
			idxs := f.collect(peaks, used, i, z)
			if len(idxs) < f.cfg.MinIsotopes {
				continue
			}
			d, err := f.pattern(core.NeutralMass(peaks[i].Pos, z), patterns)
			if err != nil {
				return nil, err
			}
			if d == nil {
				continue
			}
			obs := make([]float64, len(idxs))
			mzs := make([]float64, len(idxs))
			total := 0.0
			for n, j := range idxs {
				obs[n] = peaks[j].Intensity
				mzs[n] = peaks[j].Pos
				total += peaks[j].Intensity
			}
			sim := isotope.Similarity(obs, d)
			if sim < f.cfg.MinSimilarity || (bestIdxs != nil && sim <= best.similarity) {
				continue
			}
			best = envelope{
				scan:       k,
				rt:         s.RT,
				mz:         peaks[i].Pos,
				charge:     z,
				intensity:  total,
				similarity: sim,
				mzs:        mzs,
			}
			bestIdxs = idxs
		}
		if bestIdxs == nil {
			continue
		}
		for _, j := range bestIdxs {
			used[j] = true
		}
		out = append(out, best)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].mz < out[b].mz })
	return out, nil
}

// collect returns the indices of the isotope series starting at peak i for
// charge z, stopping at the first missing isotope.
func (f *Finder) collect(peaks core.Peaks, used []bool, i, z int) []int {
	idxs := []int{i}
	spacing := core.C13Delta / float64(z)
	for n := 1; n < f.cfg.MaxIsotopes; n++ {
		target := peaks[i].Pos + float64(n)*spacing
		j := nearest(peaks, used, target, f.cfg.MZTolerance)
		if j < 0 {
			break
		}
		idxs = append(idxs, j)
	}
	return idxs
}

// nearest returns the unused peak closest to target within tol, or -1.
func nearest(peaks core.Peaks, used []bool, target, tol float64) int {
	lo := sort.Search(len(peaks), func(j int) bool { return peaks[j].Pos >= target-tol })
	best, bestDist := -1, math.Inf(1)
	for j := lo; j < len(peaks) && peaks[j].Pos <= target+tol; j++ {
		if used[j] {
			continue
		}
		if d := math.Abs(peaks[j].Pos - target); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// pattern returns the averagine distribution for a neutral mass, cached per
// nominal mass. It returns nil for masses too small to model.
func (f *Finder) pattern(mass float64, cache map[int]isotope.Distribution) (isotope.Distribution, error) {
	key := int(math.Round(mass))
	if d, ok := cache[key]; ok {
		return d, nil
	}
	formula := isotope.Averagine(float64(key))
	if formula.AtomCount() == 0 {
		cache[key] = nil
		return nil, nil
	}
	// Envelopes are indexed by isotope number, so the reference uses 1 Da
	// bins whatever the configured resolution.
	opts := f.cfg.Isotope
	opts.Resolution = 1
	opts.MaxIsotopes = f.cfg.MaxIsotopes
	d, err := isotope.Generate(formula, f.db, opts)
	if err != nil {
		return nil, fmt.Errorf("averagine pattern for mass %d: %w", key, err)
	}
	cache[key] = d
	return d, nil
}
