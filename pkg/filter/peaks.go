package filter

import (
	"sort"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

// PeakFilter thins a picked peak list.
type PeakFilter struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks above this % of base peak (0 = no cutoff)
	MinSNR          float64 // Keep only peaks with at least this SNR (0 = no limit)
}

// Apply applies all configured filters and returns a new list in position
// order.
func (c *PeakFilter) Apply(peaks core.Peaks) core.Peaks {
	out := make(core.Peaks, 0, len(peaks))
	out = append(out, removeZeroIntensity(peaks)...)

	if c.MinSNR > 0 {
		out = c.filterBySNR(out)
	}
	if c.IntensityCutoff > 0 {
		out = c.filterByIntensity(out)
	}
	if c.TopN > 0 {
		out = c.filterTopN(out)
	}

	// Ensure peaks are sorted after all filtering
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pos < out[j].Pos
	})
	return out
}

func (c *PeakFilter) filterBySNR(peaks core.Peaks) core.Peaks {
	filtered := peaks[:0]
	for _, peak := range peaks {
		if peak.SNR >= c.MinSNR {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *PeakFilter) filterByIntensity(peaks core.Peaks) core.Peaks {
	if len(peaks) == 0 {
		return peaks
	}

	threshold := (c.IntensityCutoff / 100.0) * peaks.BaseIntensity()

	filtered := peaks[:0]
	for _, peak := range peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}

// filterTopN keeps only the N most intense peaks. Equal intensities keep
// the lower position.
func (c *PeakFilter) filterTopN(peaks core.Peaks) core.Peaks {
	if len(peaks) <= c.TopN {
		return peaks
	}

	sort.SliceStable(peaks, func(i, j int) bool {
		if peaks[i].Intensity != peaks[j].Intensity {
			return peaks[i].Intensity > peaks[j].Intensity
		}
		return peaks[i].Pos < peaks[j].Pos
	})
	return peaks[:c.TopN]
}

// removeZeroIntensity drops peaks with zero or negative intensity
func removeZeroIntensity(peaks core.Peaks) core.Peaks {
	var filtered core.Peaks
	for _, peak := range peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}
