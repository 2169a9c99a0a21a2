// Package stats derives per-worker tick statistics and folds worker records
// into cumulative totals.
package stats

import (
	"math"
	"sort"
)

// TickStats summarizes one worker's responsiveness window
type TickStats struct {
	Min float64 `cbor:"mint" json:"mint"`
	Avg float64 `cbor:"avgt" json:"avgt"`
	P50 float64 `cbor:"p50t" json:"p50t"`
	P90 float64 `cbor:"p90t" json:"p90t"`
	Max float64 `cbor:"maxt" json:"maxt"`
}

// Summarize computes nearest-rank statistics over ticks. An empty window
// counts as a single zero sample. Avg is the window length divided by the
// tick count, not the mean of the samples.
func Summarize(ticks []float64, timeFromLast float64) TickStats {
	sorted := make([]float64, len(ticks))
	copy(sorted, ticks)
	if len(sorted) == 0 {
		sorted = []float64{0}
	}
	sort.Float64s(sorted)

	n := len(sorted)
	return TickStats{
		Min: sorted[0],
		Avg: timeFromLast / float64(n),
		P50: sorted[rank(n, 0.50)],
		P90: sorted[rank(n, 0.90)],
		Max: sorted[n-1],
	}
}

func rank(n int, p float64) int {
	i := int(math.Floor(float64(n) * p))
	if i >= n {
		i = n - 1
	}
	return i
}
