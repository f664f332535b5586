package consolidation

import "sort"

// LatencyStats are the aggregate statistics for one sample set, in
// milliseconds.
type LatencyStats struct {
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// percentile picks the sample at index floor(n*q), clamped to the last
// index. The discrete-index formula (no -1, no interpolation) matches
// the historical summary data this engine must stay byte-compatible
// with.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// computeLatencyStats computes avg/p50/p95/p99 over the samples. Zero
// samples yield all-zero stats, never an error.
func computeLatencyStats(samples []float64) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range samples {
		sum += v
	}

	return LatencyStats{
		Avg: sum / float64(len(samples)),
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
		P99: percentile(sorted, 0.99),
	}
}
