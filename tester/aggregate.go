package tester

import "sort"

// calculateAllPercentiles computes P1 through P100 of data by nearest
// rank: sort ascending, take the sample at index count*p/100 shifted
// down to zero-based. With no samples every percentile is zero, which
// keeps the log row shape stable.
func calculateAllPercentiles(data []float64) [100]float64 {
	var percentiles [100]float64
	if len(data) == 0 {
		return percentiles
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	for p := 1; p <= 100; p++ {
		index := (len(sorted) * p) / 100
		if index > 0 {
			index--
		}
		if index >= len(sorted) {
			index = len(sorted) - 1
		}
		percentiles[p-1] = sorted[index]
	}
	return percentiles
}
