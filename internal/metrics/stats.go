// Package metrics computes latency statistics for the daemon and direct
// execution modes and compares them.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes one set of successful durations in milliseconds.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"meanMs"`
	StdDev float64 `json:"stddevMs"`
	Min    float64 `json:"minMs"`
	Max    float64 `json:"maxMs"`
	Median float64 `json:"medianMs"`
	P95    float64 `json:"p95Ms"`
}

// Summarize computes Stats over values. StdDev is the sample standard
// deviation and is zero for fewer than two values.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := Stats{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Median: percentile(sorted, 50),
		P95:    percentile(sorted, 95),
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}

// CV is the coefficient of variation, or zero when the mean is not positive.
func (s Stats) CV() float64 {
	if s.Mean <= 0 {
		return 0
	}
	return s.StdDev / s.Mean
}

// Stability classifies run-to-run consistency from the coefficient of variation.
func (s Stats) Stability() string {
	if s.Count < 2 {
		return "n/a"
	}
	switch cv := s.CV(); {
	case cv < 0.1:
		return "stable"
	case cv < 0.25:
		return "moderate"
	default:
		return "unstable"
	}
}

// percentile interpolates linearly between closest ranks of sorted values.
func percentile(sorted []float64, p float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case len(sorted) == 1 || p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	pos := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	weight := pos - float64(lower)
	return sorted[lower] + weight*(sorted[upper]-sorted[lower])
}
