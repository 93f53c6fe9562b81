package telemetry

import (
	"math"
	"sort"
	"time"
)

// Stats aggregates completed metrics over a window
type Stats struct {
	Category     Category      `json:"category"`
	Window       time.Duration `json:"window"`
	Count        int           `json:"count"`
	SuccessCount int           `json:"successCount"`
	ErrorCount   int           `json:"errorCount"`
	SuccessRate  float64       `json:"successRate"`
	ErrorRate    float64       `json:"errorRate"`
	Mean         time.Duration `json:"mean"`
	Min          time.Duration `json:"min"`
	Max          time.Duration `json:"max"`
	P50          time.Duration `json:"p50"`
	P75          time.Duration `json:"p75"`
	P90          time.Duration `json:"p90"`
	P95          time.Duration `json:"p95"`
	P99          time.Duration `json:"p99"`
}

// ComputeStats aggregates metrics. It returns false when metrics is empty.
func ComputeStats(category Category, window time.Duration, metrics []ExecutionMetric) (Stats, bool) {
	if len(metrics) == 0 {
		return Stats{}, false
	}

	s := Stats{Category: category, Window: window, Count: len(metrics)}
	durations := make([]float64, 0, len(metrics))
	var total float64
	for _, m := range metrics {
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
		d := float64(m.Duration)
		durations = append(durations, d)
		total += d
	}
	sort.Float64s(durations)

	s.SuccessRate = float64(s.SuccessCount) / float64(s.Count)
	s.ErrorRate = float64(s.ErrorCount) / float64(s.Count)
	s.Mean = time.Duration(total / float64(s.Count))
	s.Min = time.Duration(durations[0])
	s.Max = time.Duration(durations[len(durations)-1])
	s.P50 = time.Duration(Percentile(durations, 50))
	s.P75 = time.Duration(Percentile(durations, 75))
	s.P90 = time.Duration(Percentile(durations, 90))
	s.P95 = time.Duration(Percentile(durations, 95))
	s.P99 = time.Duration(Percentile(durations, 99))
	return s, true
}

// Percentile returns the p-th percentile (0-100) of an ascending sample by
// linear interpolation between the closest ranks (R-7).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	p = math.Max(0, math.Min(100, p))

	idx := p / 100 * float64(n-1)
	lo := math.Floor(idx)
	hi := math.Ceil(idx)
	if lo == hi {
		return sorted[int(lo)]
	}
	frac := idx - lo
	return sorted[int(lo)] + frac*(sorted[int(hi)]-sorted[int(lo)])
}
