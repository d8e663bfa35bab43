package stats

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ErrNoSamples is returned when a summary is requested over an empty set.
var ErrNoSamples = errors.New("no latency samples")

// Summary holds the reduced latency statistics of one run, in milliseconds.
type Summary struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg_ms"`
	Min   float64 `json:"min_ms"`
	Max   float64 `json:"max_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
}

// Summarize sorts a copy of the samples and reduces it. Percentiles use the
// zero-indexed nearest rank sorted[floor(len*p)] with no interpolation, so
// P50 of an even-length set is the upper of the two middle values.
func Summarize(samples []float64) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, ErrNoSamples
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return Summary{
		Count: len(sorted),
		Avg:   sum / float64(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   Percentile(sorted, 0.50),
		P95:   Percentile(sorted, 0.95),
		P99:   Percentile(sorted, 0.99),
	}, nil
}

// Percentile returns sorted[floor(len*p)]. sorted must be ascending and
// non-empty; p is a fraction in [0, 1].
func Percentile(sorted []float64, p float64) float64 {
	i := int(math.Floor(float64(len(sorted)) * p))
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	if i < 0 {
		i = 0
	}
	return sorted[i]
}

// Throughput returns completions per second over the elapsed milliseconds.
func Throughput(completed int, elapsedMillis float64) float64 {
	if elapsedMillis <= 0 {
		return 0
	}
	return float64(completed) / elapsedMillis * 1000
}
