package report

import (
	"fmt"

	"github.com/pkg/errors"
)

const Tie = "tie"

// Comparison relates transport A to transport B. Diff percentages are
// (a-b)/b*100, so a negative latency diff means A was faster. A diff is nil
// when B's value is zero.
type Comparison struct {
	A string `json:"a"`
	B string `json:"b"`

	AvgA float64 `json:"avg_a_ms"`
	AvgB float64 `json:"avg_b_ms"`

	AvgDiffPct        *float64 `json:"avg_diff_pct,omitempty"`
	P50DiffPct        *float64 `json:"p50_diff_pct,omitempty"`
	P95DiffPct        *float64 `json:"p95_diff_pct,omitempty"`
	P99DiffPct        *float64 `json:"p99_diff_pct,omitempty"`
	ThroughputDiffPct *float64 `json:"throughput_diff_pct,omitempty"`

	// Winners maps a metric (avg, p50, p95, p99, throughput) to the winning
	// transport name, or Tie.
	Winners map[string]string `json:"winners"`
}

// Compare fails when either side has no latency samples.
func Compare(a, b TransportReport) (*Comparison, error) {
	if a.Latency == nil || b.Latency == nil {
		return nil, errors.Errorf("cannot compare %s with %s without samples on both sides", a.Name, b.Name)
	}
	la, lb := a.Latency, b.Latency
	tpA, tpB := a.Result.Throughput, b.Result.Throughput

	c := &Comparison{
		A:                 a.Name,
		B:                 b.Name,
		AvgA:              la.Avg,
		AvgB:              lb.Avg,
		AvgDiffPct:        diffPct(la.Avg, lb.Avg),
		P50DiffPct:        diffPct(la.P50, lb.P50),
		P95DiffPct:        diffPct(la.P95, lb.P95),
		P99DiffPct:        diffPct(la.P99, lb.P99),
		ThroughputDiffPct: diffPct(tpA, tpB),
		Winners: map[string]string{
			"avg":        lower(a.Name, la.Avg, b.Name, lb.Avg),
			"p50":        lower(a.Name, la.P50, b.Name, lb.P50),
			"p95":        lower(a.Name, la.P95, b.Name, lb.P95),
			"p99":        lower(a.Name, la.P99, b.Name, lb.P99),
			"throughput": higher(a.Name, tpA, b.Name, tpB),
		},
	}
	return c, nil
}

func diffPct(a, b float64) *float64 {
	if b == 0 {
		return nil
	}
	d := (a - b) / b * 100
	return &d
}

// lower returns the name with the smaller value.
func lower(nameA string, a float64, nameB string, b float64) string {
	switch {
	case a < b:
		return nameA
	case b < a:
		return nameB
	default:
		return Tie
	}
}

// higher returns the name with the larger value.
func higher(nameA string, a float64, nameB string, b float64) string {
	return lower(nameA, -a, nameB, -b)
}

// Verdict is the one line conclusion on average latency. The percentage is
// relative to the slower transport.
func (c *Comparison) Verdict() string {
	winner, loser := c.A, c.B
	fast, slow := c.AvgA, c.AvgB
	switch c.Winners["avg"] {
	case Tie:
		return fmt.Sprintf("%s and %s tie on average latency", c.A, c.B)
	case c.B:
		winner, loser = c.B, c.A
		fast, slow = c.AvgB, c.AvgA
	}
	if slow <= 0 {
		return fmt.Sprintf("%s has the lower average latency", winner)
	}
	return fmt.Sprintf("%s average latency is %.2f%% lower than %s", winner, (slow-fast)/slow*100, loser)
}
