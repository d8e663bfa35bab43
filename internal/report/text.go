package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// WriteText renders the human readable report.
func WriteText(w io.Writer, rep *Report) error {
	var b strings.Builder

	for _, tr := range rep.Transports {
		writeTransport(&b, tr)
		b.WriteString("\n")
	}
	if rep.Comparison != nil {
		writeComparison(&b, rep)
	} else if len(rep.Transports) == 2 {
		b.WriteString(warnStyle.Render("comparison skipped: a transport produced no samples"))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value)))
	b.WriteString("\n")
}

func ms(v float64) string { return fmt.Sprintf("%.2f ms", v) }

func writeTransport(b *strings.Builder, tr TransportReport) {
	b.WriteString(titleStyle.Render(tr.Name + " results"))
	b.WriteString("\n")

	res := tr.Result
	if tr.Latency == nil {
		b.WriteString(errorStyle.Render("error: " + tr.Error))
		b.WriteString("\n")
	} else {
		l := tr.Latency
		row(b, "avg latency", ms(l.Avg))
		row(b, "p50", ms(l.P50))
		row(b, "p95", ms(l.P95))
		row(b, "p99", ms(l.P99))
		row(b, "min / max", fmt.Sprintf("%.2f / %.2f ms", l.Min, l.Max))
	}
	if res == nil {
		return
	}
	row(b, "throughput", fmt.Sprintf("%.2f msg/s", res.Throughput))
	row(b, "elapsed", res.Elapsed.Round(time.Millisecond).String())
	row(b, "completed", fmt.Sprintf("%d / %d sent", res.Completed, res.Sent))
	row(b, "sampled", fmt.Sprintf("%d", len(res.Samples)))

	c := res.Counts
	if c.Failed() > 0 || c.CorrelationMisses > 0 || c.NegativeLatencies > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf(
			"failures: send=%d parse=%d timeout=%d  misses=%d  negative latencies=%d",
			c.SendErrors, c.ParseErrors, c.Timeouts, c.CorrelationMisses, c.NegativeLatencies)))
		b.WriteString("\n")
	}
}

func pct(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", *p)
}

func writeComparison(b *strings.Builder, rep *Report) {
	c := rep.Comparison
	a, bb := rep.Transports[0], rep.Transports[1]
	la, lb := a.Latency, bb.Latency

	b.WriteString(titleStyle.Render(fmt.Sprintf("comparison %s vs %s", c.A, c.B)))
	b.WriteString("\n")

	line := func(cells ...string) {
		rendered := make([]string, len(cells))
		for i, cell := range cells {
			rendered[i] = cellStyle.Render(cell)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
		b.WriteString("\n")
	}
	line("", c.A, c.B, "diff")
	line("avg", ms(la.Avg), ms(lb.Avg), pct(c.AvgDiffPct))
	line("p50", ms(la.P50), ms(lb.P50), pct(c.P50DiffPct))
	line("p95", ms(la.P95), ms(lb.P95), pct(c.P95DiffPct))
	line("p99", ms(la.P99), ms(lb.P99), pct(c.P99DiffPct))
	line("msg/s",
		fmt.Sprintf("%.2f", a.Result.Throughput),
		fmt.Sprintf("%.2f", bb.Result.Throughput),
		pct(c.ThroughputDiffPct))
	b.WriteString("\n")

	b.WriteString(winStyle.Render("verdict: " + c.Verdict()))
	b.WriteString("\n")
	for _, metric := range []string{"avg", "p50", "p95", "p99", "throughput"} {
		winner := c.Winners[metric]
		if winner == Tie {
			b.WriteString(fmt.Sprintf("%s: tie\n", metric))
			continue
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", metric, winStyle.Render(winner+" wins")))
	}
}
