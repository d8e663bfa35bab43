package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"echobench/internal/storage"
)

// WriteHistory lists stored runs, one block per run.
func WriteHistory(w io.Writer, items []storage.HistoryItem) error {
	if len(items) == 0 {
		_, err := io.WriteString(w, "no runs recorded\n")
		return err
	}

	var b strings.Builder
	for _, item := range items {
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", item.Timestamp.Format("2006-01-02 15:04:05"), item.ID)))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("config"))
		b.WriteString(fmt.Sprintf("%d msgs x %d bytes, concurrency %d\n",
			item.Config.TotalMessages, item.Config.MessageSize, item.Config.Concurrency))

		for _, run := range item.Runs {
			b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
				labelStyle.Render(run.Transport),
				valueStyle.Render(fmt.Sprintf("avg %s  p99 %s  %.2f msg/s",
					ms(run.Latency.Avg), ms(run.Latency.P99), run.ThroughputRPS)),
			))
			if run.Failed > 0 {
				b.WriteString(warnStyle.Render(fmt.Sprintf("  %d failed", run.Failed)))
			}
			b.WriteString("\n")
		}

		if len(item.Winners) > 0 {
			metrics := make([]string, 0, len(item.Winners))
			for metric := range item.Winners {
				metrics = append(metrics, metric)
			}
			sort.Strings(metrics)
			parts := make([]string, len(metrics))
			for i, metric := range metrics {
				parts[i] = metric + "=" + item.Winners[metric]
			}
			b.WriteString(labelStyle.Render("winners"))
			b.WriteString(strings.Join(parts, " "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
