package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"echobench/internal/runner"
	"echobench/internal/tui/components"
	"echobench/internal/tui/styles"
)

// Model renders the progress of one transport run from its snapshots.
type Model struct {
	Stats    runner.StatsSnapshot
	Progress progress.Model

	RateLine    components.Sparkline
	LatencyLine components.Sparkline

	LastUpdate    time.Time
	LastCompleted int

	Width int
}

func NewModel() Model {
	return Model{
		Progress:    progress.New(progress.WithDefaultGradient()),
		RateLine:    components.NewSparkline(40, "Completions/s", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P50 (ms)", styles.Warn),
		LastUpdate:  time.Now(),
	}
}

// Reset clears the per-run state when the next transport starts.
func (m Model) Reset() Model {
	fresh := NewModel()
	fresh.Width = m.Width
	fresh.Progress.Width = m.Progress.Width
	fresh.RateLine.Width = m.RateLine.Width
	fresh.LatencyLine.Width = m.LatencyLine.Width
	return fresh
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		if msg.Transport != m.Stats.Transport {
			m = m.Reset()
		}
		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		m.RateLine.Add(float64(msg.Completed-m.LastCompleted) / dt)
		m.LatencyLine.Add(msg.P50Ms)

		m.Stats = msg
		m.LastCompleted = msg.Completed
		m.LastUpdate = now

		pct := 0.0
		if msg.Total > 0 {
			pct = float64(msg.Completed) / float64(msg.Total)
		}
		return m, m.Progress.SetPercent(pct)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.RateLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	st := m.Stats
	s := strings.Builder{}

	failStyle := styles.Active
	if st.Failed > 0 {
		failStyle = styles.Warn
	}
	if st.Completed > 0 && float64(st.Failed)/float64(st.Completed) > 0.05 {
		failStyle = styles.Error
	}

	col1 := fmt.Sprintf("SENT: %d\nDONE: %d/%d", st.Sent, st.Completed, st.Total)
	col2 := fmt.Sprintf("INF: %d\nSAMPLES: %d", st.Inflight, st.Samples)
	col3 := failStyle.Render(fmt.Sprintf("FAIL: %d\nMISS: %d", st.Failed, st.Misses))

	s.WriteString(styles.Title.Render(st.Transport))
	s.WriteString("\n")
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RateLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	s.WriteString(styles.Text.Render(fmt.Sprintf(
		"AVG: %.2f ms  |  P50: %.2f ms  |  P99: %.2f ms  |  %s",
		st.AvgMs, st.P50Ms, st.P99Ms, st.Elapsed.Round(time.Millisecond),
	)))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	return s.String()
}
