package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Block heights from empty to full
var levels = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Sparkline is a one line scrolling chart of the last Width values.
type Sparkline struct {
	Data  []float64
	Width int
	Style lipgloss.Style
	Label string
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width: width,
		Label: label,
		Style: style,
		Data:  make([]float64, 0, width),
	}
}

// Add appends a value and drops the oldest once the window is full.
func (s *Sparkline) Add(val float64) {
	s.Data = append(s.Data, val)
	if len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}
}

// max of the visible window
func (s Sparkline) max() float64 {
	m := 0.0
	for _, v := range s.Data {
		if v > m {
			m = v
		}
	}
	return m
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}
	// Scale against the visible window so old spikes scroll out
	top := s.max()

	var graph strings.Builder
	for _, v := range s.Data {
		if top <= 0 || v <= 0 {
			graph.WriteString(levels[0])
			continue
		}
		// Map 0..top to levels
		idx := int(v / top * float64(len(levels)-1))
		if idx >= len(levels) {
			idx = len(levels) - 1
		}
		graph.WriteString(levels[idx])
	}
	// Pad if not full
	if pad := s.Width - len(s.Data); pad > 0 {
		graph.WriteString(strings.Repeat(" ", pad))
	}

	return s.Style.Render(s.Label) + "\n" + s.Style.Render(graph.String())
}
