package report

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("#7D56F4")
	colorSecondary = lipgloss.Color("#04B575")
	colorError     = lipgloss.Color("#FF5F87")
	colorWarning   = lipgloss.Color("#FFAF00")
	colorSubtle    = lipgloss.Color("#767676")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorSubtle)

	labelStyle = lipgloss.NewStyle().Foreground(colorSubtle).Width(18)
	valueStyle = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle = lipgloss.NewStyle().Foreground(colorError)
	winStyle   = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)

	cellStyle = lipgloss.NewStyle().Width(14).Align(lipgloss.Right)
)
