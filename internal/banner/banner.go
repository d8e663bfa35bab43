package banner

import (
	"github.com/charmbracelet/lipgloss"

	"echobench/internal/tui/styles"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
           _           _                     _
  ___  ___| |__   ___ | |__   ___ _ __   ___| |__
 / _ \/ __| '_ \ / _ \| '_ \ / _ \ '_ \ / __| '_ \
|  __/ (__| | | | (_) | |_) |  __/ | | | (__| | | |
 \___|\___|_| |_|\___/|_.__/ \___|_| |_|\___|_| |_|`

	return "\n" + style.Render(ascii) + "\n" + renderer.NewStyle().Foreground(styles.ColorSubtle).Render("pub/sub vs request/reply latency") + "\n"
}
