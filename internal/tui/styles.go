package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/teemow/inboxtriage/internal/triage"
)

var (
	colorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	colorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	colorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	colorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	colorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Background(colorBlue).
			Padding(0, 1)

	logStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)

	statusStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)
)

// classStyle returns the color-coded style for a classification.
func classStyle(c triage.Classification) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch c {
	case triage.Important:
		return base.Foreground(colorRed)
	case triage.LowPriority:
		return base.Foreground(colorGreen)
	default:
		return base.Foreground(colorGray)
	}
}
