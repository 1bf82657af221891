package notify

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	colorPrimary = lipgloss.Color("#7C3AED") // violet
	colorSuccess = lipgloss.Color("#22C55E") // green
	colorError   = lipgloss.Color("#EF4444") // red
	colorInfo    = lipgloss.Color("#3B82F6") // blue
	colorSubtext = lipgloss.Color("#A6ADC8") // dimmer text
)

type styles struct {
	toastTitle   lipgloss.Style
	toastMessage lipgloss.Style
	hud          lipgloss.Style
	hudError     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		toastTitle: r.NewStyle().
			Bold(true).
			Foreground(colorInfo),
		toastMessage: r.NewStyle().
			Foreground(colorSubtext),
		hud: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSuccess).
			Foreground(colorPrimary).
			Padding(0, 2),
		hudError: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Foreground(colorError).
			Bold(true).
			Padding(0, 2),
	}
}
