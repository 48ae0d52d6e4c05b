package watch

import "github.com/charmbracelet/lipgloss"

var (
	accentColor  = lipgloss.Color("#7C3AED")
	upColor      = lipgloss.Color("#10B981")
	downColor    = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	borderColor  = lipgloss.Color("#374151")
	winnerColor  = lipgloss.Color("#F59E0B")
	defaultColor = lipgloss.Color("#F9FAFB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	labelStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	valueStyle  = lipgloss.NewStyle().Foreground(defaultColor).Bold(true)
	upStyle     = lipgloss.NewStyle().Foreground(upColor)
	downStyle   = lipgloss.NewStyle().Foreground(downColor)
	winnerStyle = lipgloss.NewStyle().Foreground(winnerColor).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(downColor)
	helpStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)
