package clicmd

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("#7C3AED")
	muted   = lipgloss.Color("#6B7280")
	danger  = lipgloss.Color("#EF4444")
	text    = lipgloss.Color("#F9FAFB")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(text).
			Background(primary).
			Padding(0, 2)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().Foreground(danger)

	helpKeyStyle  = lipgloss.NewStyle().Foreground(primary).Bold(true)
	helpDescStyle = lipgloss.NewStyle().Foreground(muted)
)
