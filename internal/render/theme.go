// Package render turns tables, issues and results into terminal text.
package render

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling shared by the CLI output and the TUI.
type Theme struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
	Border    lipgloss.Style
	Empty     lipgloss.Style

	SeverityHigh   lipgloss.Style
	SeverityMedium lipgloss.Style
	SeverityLow    lipgloss.Style

	OK    lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style

	Suggestion   lipgloss.Style
	AISuggestion lipgloss.Style
	Selected     lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple).
			Padding(0, 1),
		Empty: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#F87171")),

		SeverityHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#DC2626")),
		SeverityMedium: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CA8A04")),
		SeverityLow:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563EB")),

		OK:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		Error: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		Suggestion:   lipgloss.NewStyle().Foreground(lipgloss.Color("#1D4ED8")),
		AISuggestion: lipgloss.NewStyle().Foreground(lipgloss.Color("#7E22CE")),
		Selected:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#60A5FA")).Padding(0, 1),
	}
}
