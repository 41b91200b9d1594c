// Package tui is the terminal chat surface over a chat session.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A4FCF", Dark: "#A99BFF"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#0B7A75", Dark: "#5FD7C5"}
	colorError   = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B6B"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#777777", Dark: "#8A8A8A"}
	colorBorder  = lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"}
)

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)

	hintStyle = lipgloss.NewStyle().Foreground(colorDim)

	userLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)

	errorLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorError)

	provenanceStyle = lipgloss.NewStyle().Italic(true).Foreground(colorDim)

	inputPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	loadingStyle = lipgloss.NewStyle().Foreground(colorAccent)

	errorStyle = lipgloss.NewStyle().Foreground(colorError)
)
