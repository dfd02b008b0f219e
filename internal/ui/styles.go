package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor  = lipgloss.Color("14")  // cyan
	successColor = lipgloss.Color("10")  // green
	warningColor = lipgloss.Color("11")  // yellow
	errorColor   = lipgloss.Color("9")   // red
	dimColor     = lipgloss.Color("240") // gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	listeningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	speakingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warningColor)

	voiceOnStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(dimColor)
)
