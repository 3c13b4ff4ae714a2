package main

import "github.com/charmbracelet/lipgloss"

var (
	panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	metricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	metricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))
)
