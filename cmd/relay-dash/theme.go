package main

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual styling for the relay dashboard.
type Theme struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Muted   lipgloss.Color
}

// DefaultTheme returns the default theme for relay-dash.
func DefaultTheme() Theme {
	return Theme{
		Primary: lipgloss.Color("12"),  // Blue
		Success: lipgloss.Color("10"),  // Green
		Warning: lipgloss.Color("11"),  // Yellow
		Error:   lipgloss.Color("9"),   // Red
		Muted:   lipgloss.Color("240"), // Gray
	}
}

// headerStyle renders the dashboard title bar.
func (t Theme) headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
}

// statusStyle picks a color for the daemon health indicator.
func (t Theme) statusStyle(healthy bool) lipgloss.Style {
	if healthy {
		return lipgloss.NewStyle().Foreground(t.Success)
	}
	return lipgloss.NewStyle().Foreground(t.Error)
}

// footerStyle renders the key hints line.
func (t Theme) footerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted)
}
