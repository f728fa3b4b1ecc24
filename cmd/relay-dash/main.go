// Package main implements the relay-dash interactive dashboard: a live view
// of sessions, workers, queues, and the inbox, polled from the relay
// daemon's HTTP API.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	p := tea.NewProgram(newModel(apiBaseURL()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}
