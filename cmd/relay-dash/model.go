package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// pollInterval is how often the dashboard refreshes from the daemon.
const pollInterval = 2 * time.Second

// tickMsg is sent by Bubble Tea on every poll interval.
type tickMsg time.Time

// snapshotMsg carries one fetched snapshot. ok is false when the daemon
// could not be reached.
type snapshotMsg struct {
	snap Snapshot
	ok   bool
}

// tickCmd returns a command that sends a tickMsg after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchCmd returns a tea.Cmd that polls the daemon API.
func fetchCmd(baseURL string) tea.Cmd {
	return func() tea.Msg {
		snap, err := fetchSnapshot(context.Background(), baseURL)
		return snapshotMsg{snap: snap, ok: err == nil}
	}
}

// paneID indexes the focusable tables.
type paneID int

const (
	sessionsPane paneID = iota
	queuePane
	paneCount
)

// Model is the Bubble Tea model for the relay dashboard.
type Model struct {
	baseURL string
	theme   Theme

	snap    Snapshot
	healthy bool

	sessions table.Model
	queues   table.Model
	active   paneID

	width  int
	height int
}

// newModel creates a Model polling the given API base URL.
func newModel(baseURL string) Model {
	theme := DefaultTheme()

	sessions := table.New(
		table.WithColumns([]table.Column{
			{Title: "SESSION", Width: 14},
			{Title: "PROJECT", Width: 18},
			{Title: "STATUS", Width: 8},
			{Title: "IDLE", Width: 6},
		}),
		table.WithHeight(8),
		table.WithFocused(true),
	)
	queues := table.New(
		table.WithColumns([]table.Column{
			{Title: "PROJECT", Width: 18},
			{Title: "PENDING", Width: 8},
			{Title: "TOTAL", Width: 8},
		}),
		table.WithHeight(8),
	)

	return Model{
		baseURL:  baseURL,
		theme:    theme,
		sessions: sessions,
		queues:   queues,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.baseURL), tickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.active = (m.active + 1) % paneCount
			if m.active == sessionsPane {
				m.sessions.Focus()
				m.queues.Blur()
			} else {
				m.sessions.Blur()
				m.queues.Focus()
			}
			return m, nil
		case "r":
			return m, fetchCmd(m.baseURL)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchCmd(m.baseURL), tickCmd())

	case snapshotMsg:
		m.healthy = msg.ok
		if msg.ok {
			m.snap = msg.snap
			m.sessions.SetRows(sessionRows(msg.snap))
			m.queues.SetRows(queueRows(msg.snap))
		}
		return m, nil
	}

	// Forward remaining messages to the focused table.
	var cmd tea.Cmd
	if m.active == sessionsPane {
		m.sessions, cmd = m.sessions.Update(msg)
	} else {
		m.queues, cmd = m.queues.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	status := "online"
	if !m.healthy {
		status = "offline"
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.headerStyle().Render("relay"),
		"  daemon: ",
		m.theme.statusStyle(m.healthy).Render(status),
		fmt.Sprintf("  workers: %d  unread: %d", len(m.snap.Processes), len(m.snap.Unread)),
	)

	body := lipgloss.JoinVertical(lipgloss.Left,
		"",
		"Sessions",
		m.sessions.View(),
		"",
		"Queues",
		m.queues.View(),
	)

	footer := m.theme.footerStyle().Render("tab: switch pane  r: refresh  q: quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, "", footer)
}

// sessionRows converts the snapshot's sessions into table rows.
func sessionRows(snap Snapshot) []table.Row {
	rows := make([]table.Row, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		rows = append(rows, table.Row{
			s.ID,
			s.ProjectName,
			string(s.Status),
			fmt.Sprintf("%dm", s.IdleMinutes),
		})
	}
	return rows
}

// queueRows converts the snapshot's queue summaries into table rows.
func queueRows(snap Snapshot) []table.Row {
	rows := make([]table.Row, 0, len(snap.Queues))
	for _, q := range snap.Queues {
		rows = append(rows, table.Row{
			q.ProjectName,
			strconv.Itoa(q.Pending),
			strconv.Itoa(q.Total),
		})
	}
	return rows
}
