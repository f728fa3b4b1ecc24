package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"relay/pkg/protocol"
)

// TestUpdate_SnapshotPopulatesTables verifies a successful poll fills the
// panes and flips the health indicator.
func TestUpdate_SnapshotPopulatesTables(t *testing.T) {
	m := newModel("http://unused")

	msg := snapshotMsg{
		ok: true,
		snap: Snapshot{
			Sessions: []protocol.Session{{ID: "s-1", ProjectName: "web", Status: protocol.SessionActive}},
			Queues:   []protocol.QueueSummary{{ProjectName: "api", Pending: 3, Total: 5}},
		},
	}
	updated, _ := m.Update(msg)
	model := updated.(Model)

	if !model.healthy {
		t.Error("model not marked healthy after a good snapshot")
	}
	view := model.View()
	if !strings.Contains(view, "web") || !strings.Contains(view, "api") {
		t.Errorf("view missing table data:\n%s", view)
	}
	if !strings.Contains(view, "online") {
		t.Errorf("view missing online status:\n%s", view)
	}
}

// TestUpdate_FailedSnapshotShowsOffline verifies a failed poll keeps the
// last data but shows the daemon as offline.
func TestUpdate_FailedSnapshotShowsOffline(t *testing.T) {
	m := newModel("http://unused")

	good := snapshotMsg{ok: true, snap: Snapshot{
		Sessions: []protocol.Session{{ID: "s-1", ProjectName: "web"}},
	}}
	updated, _ := m.Update(good)
	updated, _ = updated.(Model).Update(snapshotMsg{ok: false})
	model := updated.(Model)

	view := model.View()
	if !strings.Contains(view, "offline") {
		t.Errorf("view missing offline status:\n%s", view)
	}
	if !strings.Contains(view, "web") {
		t.Errorf("stale data dropped on failed poll:\n%s", view)
	}
}

// TestUpdate_QuitKeys verifies q and ctrl+c quit.
func TestUpdate_QuitKeys(t *testing.T) {
	m := newModel("http://unused")

	for _, key := range []string{"q", "ctrl+c"} {
		var msg tea.KeyMsg
		if key == "ctrl+c" {
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Errorf("key %q did not produce a command", key)
			continue
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("key %q did not quit", key)
		}
	}
}

// TestUpdate_TabSwitchesPane verifies pane focus cycles with tab.
func TestUpdate_TabSwitchesPane(t *testing.T) {
	m := newModel("http://unused")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	model := updated.(Model)
	if model.active != queuePane {
		t.Errorf("active pane = %d, want queue pane", model.active)
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = updated.(Model)
	if model.active != sessionsPane {
		t.Errorf("active pane = %d, want sessions pane after wrap", model.active)
	}
}
