package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"relay/pkg/protocol"
)

// fetchTimeout is how long to wait for one API round-trip.
const fetchTimeout = 5 * time.Second

// Snapshot is one consistent-enough poll of the daemon's state.
type Snapshot struct {
	Sessions  []protocol.Session
	Processes []protocol.ProcessInfo
	Queues    []protocol.QueueSummary
	Unread    []protocol.InboxMessage
}

// apiBaseURL returns the daemon API base from RELAY_API or the default
// listen address.
func apiBaseURL() string {
	if v := os.Getenv("RELAY_API"); v != "" {
		return v
	}
	return "http://127.0.0.1:7171"
}

// fetchSnapshot polls all dashboard data in one pass. A failure on any
// endpoint fails the snapshot; the model shows the daemon as offline.
func fetchSnapshot(ctx context.Context, baseURL string) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var snap Snapshot
	if err := getJSON(ctx, baseURL+"/api/sessions", &snap.Sessions); err != nil {
		return Snapshot{}, err
	}
	if err := getJSON(ctx, baseURL+"/api/processes", &snap.Processes); err != nil {
		return Snapshot{}, err
	}
	if err := getJSON(ctx, baseURL+"/api/queue", &snap.Queues); err != nil {
		return Snapshot{}, err
	}
	if err := getJSON(ctx, baseURL+"/api/inbox?unread=true", &snap.Unread); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// getJSON fetches url and decodes the JSON response into out.
func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
