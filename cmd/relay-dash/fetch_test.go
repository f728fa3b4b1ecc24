package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newFakeDaemon serves canned JSON for the dashboard's endpoints.
func newFakeDaemon(t *testing.T, responses map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func allEndpoints() map[string]any {
	return map[string]any{
		"/api/sessions": []map[string]any{
			{"sessionId": "s-1", "projectName": "web", "status": "active", "idleMinutes": 2},
		},
		"/api/processes": []map[string]any{
			{"projectName": "web", "pid": 321, "runningMinutes": 14},
		},
		"/api/queue": []map[string]any{
			{"projectName": "api", "pending": 3, "total": 5},
		},
		"/api/inbox": []map[string]any{
			{"id": "m-1", "from": "alice", "body": "hello"},
		},
	}
}

// TestFetchSnapshot_AllEndpoints verifies one poll gathers every pane's
// data.
func TestFetchSnapshot_AllEndpoints(t *testing.T) {
	srv := newFakeDaemon(t, allEndpoints())

	snap, err := fetchSnapshot(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetchSnapshot returned error: %v", err)
	}
	if len(snap.Sessions) != 1 || snap.Sessions[0].ProjectName != "web" {
		t.Errorf("sessions = %+v", snap.Sessions)
	}
	if len(snap.Processes) != 1 || snap.Processes[0].PID != 321 {
		t.Errorf("processes = %+v", snap.Processes)
	}
	if len(snap.Queues) != 1 || snap.Queues[0].Pending != 3 {
		t.Errorf("queues = %+v", snap.Queues)
	}
	if len(snap.Unread) != 1 {
		t.Errorf("unread = %+v", snap.Unread)
	}
}

// TestFetchSnapshot_OfflineDaemonFails verifies a missing endpoint fails
// the whole snapshot so the model can show offline.
func TestFetchSnapshot_OfflineDaemonFails(t *testing.T) {
	srv := newFakeDaemon(t, map[string]any{})

	if _, err := fetchSnapshot(context.Background(), srv.URL); err == nil {
		t.Fatal("fetchSnapshot succeeded against an empty daemon")
	}
}
