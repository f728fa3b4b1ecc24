package session_test

import (
	"testing"
	"time"

	"relay/pkg/protocol"
	"relay/pkg/session"
)

// fakeClock returns a controllable nowFunc and an advance helper.
func fakeClock(start time.Time) (func() time.Time, func(d time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

// TestRegister_CreatesActiveSession verifies a first registration yields an
// active session bound to the given project.
func TestRegister_CreatesActiveSession(t *testing.T) {
	r := session.NewRegistry(0)

	s := r.Register("s-1", "web", "/srv/web")
	if s.ID != "s-1" || s.ProjectName != "web" || s.ProjectPath != "/srv/web" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.Status != protocol.SessionActive {
		t.Errorf("Status = %q, want active", s.Status)
	}
}

// TestRegister_IdempotentKeepsProjectBinding verifies re-registering an
// existing id refreshes activity but never rebinds the project.
func TestRegister_IdempotentKeepsProjectBinding(t *testing.T) {
	r := session.NewRegistry(0)
	now, advance := fakeClock(time.Now())
	r.SetNowFunc(now)

	first := r.Register("s-1", "web", "/srv/web")
	advance(10 * time.Minute)
	second := r.Register("s-1", "other", "/srv/other")

	if second.ProjectName != "web" || second.ProjectPath != "/srv/web" {
		t.Errorf("project binding altered: %+v", second)
	}
	if !second.LastActivity.After(first.LastActivity) {
		t.Error("LastActivity not refreshed")
	}
	if len(r.List()) != 1 {
		t.Errorf("expected 1 session, got %d", len(r.List()))
	}
}

// TestHeartbeat_UnknownIDReturnsNotFound verifies the error taxonomy.
func TestHeartbeat_UnknownIDReturnsNotFound(t *testing.T) {
	r := session.NewRegistry(0)

	_, err := r.Heartbeat("ghost")
	if err == nil {
		t.Fatal("expected error for unknown session")
	}
	if _, ok := err.(*protocol.NotFoundError); !ok {
		t.Fatalf("error type = %T, want *protocol.NotFoundError", err)
	}
}

// TestSweep_RemovesOnlyExpiredSessions verifies a session idle longer than
// the TTL is absent after a sweep and present before.
func TestSweep_RemovesOnlyExpiredSessions(t *testing.T) {
	r := session.NewRegistry(30 * time.Minute)
	now, advance := fakeClock(time.Now())
	r.SetNowFunc(now)

	r.Register("old", "web", "/srv/web")
	advance(31 * time.Minute)
	r.Register("fresh", "api", "/srv/api")

	if len(r.List()) != 2 {
		t.Fatalf("expected 2 sessions before sweep, got %d", len(r.List()))
	}

	if removed := r.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if _, ok := r.Get("old"); ok {
		t.Error("expired session still present")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Error("fresh session removed by sweep")
	}
}

// TestList_DerivesIdleMinutes verifies snapshots carry idle time and an
// idle status once past half the TTL.
func TestList_DerivesIdleMinutes(t *testing.T) {
	r := session.NewRegistry(30 * time.Minute)
	now, advance := fakeClock(time.Now())
	r.SetNowFunc(now)

	r.Register("s-1", "web", "/srv/web")
	advance(20 * time.Minute)

	list := r.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}
	if list[0].IdleMinutes != 20 {
		t.Errorf("IdleMinutes = %d, want 20", list[0].IdleMinutes)
	}
	if list[0].Status != protocol.SessionIdle {
		t.Errorf("Status = %q, want idle", list[0].Status)
	}
}

// TestFindByProject_PicksMostRecentlyActive verifies recency breaks ties
// when duplicate sessions claim the same project, ignoring case.
func TestFindByProject_PicksMostRecentlyActive(t *testing.T) {
	r := session.NewRegistry(0)
	now, advance := fakeClock(time.Now())
	r.SetNowFunc(now)

	r.Register("s-old", "Web", "/srv/web")
	advance(5 * time.Minute)
	r.Register("s-new", "web", "/srv/web")

	s, ok := r.FindByProject("WEB")
	if !ok {
		t.Fatal("FindByProject returned no session")
	}
	if s.ID != "s-new" {
		t.Errorf("picked %q, want s-new", s.ID)
	}

	if _, ok := r.FindByProject("missing"); ok {
		t.Error("FindByProject returned a session for unknown project")
	}
}

// TestEvict_RemovesSession verifies the router's self-heal path deletes
// the entry outright.
func TestEvict_RemovesSession(t *testing.T) {
	r := session.NewRegistry(0)
	r.Register("s-1", "web", "/srv/web")

	r.Evict("s-1")
	if _, ok := r.Get("s-1"); ok {
		t.Error("session still present after evict")
	}
	// Evicting again is harmless.
	r.Evict("s-1")
}
