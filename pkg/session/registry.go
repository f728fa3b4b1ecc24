// Package session implements the session registry: it tracks live worker
// sessions (id, project binding, activity timestamp) and expires them by
// idle time. Registration is idempotent and keyed by session id — the only
// stable handle a worker holds.
package session

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"relay/pkg/protocol"
)

// Registry tracks live worker sessions with time-based expiry.
//
// Thread-safe: all access to the session map is protected by a mutex.
type Registry struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]*protocol.Session

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewRegistry creates a Registry with the given idle TTL. A zero ttl uses
// the default (30 minutes).
func NewRegistry(ttl time.Duration) *Registry {
	if ttl == 0 {
		ttl = protocol.SessionTTL
	}
	return &Registry{
		ttl:      ttl,
		sessions: make(map[string]*protocol.Session),
		nowFunc:  time.Now,
	}
}

// SetNowFunc replaces the clock. Tests use this to simulate idle time.
func (r *Registry) SetNowFunc(f func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowFunc = f
}

// Register creates a session for id or, if it already exists, refreshes
// its activity without altering the project binding.
func (r *Registry) Register(id, projectName, projectPath string) protocol.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	if s, ok := r.sessions[id]; ok {
		s.LastActivity = now
		s.Status = protocol.SessionActive
		return r.snapshotLocked(s)
	}

	s := &protocol.Session{
		ID:           id,
		ProjectName:  projectName,
		ProjectPath:  projectPath,
		StartTime:    now,
		LastActivity: now,
		Status:       protocol.SessionActive,
	}
	r.sessions[id] = s
	return r.snapshotLocked(s)
}

// Heartbeat refreshes the session's activity. Returns NotFoundError for an
// unknown id.
func (r *Registry) Heartbeat(id string) (protocol.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return protocol.Session{}, &protocol.NotFoundError{Kind: "session", ID: id}
	}
	s.LastActivity = r.nowFunc()
	s.Status = protocol.SessionActive
	return r.snapshotLocked(s), nil
}

// Touch refreshes activity for a session without failing on unknown ids.
// The router calls this after every successful delivery.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastActivity = r.nowFunc()
		s.Status = protocol.SessionActive
	}
}

// Get returns a snapshot of the session with the given id.
func (r *Registry) Get(id string) (protocol.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return protocol.Session{}, false
	}
	return r.snapshotLocked(s), true
}

// FindByProject returns the most recently active session bound to the
// given project name (case-insensitive). When duplicate sessions claim the
// same project, recency decides.
func (r *Registry) FindByProject(projectName string) (protocol.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *protocol.Session
	for _, s := range r.sessions {
		if !strings.EqualFold(s.ProjectName, projectName) {
			continue
		}
		if best == nil || s.LastActivity.After(best.LastActivity) {
			best = s
		}
	}
	if best == nil {
		return protocol.Session{}, false
	}
	return r.snapshotLocked(best), true
}

// List returns snapshots of all sessions, most recently active first, with
// derived idle minutes.
func (r *Registry) List() []protocol.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]protocol.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, r.snapshotLocked(s))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// Evict removes a session outright. The router uses this to self-heal when
// the supervisor reports the underlying process is gone.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Sweep removes every session whose idle time exceeds the TTL and returns
// the number removed. This and Evict are the only paths that delete
// sessions outright.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.LastActivity) > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps on the given interval until ctx is cancelled. A zero
// interval uses the default (5 minutes).
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval == 0 {
		interval = protocol.SweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Info("expired idle sessions", "removed", n)
			}
		}
	}
}

// snapshotLocked copies a session and fills in derived fields. Caller must
// hold r.mu.
func (r *Registry) snapshotLocked(s *protocol.Session) protocol.Session {
	out := *s
	idle := r.nowFunc().Sub(s.LastActivity)
	if idle < 0 {
		idle = 0
	}
	out.IdleMinutes = int(idle.Minutes())
	if idle > r.ttl/2 {
		out.Status = protocol.SessionIdle
	}
	return out
}
