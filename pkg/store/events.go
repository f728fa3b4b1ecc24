package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LogEvent records one lifecycle or routing event.
func (s *Store) LogEvent(ctx context.Context, evType, project, sessionID, payload string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (type, project, session_id, payload) VALUES (?, ?, ?, ?)`,
		evType, project, sessionID, payload)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// EventQuery specifies filter criteria for reading the event log.
type EventQuery struct {
	// Type filters to a specific event type (e.g. "routed", "spawned").
	Type string

	// Project filters events to a specific project.
	Project string

	// Since and Until bound created_at (inclusive). Zero values mean
	// unbounded.
	Since time.Time
	Until time.Time

	// Limit restricts the number of results (0 = no limit). Newest first.
	Limit int
}

// sqliteTime renders t the way the schema's datetime('now') default stores
// timestamps, so string comparison in SQL orders correctly.
func sqliteTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// Events retrieves log entries matching the filter, newest first.
func (s *Store) Events(ctx context.Context, q EventQuery) ([]Event, error) {
	query := `SELECT id, type, COALESCE(project,''), COALESCE(session_id,''), COALESCE(payload,''), created_at FROM events`

	var conditions []string
	var args []any
	if q.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, q.Type)
	}
	if q.Project != "" {
		conditions = append(conditions, "project = ?")
		args = append(args, q.Project)
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, sqliteTime(q.Since))
	}
	if !q.Until.IsZero() {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, sqliteTime(q.Until))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Type, &e.Project, &e.SessionID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Event is one row of the event log.
type Event struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Project   string `json:"project"`
	SessionID string `json:"sessionId"`
	Payload   string `json:"payload"`
	CreatedAt string `json:"createdAt"`
}
