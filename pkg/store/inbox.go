package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"relay/pkg/protocol"
)

// InboxAdd appends an unrouted inbound message to the inbox, unread.
func (s *Store) InboxAdd(ctx context.Context, from, body string) (protocol.InboxMessage, error) {
	msg := protocol.InboxMessage{
		ID:        uuid.New().String(),
		From:      from,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inbox (id, sender, body, read, created_at) VALUES (?, ?, ?, 0, ?)`,
		msg.ID, msg.From, msg.Body, msg.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return protocol.InboxMessage{}, fmt.Errorf("inbox add: %w", err)
	}
	return msg, nil
}

// InboxList returns inbox messages in arrival order. With unreadOnly set,
// read messages are filtered out.
func (s *Store) InboxList(ctx context.Context, unreadOnly bool) ([]protocol.InboxMessage, error) {
	query := `SELECT id, sender, body, read, created_at FROM inbox`
	if unreadOnly {
		query += ` WHERE read = 0`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query inbox: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []protocol.InboxMessage
	for rows.Next() {
		var m protocol.InboxMessage
		var read int
		var createdAt string
		if err := rows.Scan(&m.ID, &m.From, &m.Body, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan inbox message: %w", err)
		}
		m.Read = read != 0
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			m.CreatedAt = t
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inbox: %w", err)
	}
	return out, nil
}

// InboxMarkRead flags a message as read. Unknown ids return NotFoundError.
func (s *Store) InboxMarkRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE inbox SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("inbox mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inbox mark read: %w", err)
	}
	if n == 0 {
		return &protocol.NotFoundError{Kind: "inbox message", ID: id}
	}
	return nil
}
