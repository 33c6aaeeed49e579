package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talkrooms/talkrooms/internal/domain"
)

// CreateMessage persists a message and returns it hydrated with the
// sender's display fields, ready for broadcast.
func (s *Store) CreateMessage(ctx context.Context, room domain.RoomID, sender domain.UserID, text string) (*domain.Message, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, sender_id, text, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, string(room), string(sender), text, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: create message: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.room_id, m.sender_id, u.username, u.email, m.text, m.created_at
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.id = ?`, id)

	var msg domain.Message
	var created int64
	if err := row.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName, &msg.SenderEmail, &msg.Text, &created); err != nil {
		return nil, fmt.Errorf("store: hydrate message: %w", err)
	}
	msg.CreatedAt = time.Unix(created, 0).UTC()
	return &msg, nil
}

// MessagesByRoom returns up to limit messages in commit order, oldest first.
func (s *Store) MessagesByRoom(ctx context.Context, room domain.RoomID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.room_id, m.sender_id, u.username, u.email, m.text, m.created_at
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.room_id = ?
		ORDER BY m.created_at ASC, m.rowid ASC
		LIMIT ?`, string(room), limit)
	if err != nil {
		return nil, fmt.Errorf("store: messages by room: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var msg domain.Message
		var created int64
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName, &msg.SenderEmail, &msg.Text, &created); err != nil {
			return nil, fmt.Errorf("store: messages by room: %w", err)
		}
		msg.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, msg)
	}
	return out, rows.Err()
}
