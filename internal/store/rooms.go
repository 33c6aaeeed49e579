package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talkrooms/talkrooms/internal/domain"
)

// CreateRoom creates a room with a fresh unique invite code. Code
// collisions are retried; the code column's UNIQUE constraint is the
// arbiter.
func (s *Store) CreateRoom(ctx context.Context, name string, host domain.UserID) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrRoomNameInvalid
	}

	now := time.Now().UTC()
	for {
		r := &domain.Room{
			ID:         domain.RoomID(uuid.NewString()),
			Name:       name,
			Code:       domain.NewRoomCode(),
			HostID:     host,
			LastUsedAt: now,
			CreatedAt:  now,
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO rooms (id, name, code, host_id, last_used_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(r.ID), r.Name, string(r.Code), string(r.HostID), now.Unix(), now.Unix())
		if err != nil {
			if strings.Contains(err.Error(), "rooms.code") {
				continue
			}
			return nil, fmt.Errorf("store: create room: %w", err)
		}
		return r, nil
	}
}

// RoomByCode resolves a room by its invite code.
func (s *Store) RoomByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	return s.scanRoom(s.db.QueryRowContext(ctx, `
		SELECT id, name, code, host_id, last_used_at, created_at
		FROM rooms WHERE code = ?`, string(code)))
}

// RoomsByHost lists a user's rooms, newest first.
func (s *Store) RoomsByHost(ctx context.Context, host domain.UserID) ([]domain.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, code, host_id, last_used_at, created_at
		FROM rooms WHERE host_id = ? ORDER BY created_at DESC`, string(host))
	if err != nil {
		return nil, fmt.Errorf("store: rooms by host: %w", err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var r domain.Room
		var lastUsed, created int64
		if err := rows.Scan(&r.ID, &r.Name, &r.Code, &r.HostID, &lastUsed, &created); err != nil {
			return nil, fmt.Errorf("store: rooms by host: %w", err)
		}
		r.LastUsedAt = time.Unix(lastUsed, 0).UTC()
		r.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// RenameRoom updates a room's name; only the host may rename.
func (s *Store) RenameRoom(ctx context.Context, id domain.RoomID, host domain.UserID, name string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrRoomNameInvalid
	}
	ct, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET name = ? WHERE id = ? AND host_id = ?`,
		name, string(id), string(host))
	if err != nil {
		return nil, fmt.Errorf("store: rename room: %w", err)
	}
	if n, _ := ct.RowsAffected(); n == 0 {
		return nil, domain.ErrRoomNotFound
	}
	return s.scanRoom(s.db.QueryRowContext(ctx, `
		SELECT id, name, code, host_id, last_used_at, created_at
		FROM rooms WHERE id = ?`, string(id)))
}

// DeleteRoom removes a host's room; its messages go with it via cascade.
func (s *Store) DeleteRoom(ctx context.Context, id domain.RoomID, host domain.UserID) error {
	ct, err := s.db.ExecContext(ctx,
		`DELETE FROM rooms WHERE id = ? AND host_id = ?`, string(id), string(host))
	if err != nil {
		return fmt.Errorf("store: delete room: %w", err)
	}
	if n, _ := ct.RowsAffected(); n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// TouchRoom refreshes last_used_at so the janitor leaves active rooms alone.
func (s *Store) TouchRoom(ctx context.Context, id domain.RoomID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET last_used_at = ? WHERE id = ?`,
		time.Now().UTC().Unix(), string(id))
	if err != nil {
		return fmt.Errorf("store: touch room: %w", err)
	}
	return nil
}

// DeleteStaleRooms drops rooms idle longer than ttl and reports how many.
func (s *Store) DeleteStaleRooms(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl).Unix()
	ct, err := s.db.ExecContext(ctx,
		`DELETE FROM rooms WHERE last_used_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: delete stale rooms: %w", err)
	}
	n, _ := ct.RowsAffected()
	return n, nil
}

func (s *Store) scanRoom(row *sql.Row) (*domain.Room, error) {
	var r domain.Room
	var lastUsed, created int64
	if err := row.Scan(&r.ID, &r.Name, &r.Code, &r.HostID, &lastUsed, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("store: scan room: %w", err)
	}
	r.LastUsedAt = time.Unix(lastUsed, 0).UTC()
	r.CreatedAt = time.Unix(created, 0).UTC()
	return &r, nil
}
