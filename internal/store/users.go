package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talkrooms/talkrooms/internal/auth"
	"github.com/talkrooms/talkrooms/internal/domain"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// CreateUser registers an account with a bcrypt-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, email, password string) (*domain.User, error) {
	if err := domain.ValidateCredentials(username, email, password); err != nil {
		return nil, err
	}
	username = domain.NormalizeUsername(username)
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("store: hash password: %w", err)
	}

	u := &domain.User{
		ID:        domain.UserID(uuid.NewString()),
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(u.ID), u.Username, u.Email, hash, u.CreatedAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "users.username") {
			return nil, ErrUsernameTaken
		}
		if strings.Contains(err.Error(), "users.email") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return u, nil
}

// VerifyUser checks username + password and returns the account.
// Unknown username and wrong password are indistinguishable to callers.
func (s *Store) VerifyUser(ctx context.Context, username, password string) (*domain.User, error) {
	username = domain.NormalizeUsername(username)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE username = ?`, username)

	var u domain.User
	var hash string
	var created int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &hash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("store: verify user: %w", err)
	}
	if !auth.CheckPassword(hash, password) {
		return nil, ErrInvalidCredentials
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, nil
}

// UserByID resolves a user for presence registration and profile reads.
func (s *Store) UserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, created_at
		FROM users WHERE id = ?`, string(id))

	var u domain.User
	var created int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("store: user by id: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, nil
}

// SetLastRoom remembers the room a user joined most recently.
func (s *Store) SetLastRoom(ctx context.Context, user domain.UserID, room domain.RoomID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_room = ? WHERE id = ?`, string(room), string(user))
	if err != nil {
		return fmt.Errorf("store: set last room: %w", err)
	}
	return nil
}
