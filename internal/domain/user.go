// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 20
	MinPasswordLen = 6
)

var (
	ErrUsernameInvalid = errors.New("username must be 3-20 characters")
	ErrEmailInvalid    = errors.New("email invalid")
	ErrPasswordTooWeak = errors.New("password must be at least 6 characters")
)

type UserID string

type User struct {
	ID        UserID    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeUsername lowercases and trims, mirroring what the account store
// enforces on write.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateCredentials checks registration input before it reaches the store.
func ValidateCredentials(username, email, password string) error {
	username = NormalizeUsername(username)
	if len(username) < MinUsernameLen || len(username) > MaxUsernameLen {
		return ErrUsernameInvalid
	}
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return ErrEmailInvalid
	}
	if len(password) < MinPasswordLen {
		return ErrPasswordTooWeak
	}
	return nil
}
