package domain

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrRoomNameInvalid = errors.New("room name required")
)

type (
	RoomCode string
	RoomID   string
)

type Room struct {
	ID         RoomID    `json:"id"`
	Name       string    `json:"name"`
	Code       RoomCode  `json:"code"`
	HostID     UserID    `json:"host"`
	LastUsedAt time.Time `json:"lastUsedTime"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewRoomCode returns a 6-char uppercase hex invite code.
func NewRoomCode() RoomCode {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return RoomCode(strings.ToUpper(hex.EncodeToString(b[:])))
}
