// Package auth issues and verifies the access tokens that gate both the
// REST surface and the signaling socket handshake.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/talkrooms/talkrooms/internal/domain"
)

// CookieName is where clients carry the access token; the socket
// handshake reads the same cookie.
const CookieName = "accessToken"

var ErrUnauthorized = errors.New("unauthorized")

// Tokens wraps a signing secret for issuing and verifying access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

func (t *Tokens) TTL() time.Duration { return t.ttl }

// Sign creates an access token for the user.
func (t *Tokens) Sign(uid domain.UserID) (string, error) {
	if uid == "" {
		return "", errors.New("empty user id")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": string(uid),
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks a token and returns the subject user id. Any failure maps
// to ErrUnauthorized; callers never learn why a token was bad.
func (t *Tokens) Verify(tok string) (domain.UserID, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrUnauthorized
	}
	return domain.UserID(sub), nil
}
