// Package session keeps signed-in users in Redis and hands out signed cookie tokens.
//
// The cookie value is an HS256 JWT whose jti is the session id and whose sub
// is the user id. A token is only honoured while the matching Redis record
// exists, so revoking the record signs the user out everywhere the token was copied.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when a token is missing, invalid, expired or revoked.
var ErrNoSession = errors.New("session: not found")

const keyPrefix = "session:"

// Session is an active sign-in.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// Manager issues, resolves and revokes sessions.
type Manager struct {
	rdb    redis.Cmdable
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager returns a Manager storing records in rdb for ttl.
func NewManager(rdb redis.Cmdable, secret []byte, ttl time.Duration) *Manager {
	return &Manager{rdb: rdb, secret: secret, ttl: ttl, now: time.Now}
}

// TTL is the lifetime given to new sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func key(id string) string {
	return keyPrefix + id
}

// Issue starts a new session for userID and returns its signed token.
func (m *Manager) Issue(ctx context.Context, userID string) (string, Session, error) {
	now := m.now()
	s := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.rdb.Set(ctx, key(s.ID), userID, m.ttl).Err(); err != nil {
		return "", Session{}, fmt.Errorf("store session: %w", err)
	}

	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		_ = m.rdb.Del(ctx, key(s.ID)).Err()
		return "", Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, s, nil
}

// Resolve validates token and returns the live session it names.
func (m *Manager) Resolve(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	userID, err := m.rdb.Get(ctx, key(claims.ID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return Session{}, ErrNoSession
	case err != nil:
		return Session{}, fmt.Errorf("load session: %w", err)
	case userID != claims.Subject:
		return Session{}, ErrNoSession
	}

	return Session{ID: claims.ID, UserID: userID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Revoke deletes the session record. Revoking an unknown id is not an error.
func (m *Manager) Revoke(ctx context.Context, id string) error {
	if err := m.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
