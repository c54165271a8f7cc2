// Package verification issues the one-time codes that prove ownership of an
// email address before registration.
package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"accounts-api/internal/dbexec"
	"accounts-api/internal/planner"
)

// Table is the backing table name.
const Table = "email_verification_tokens"

// TokenBytes is the length of a raw token id.
const TokenBytes = 32

// DefaultTTL is how long a token stays valid unless configured otherwise.
const DefaultTTL = 12 * time.Hour

var columns = []string{"id", "email", "expires_at", "created_at"}

var (
	// ErrNotFound is returned when no token has the given id.
	ErrNotFound = dbexec.ErrNotFound
	// ErrMalformedCode is returned for codes that are not hex-encoded token ids.
	ErrMalformedCode = errors.New("malformed verification code")
)

// Token binds a random id to the email address it was sent to.
type Token struct {
	ID        []byte
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Code is the hex form of the id, as mailed to the user.
func (t Token) Code() string {
	return hex.EncodeToString(t.ID)
}

// Expired reports whether the token is past its expiry at now.
func (t Token) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// ParseCode decodes a mailed code back into a token id.
func ParseCode(code string) ([]byte, error) {
	id, err := hex.DecodeString(code)
	if err != nil || len(id) != TokenBytes {
		return nil, ErrMalformedCode
	}
	return id, nil
}

// Store persists tokens.
type Store struct {
	exec   dbexec.QueryExecutor
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// NewStore returns a Store whose tokens live for ttl. A non-positive ttl uses DefaultTTL.
func NewStore(exec dbexec.QueryExecutor, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		exec:   exec,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		random: rand.Reader,
	}
}

// Now is the store's clock, used by callers checking expiry.
func (s *Store) Now() time.Time {
	return s.now()
}

// Create issues a fresh token for email. An outstanding token for the same
// email is replaced, so only the newest code works.
func (s *Store) Create(ctx context.Context, email string) (Token, error) {
	id := make([]byte, TokenBytes)
	if _, err := io.ReadFull(s.random, id); err != nil {
		return Token{}, fmt.Errorf("generate token: %w", err)
	}

	now := s.now()
	t := Token{ID: id, Email: email, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}

	query, err := planner.PlanUpsert(Table, map[string]interface{}{
		"id":         t.ID,
		"email":      t.Email,
		"expires_at": t.ExpiresAt,
		"created_at": t.CreatedAt,
	}, []string{"id", "expires_at", "created_at"})
	if err != nil {
		return Token{}, err
	}

	if _, err := dbexec.Exec(ctx, s.exec, query); err != nil {
		return Token{}, fmt.Errorf("store token: %w", err)
	}
	return t, nil
}

func scanToken(scan func(dest ...any) error) (Token, error) {
	var t Token
	err := scan(&t.ID, &t.Email, &t.ExpiresAt, &t.CreatedAt)
	return t, err
}

// Find returns the token with the given id.
func (s *Store) Find(ctx context.Context, id []byte) (Token, error) {
	query, err := planner.PlanLookup(Table, columns, map[string]interface{}{"id": id})
	if err != nil {
		return Token{}, err
	}
	t, err := dbexec.LoadOne(ctx, s.exec, query, scanToken)
	if err != nil {
		return Token{}, fmt.Errorf("find token: %w", err)
	}
	return t, nil
}

// Delete removes the token and returns the number of rows deleted.
func (s *Store) Delete(ctx context.Context, id []byte) (int64, error) {
	query, err := planner.PlanDelete(Table, map[string]interface{}{"id": id})
	if err != nil {
		return 0, err
	}
	n, err := dbexec.Exec(ctx, s.exec, query)
	if err != nil {
		return 0, fmt.Errorf("delete token: %w", err)
	}
	return n, nil
}
