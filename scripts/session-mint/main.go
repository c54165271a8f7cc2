// Command session-mint issues a session for an existing user id and prints
// the cookie value, for exercising signed-in routes during development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"accounts-api/internal/session"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func main() {
	addr := flag.String("redis", "localhost:6379", "Redis address holding sessions")
	db := flag.Int("redis-db", 0, "Redis database number")
	userID := flag.String("user", "", "User id (UUID) the session belongs to")
	ttl := flag.Duration("ttl", time.Hour, "Session lifetime")
	cookie := flag.String("cookie", "session", "Cookie name printed with the token")
	flag.Parse()

	secret := os.Getenv("ACCTAPI_SESSION_SECRET")
	if secret == "" {
		exitErr(errors.New("ACCTAPI_SESSION_SECRET must be set to the server's session secret"))
	}

	rdb := redis.NewClient(&redis.Options{Addr: *addr, DB: *db})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, s, err := mint(ctx, rdb, []byte(secret), *userID, *ttl)
	if err != nil {
		exitErr(err)
	}
	fmt.Fprintf(os.Stderr, "session %s expires %s\n", s.ID, s.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("%s=%s\n", *cookie, token)
}

func mint(ctx context.Context, rdb redis.Cmdable, secret []byte, userID string, ttl time.Duration) (string, session.Session, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return "", session.Session{}, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	if ttl <= 0 {
		return "", session.Session{}, errors.New("ttl must be positive")
	}
	return session.NewManager(rdb, secret, ttl).Issue(ctx, userID)
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
