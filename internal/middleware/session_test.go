package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"accounts-api/internal/session"

	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	sessions map[string]session.Session
	err      error
	calls    int
}

func (f *fakeResolver) Resolve(_ context.Context, token string) (session.Session, error) {
	f.calls++
	if f.err != nil {
		return session.Session{}, f.err
	}
	s, ok := f.sessions[token]
	if !ok {
		return session.Session{}, session.ErrNoSession
	}
	return s, nil
}

func serveWithSession(resolver SessionResolver, cookie *http.Cookie) (session.Session, bool) {
	var got session.Session
	var ok bool
	handler := SessionMiddleware("sid", resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = SessionFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/who-am-i", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got, ok
}

func TestSessionMiddleware(t *testing.T) {
	live := session.Session{ID: "s1", UserID: "u1"}
	resolver := &fakeResolver{sessions: map[string]session.Session{"good": live}}

	t.Run("valid cookie", func(t *testing.T) {
		got, ok := serveWithSession(resolver, &http.Cookie{Name: "sid", Value: "good"})
		assert.True(t, ok)
		assert.Equal(t, live, got)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, ok := serveWithSession(resolver, &http.Cookie{Name: "sid", Value: "bad"})
		assert.False(t, ok)
	})

	t.Run("no cookie skips lookup", func(t *testing.T) {
		before := resolver.calls
		_, ok := serveWithSession(resolver, nil)
		assert.False(t, ok)
		assert.Equal(t, before, resolver.calls)
	})

	t.Run("other cookie name", func(t *testing.T) {
		_, ok := serveWithSession(resolver, &http.Cookie{Name: "other", Value: "good"})
		assert.False(t, ok)
	})

	t.Run("store failure continues anonymously", func(t *testing.T) {
		_, ok := serveWithSession(&fakeResolver{err: errors.New("redis down")}, &http.Cookie{Name: "sid", Value: "good"})
		assert.False(t, ok)
	})
}
