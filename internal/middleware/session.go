package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"accounts-api/internal/logging"
	"accounts-api/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SessionResolver turns a cookie token into a live session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (session.Session, error)
}

type sessionContextKey struct{}

// SessionFromContext returns the session resolved for the current request.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(session.Session)
	return s, ok
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionMiddleware resolves the session cookie, when present, into the request
// context. Requests without a valid session continue anonymously; handlers that
// need one check SessionFromContext.
func SessionMiddleware(cookieName string, resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			s, err := resolver.Resolve(ctx, cookie.Value)
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					logging.FromContext(ctx).Error("session lookup failed", slog.String("error", err.Error()))
				}
				next.ServeHTTP(w, r)
				return
			}

			if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
				span.SetAttributes(attribute.String("enduser.id", s.UserID))
			}
			next.ServeHTTP(w, r.WithContext(WithSession(ctx, s)))
		})
	}
}
