// Package httpapi serves the accounts REST interface: user CRUD and listing,
// email verification, registration and cookie sessions.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"accounts-api/internal/dbexec"
	"accounts-api/internal/email"
	"accounts-api/internal/session"
	"accounts-api/internal/user"
	"accounts-api/internal/verification"
)

// UserStore is the user persistence used by the handlers.
type UserStore interface {
	FindAll(ctx context.Context, p user.Params) (dbexec.Page[user.User], error)
	Find(ctx context.Context, id string) (user.User, error)
	FindByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, msg user.Message) (user.User, error)
	Update(ctx context.Context, id string, msg user.Message) (user.User, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// TokenStore is the verification token persistence used by the handlers.
type TokenStore interface {
	Create(ctx context.Context, email string) (verification.Token, error)
	Find(ctx context.Context, id []byte) (verification.Token, error)
	Delete(ctx context.Context, id []byte) (int64, error)
	Now() time.Time
}

// Mailer delivers verification codes.
type Mailer interface {
	SendHTML(ctx context.Context, to email.Contact, subject, html string) (string, error)
}

// Sessions starts and ends sign-ins.
type Sessions interface {
	Issue(ctx context.Context, userID string) (string, session.Session, error)
	Revoke(ctx context.Context, id string) error
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler holds the dependencies shared by every route.
type Handler struct {
	users    UserStore
	tokens   TokenStore
	mailer   Mailer
	sessions Sessions
	cookie   CookieConfig
}

// Config wires a Handler.
type Config struct {
	Users    UserStore
	Tokens   TokenStore
	Mailer   Mailer
	Sessions Sessions
	Cookie   CookieConfig
}

// New returns a Handler for cfg.
func New(cfg Config) *Handler {
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = "session"
	}
	return &Handler{
		users:    cfg.Users,
		tokens:   cfg.Tokens,
		mailer:   cfg.Mailer,
		sessions: cfg.Sessions,
		cookie:   cfg.Cookie,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /users", h.listUsers)
	mux.HandleFunc("GET /users/{id}", h.findUser)
	mux.HandleFunc("POST /users", h.createUser)
	mux.HandleFunc("PUT /users/{id}", h.updateUser)
	mux.HandleFunc("DELETE /users/{id}", h.deleteUser)

	mux.HandleFunc("POST /invite", h.invite)
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /sign-in", h.signIn)
	mux.HandleFunc("POST /sign-out", h.signOut)
	mux.HandleFunc("GET /who-am-i", h.whoAmI)
}

// Routes are the registered route patterns, used to name HTTP spans.
var Routes = []string{
	"/users", "/users/{id}", "/invite", "/register",
	"/sign-in", "/sign-out", "/who-am-i",
}
