package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"accounts-api/internal/apierror"
	"accounts-api/internal/dbexec"
	"accounts-api/internal/email"
	"accounts-api/internal/logging"
	"accounts-api/internal/middleware"
	"accounts-api/internal/user"
	"accounts-api/internal/verification"
)

const (
	msgInvalidToken       = "Invalid token"
	msgTokenExpired       = "Token expired"
	msgInvalidCredentials = "Credentials not valid!"
	msgUnauthorized       = "Unauthorized"
)

type inviteRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type registerRequest struct {
	Token    string `json:"token" validate:"required"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registeredBody struct {
	Message string    `json:"message"`
	User    user.User `json:"user"`
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	token, err := h.tokens.Create(ctx, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	messageID, err := h.mailer.SendHTML(ctx, email.Contact{Email: req.Email},
		"Confirm your email",
		"Your confirmation code is: "+token.Code(),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logging.FromContext(ctx).Info("verification email sent", slog.String("message_id", messageID))

	writeJSON(w, r, http.StatusOK, messageBody{Message: "Verification email sent"})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := verification.ParseCode(req.Token)
	if err != nil {
		writeError(w, r, apierror.Forbidden(msgInvalidToken))
		return
	}

	ctx := r.Context()
	token, err := h.tokens.Find(ctx, id)
	switch {
	case errors.Is(err, dbexec.ErrNotFound):
		writeError(w, r, apierror.Forbidden(msgInvalidToken))
		return
	case err != nil:
		writeError(w, r, err)
		return
	}

	if token.Email != req.Email {
		writeError(w, r, apierror.Forbidden(msgInvalidToken))
		return
	}
	if token.Expired(h.tokens.Now()) {
		writeError(w, r, apierror.Forbidden(msgTokenExpired))
		return
	}

	u, err := h.users.Create(ctx, user.Message{Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.tokens.Delete(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("failed to delete used verification token", slog.String("error", err.Error()))
	}

	writeJSON(w, r, http.StatusOK, registeredBody{Message: "Successfully registered", User: u})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	u, err := h.users.FindByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, dbexec.ErrNotFound):
		writeError(w, r, apierror.Unauthorized(msgInvalidCredentials))
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	if !u.VerifyPassword(req.Password) {
		writeError(w, r, apierror.Unauthorized(msgInvalidCredentials))
		return
	}

	// A fresh session id on every sign-in; the previous one, if any, stops working.
	if prev, ok := middleware.SessionFromContext(ctx); ok {
		if err := h.sessions.Revoke(ctx, prev.ID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	token, s, err := h.sessions.Issue(ctx, u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, r, http.StatusOK, u)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		writeError(w, r, apierror.Unauthorized(msgUnauthorized))
		return
	}
	if err := h.sessions.Revoke(ctx, s.ID); err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, r, http.StatusOK, messageBody{Message: "Successfully signed out"})
}

func (h *Handler) whoAmI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		writeError(w, r, apierror.Unauthorized(msgUnauthorized))
		return
	}
	u, err := h.users.Find(ctx, s.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}
