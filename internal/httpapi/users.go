package httpapi

import (
	"net/http"

	"accounts-api/internal/apierror"
	"accounts-api/internal/user"

	"github.com/google/uuid"
)

type deletedBody struct {
	Deleted int64 `json:"deleted"`
}

// userID returns the {id} path value when it is a well-formed UUID.
// Anything else cannot name a user and is reported as not found.
func userID(r *http.Request) (string, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return "", apierror.NotFound("Record not found")
	}
	return id.String(), nil
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	params, err := parseUserParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.users.FindAll(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

func (h *Handler) findUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.Find(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var msg user.Message
	if err := decodeAndValidate(w, r, &msg); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.Create(r.Context(), msg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var msg user.Message
	if err := decodeAndValidate(w, r, &msg); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.Update(r.Context(), id, msg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.users.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, deletedBody{Deleted: n})
}
