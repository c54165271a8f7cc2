package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"accounts-api/internal/apierror"
	"accounts-api/internal/logging"
	"accounts-api/internal/user"
)

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to encode response", slog.String("error", err.Error()))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func classify(err error) *apierror.Error {
	if errors.Is(err, user.ErrEmailTaken) {
		return apierror.Wrap(http.StatusConflict, "Email already registered", err)
	}
	return apierror.From(err)
}

// writeError sends err as {"error": message}. Server-side failures are logged
// with their cause and reported to the client generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := classify(err)
	logger := logging.FromContext(r.Context())
	if apiErr.Internal() {
		logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Debug("request rejected",
			slog.Int("status", apiErr.Status),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, r, apiErr.Status, errorBody{Error: apiErr.Message})
}
