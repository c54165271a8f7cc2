package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"accounts-api/internal/logging"
)

// HealthCheck is one dependency probed by the health endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler probes every check within timeout. Any failure answers 503;
// failure details are logged, never returned.
func HealthHandler(timeout time.Duration, checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		body := healthBody{Status: "healthy", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				reqLogger.Error("health check failed",
					slog.String("check", c.Name),
					slog.String("error", err.Error()),
				)
				body.Checks[c.Name] = "failed"
				body.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			body.Checks[c.Name] = "ok"
		}

		if status == http.StatusOK {
			reqLogger.Debug("health check passed")
		}
		writeJSON(w, r, status, body)
	}
}
