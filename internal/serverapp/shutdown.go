package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"accounts-api/internal/logging"
)

// releaseStep closes one resource acquired during Init.
type releaseStep struct {
	resource string
	release  func(context.Context) error
}

// cleanupStack releases resources newest first: the HTTP server stops before
// Redis and the database it depends on, and telemetry flushes last.
type cleanupStack struct {
	steps []releaseStep
}

func (s *cleanupStack) push(resource string, release func(context.Context) error) {
	s.steps = append(s.steps, releaseStep{resource: resource, release: release})
}

// run releases every resource even when some fail, and returns the failures joined.
func (s *cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var failures []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		start := time.Now()
		err := step.release(ctx)
		if err != nil {
			failures = append(failures, fmt.Errorf("release %s: %w", step.resource, err))
		}
		if logger == nil {
			continue
		}
		if err != nil {
			logger.Warn("failed to release resource",
				slog.String("resource", step.resource),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("error", err.Error()),
			)
			continue
		}
		logger.Info("released resource",
			slog.String("resource", step.resource),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
	return errors.Join(failures...)
}

// Shutdown releases everything Init acquired. Only the first call does any
// work and reports release failures; later calls return nil.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.started = false
		a.stateMu.Unlock()

		err = cleanup.run(ctx, a.logger)
	})
	return err
}
