package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName scopes every instrument created by this service.
const MeterName = "accounts-api"

// ListMetrics records the cost of paginated list queries per resource.
// A nil *ListMetrics is valid and records nothing.
type ListMetrics struct {
	duration metric.Float64Histogram
	rows     metric.Int64Histogram
	errors   metric.Int64Counter
}

// NewListMetrics creates the list-query instruments on meter, or on the global
// meter provider when meter is nil.
func NewListMetrics(meter metric.Meter) (*ListMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	duration, err := meter.Float64Histogram(
		"list.query.duration",
		metric.WithDescription("Duration of list queries in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create list duration histogram: %w", err)
	}

	rows, err := meter.Int64Histogram(
		"list.query.rows",
		metric.WithDescription("Number of records returned by a list query"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create list rows histogram: %w", err)
	}

	errs, err := meter.Int64Counter(
		"list.query.errors.total",
		metric.WithDescription("Total number of failed list queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create list error counter: %w", err)
	}

	return &ListMetrics{duration: duration, rows: rows, errors: errs}, nil
}

// Record captures one list query. rows is ignored when err is non-nil.
func (m *ListMetrics) Record(ctx context.Context, resource string, elapsed time.Duration, rows int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.Bool("has_errors", err != nil),
	)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", resource)))
		return
	}
	m.rows.Record(ctx, int64(rows), attrs)
}
