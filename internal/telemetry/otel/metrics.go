package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SessionMetrics records session authority counters on an OTel meter.
type SessionMetrics struct {
	validations metric.Int64Counter
	created     metric.Int64Counter
	purged      metric.Int64Counter
}

// NewSessionMetrics registers the session counters on meter.
func NewSessionMetrics(meter metric.Meter) (*SessionMetrics, error) {
	validations, err := meter.Int64Counter("portal.session.validations",
		metric.WithDescription("Session validations by outcome reason"))
	if err != nil {
		return nil, err
	}
	created, err := meter.Int64Counter("portal.session.created",
		metric.WithDescription("Sessions created at login"))
	if err != nil {
		return nil, err
	}
	purged, err := meter.Int64Counter("portal.session.purged",
		metric.WithDescription("Stale sessions removed by the janitor"))
	if err != nil {
		return nil, err
	}
	return &SessionMetrics{validations: validations, created: created, purged: purged}, nil
}

// Validation counts one validation outcome.
func (m *SessionMetrics) Validation(ctx context.Context, reason string) {
	m.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Created counts one created session.
func (m *SessionMetrics) Created(ctx context.Context) {
	m.created.Add(ctx, 1)
}

// Purged counts n removed sessions.
func (m *SessionMetrics) Purged(ctx context.Context, n int64) {
	if n > 0 {
		m.purged.Add(ctx, n)
	}
}
