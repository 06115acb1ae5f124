package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"data-portal/backend/internal/telemetry"
	"data-portal/backend/internal/telemetry/domain"
)

const instrumentationName = "portal.session"

// recordEmitter is the part of otellog.Logger used by the emitter.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(instrumentationName)}
}

// NewEventEmitterWithLogger returns an emitter writing to logger directly.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	if logger == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.SessionEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the session event to an OTel log record with the JSON event as body.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.SessionEvent) error {
	if event == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	rec := otellog.Record{}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.BytesValue(body))
	rec.SetSeverity(severityFor(event.EventType))
	rec.AddAttributes(otellog.String("event_type", string(event.EventType)))
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.SessionHash != "" {
		rec.AddAttributes(otellog.String("session_hash", event.SessionHash))
	}
	if event.Reason != "" {
		rec.AddAttributes(otellog.String("reason", event.Reason))
	}
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func severityFor(t domain.EventType) otellog.Severity {
	switch t {
	case domain.EventLoginFailed, domain.EventSessionInvalidated:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
