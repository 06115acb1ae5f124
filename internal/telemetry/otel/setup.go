// Package otel wires the session authority into OpenTelemetry: OTLP gRPC
// trace, metric and log pipelines under one resource describing the session
// deployment, plus the session counters and the event emitter built on them.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"

	"data-portal/backend/internal/telemetry"
)

// Resource attributes describing how sessions are kept by this instance.
const (
	AttrSessionStore      = attribute.Key("portal.session.store")
	AttrSessionTTL        = attribute.Key("portal.session.ttl_seconds")
	AttrSessionInactivity = attribute.Key("portal.session.inactivity_seconds")
)

const metricInterval = 10 * time.Second

// Config selects the collector and describes the session deployment.
type Config struct {
	// Endpoint is the OTLP gRPC collector, as host:port or a URL whose path is
	// ignored. Empty keeps every signal in process.
	Endpoint string
	// Insecure forces plaintext even for https endpoints.
	Insecure    bool
	ServiceName string
	Environment string

	SessionStore     string
	SessionTTL       time.Duration
	InactivityWindow time.Duration

	// Readers are attached to the meter provider in addition to the OTLP one.
	Readers []metric.Reader
}

// Telemetry is the session authority's OTel surface.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	// Sessions counts validations, creations and purges.
	Sessions *SessionMetrics
	// Events writes session lifecycle events as log records.
	Events telemetry.EventEmitter

	shutdown []func(context.Context) error
}

// Setup builds the providers for cfg. Without an endpoint nothing is exported
// but instruments still record, so Readers observe them.
func Setup(ctx context.Context, cfg Config) (*Telemetry, error) {
	res, err := sessionResource(cfg)
	if err != nil {
		return nil, err
	}
	t := &Telemetry{}

	target, insecure, err := collectorTarget(cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, err
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	meterOpts := []metric.Option{metric.WithResource(res)}
	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, r := range cfg.Readers {
		meterOpts = append(meterOpts, metric.WithReader(r))
	}

	if target != "" {
		traceExp, err := otlptracegrpc.New(ctx, traceExporterOptions(target, insecure)...)
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExp))

		metricExp, err := otlpmetricgrpc.New(ctx, metricExporterOptions(target, insecure)...)
		if err != nil {
			_ = traceExp.Shutdown(ctx)
			return nil, fmt.Errorf("metric exporter: %w", err)
		}
		meterOpts = append(meterOpts, metric.WithReader(metric.NewPeriodicReader(metricExp, metric.WithInterval(metricInterval))))

		logExp, err := otlploggrpc.New(ctx, logExporterOptions(target, insecure)...)
		if err != nil {
			_ = traceExp.Shutdown(ctx)
			_ = metricExp.Shutdown(ctx)
			return nil, fmt.Errorf("log exporter: %w", err)
		}
		logOpts = append(logOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)))
	}

	t.TracerProvider = sdktrace.NewTracerProvider(traceOpts...)
	t.MeterProvider = metric.NewMeterProvider(meterOpts...)
	t.LoggerProvider = sdklog.NewLoggerProvider(logOpts...)
	// reverse order on shutdown: logs drain first
	t.shutdown = []func(context.Context) error{t.TracerProvider.Shutdown, t.MeterProvider.Shutdown, t.LoggerProvider.Shutdown}

	t.Sessions, err = NewSessionMetrics(t.MeterProvider.Meter(instrumentationName))
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, fmt.Errorf("session metrics: %w", err)
	}
	t.Events = NewEventEmitter(t.LoggerProvider)
	return t, nil
}

func sessionResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(cfg.ServiceName)}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentNameKey.String(cfg.Environment))
	}
	if cfg.SessionStore != "" {
		attrs = append(attrs, AttrSessionStore.String(cfg.SessionStore))
	}
	if cfg.SessionTTL > 0 {
		attrs = append(attrs, AttrSessionTTL.Int64(int64(cfg.SessionTTL/time.Second)))
	}
	if cfg.InactivityWindow > 0 {
		attrs = append(attrs, AttrSessionInactivity.Int64(int64(cfg.InactivityWindow/time.Second)))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	return res, nil
}

// collectorTarget reduces endpoint to the host:port dialled by the gRPC
// exporters. Only https endpoints use TLS, unless forceInsecure.
func collectorTarget(endpoint string, forceInsecure bool) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false, nil
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, forceInsecure || u.Scheme != "https", nil
}

func traceExporterOptions(target string, insecure bool) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

func metricExporterOptions(target string, insecure bool) []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return opts
}

func logExporterOptions(target string, insecure bool) []otlploggrpc.Option {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	return opts
}

// Install makes the tracer and meter providers global so otelgin picks them
// up, and propagates W3C trace context on incoming requests.
func (t *Telemetry) Install() {
	otel.SetTracerProvider(t.TracerProvider)
	otel.SetMeterProvider(t.MeterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
}

// Shutdown flushes and stops every provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdown) - 1; i >= 0; i-- {
		if err := t.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdown = nil
	return errors.Join(errs...)
}
