// Package otel wires taskgate observations into OpenTelemetry.
package otel

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EndpointEnv enables span and metric export when set. Its value is the
// collector base URL; the per-signal paths are appended.
const EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

const (
	tracesPath  = "/v1/traces"
	metricsPath = "/v1/metrics"
)

// Telemetry holds the providers created by Setup.
type Telemetry struct {
	Observer       *ToolObserver
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// SetupOptions configure Setup.
type SetupOptions struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint overrides OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string
	// MetricReader is attached to the meter provider when non-nil.
	MetricReader sdkmetric.Reader
	Logger       *slog.Logger
}

// Setup builds the meter and tracer providers and the observer. Spans and
// metrics are exported over OTLP/HTTP only when an endpoint is configured;
// otherwise they are recorded and dropped.
func Setup(ctx context.Context, opts SetupOptions) (*Telemetry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.ServiceVersion),
	))
	if err != nil {
		return nil, err
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if opts.MetricReader != nil {
		meterOpts = append(meterOpts, sdkmetric.WithReader(opts.MetricReader))
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = strings.TrimSpace(os.Getenv(EndpointEnv))
	}
	if endpoint != "" {
		base := strings.TrimRight(endpoint, "/")
		spanExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(base+tracesPath))
		if err != nil {
			return nil, err
		}
		metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(base+metricsPath))
		if err != nil {
			return nil, errors.Join(err, spanExporter.Shutdown(ctx))
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
		logger.Info("exporting telemetry", "endpoint", base)
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	mp := sdkmetric.NewMeterProvider(meterOpts...)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	observer, err := NewToolObserver(mp.Meter(opts.ServiceName), tp.Tracer(opts.ServiceName))
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx), mp.Shutdown(ctx))
	}
	return &Telemetry{Observer: observer, TracerProvider: tp, MeterProvider: mp}, nil
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return errors.Join(t.TracerProvider.Shutdown(ctx), t.MeterProvider.Shutdown(ctx))
}
