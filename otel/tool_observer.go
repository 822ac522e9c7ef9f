package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/taskgate/backend"
	"github.com/petal-labs/taskgate/gateway"
)

// Metric names.
const (
	MetricToolInvocations = "taskgate.tool.invocations"
	MetricToolLatency     = "taskgate.tool.latency"
	MetricBackendCalls    = "taskgate.backend.calls"
	MetricBackendLatency  = "taskgate.backend.latency"
)

// ToolObserver records tool invocations and backend calls into
// OpenTelemetry. It satisfies both gateway.Observer and backend.Observer.
type ToolObserver struct {
	tracer trace.Tracer

	invocations    metric.Int64Counter
	latency        metric.Float64Histogram
	backendCalls   metric.Int64Counter
	backendLatency metric.Float64Histogram
}

// NewToolObserver creates an observer bound to the provided meter/tracer. A
// nil tracer records metrics only.
func NewToolObserver(meter metric.Meter, tracer trace.Tracer) (*ToolObserver, error) {
	invocations, err := meter.Int64Counter(
		MetricToolInvocations,
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		MetricToolLatency,
		metric.WithDescription("Tool invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	backendCalls, err := meter.Int64Counter(
		MetricBackendCalls,
		metric.WithDescription("Number of backend HTTP calls"),
	)
	if err != nil {
		return nil, err
	}
	backendLatency, err := meter.Float64Histogram(
		MetricBackendLatency,
		metric.WithDescription("Backend call latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ToolObserver{
		tracer:         tracer,
		invocations:    invocations,
		latency:        latency,
		backendCalls:   backendCalls,
		backendLatency: backendLatency,
	}, nil
}

// ObserveInvoke records one tool invocation.
func (o *ToolObserver) ObserveInvoke(observation gateway.InvokeObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.ToolName),
		attribute.Bool("success", observation.Success),
	}
	if observation.FailureKind != "" {
		attrs = append(attrs, attribute.String("failure_kind", string(observation.FailureKind)))
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, seconds(observation.Duration), options)

	if o.tracer == nil {
		return
	}
	end := time.Now()
	spanAttrs := append(attrs, attribute.String("request_id", observation.RequestID))
	_, span := o.tracer.Start(ctx, "tool.invoke",
		trace.WithAttributes(spanAttrs...),
		trace.WithTimestamp(end.Add(-observation.Duration)),
	)
	switch {
	case observation.Success:
		span.SetStatus(codes.Ok, "")
	case observation.ErrorCode != "":
		span.SetStatus(codes.Error, observation.ErrorCode)
	default:
		span.SetStatus(codes.Error, string(observation.FailureKind))
	}
	span.End(trace.WithTimestamp(end))
}

// ObserveCall records one backend call.
func (o *ToolObserver) ObserveCall(observation backend.CallObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.method", observation.Method),
		attribute.String("route", observation.Route),
		attribute.Int("http.status_code", observation.StatusCode),
	}
	if observation.Failure != "" {
		attrs = append(attrs, attribute.String("failure_kind", string(observation.Failure)))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.backendCalls.Add(ctx, 1, options)
	o.backendLatency.Record(ctx, seconds(observation.Duration), options)
}

func seconds(d time.Duration) float64 {
	return float64(d) / float64(time.Second)
}

var (
	_ gateway.Observer = (*ToolObserver)(nil)
	_ backend.Observer = (*ToolObserver)(nil)
)
