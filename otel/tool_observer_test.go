package otel_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/petal-labs/taskgate/backend"
	"github.com/petal-labs/taskgate/gateway"
	taskotel "github.com/petal-labs/taskgate/otel"
)

func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return exporter, tp
}

func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s type = %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestToolObserverRecordsInvocations(t *testing.T) {
	reader, mp := newTestMeter()
	exporter, tp := newTestTracer()

	observer, err := taskotel.NewToolObserver(mp.Meter("test"), tp.Tracer("test"))
	if err != nil {
		t.Fatalf("NewToolObserver() error = %v", err)
	}

	observer.ObserveInvoke(gateway.InvokeObservation{
		ToolName:  "create_task",
		RequestID: "req-1",
		Duration:  120 * time.Millisecond,
		Success:   true,
	})
	observer.ObserveInvoke(gateway.InvokeObservation{
		ToolName:    "complete_task",
		RequestID:   "req-2",
		Duration:    30 * time.Millisecond,
		FailureKind: backend.KindUpstreamStatus,
	})

	rm := collectMetrics(t, reader)
	invocations := findMetric(rm, taskotel.MetricToolInvocations)
	if invocations == nil {
		t.Fatalf("%s metric not found", taskotel.MetricToolInvocations)
	}
	if got := sumValue(t, invocations); got != 2 {
		t.Fatalf("invocations = %d, want 2", got)
	}
	latency := findMetric(rm, taskotel.MetricToolLatency)
	if latency == nil {
		t.Fatalf("%s metric not found", taskotel.MetricToolLatency)
	}
	if _, ok := latency.Data.(metricdata.Histogram[float64]); !ok {
		t.Fatalf("latency type = %T, want Histogram[float64]", latency.Data)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Name != "tool.invoke" || spans[0].Status.Code != codes.Ok {
		t.Fatalf("span[0] = %s %v", spans[0].Name, spans[0].Status)
	}
	if spans[1].Status.Code != codes.Error || spans[1].Status.Description != string(backend.KindUpstreamStatus) {
		t.Fatalf("span[1] status = %v", spans[1].Status)
	}
}

func TestToolObserverRecordsBackendCalls(t *testing.T) {
	reader, mp := newTestMeter()
	observer, err := taskotel.NewToolObserver(mp.Meter("test"), nil)
	if err != nil {
		t.Fatalf("NewToolObserver() error = %v", err)
	}

	observer.ObserveCall(backend.CallObservation{Method: "GET", Route: "tasks/", StatusCode: 200, Duration: time.Millisecond})
	observer.ObserveCall(backend.CallObservation{Method: "POST", Route: "tasks/{id}/complete", Failure: backend.KindNetwork})
	observer.ObserveInvoke(gateway.InvokeObservation{ToolName: "list_tasks", Success: true})

	rm := collectMetrics(t, reader)
	calls := findMetric(rm, taskotel.MetricBackendCalls)
	if calls == nil {
		t.Fatalf("%s metric not found", taskotel.MetricBackendCalls)
	}
	if got := sumValue(t, calls); got != 2 {
		t.Fatalf("backend calls = %d, want 2", got)
	}
	if findMetric(rm, taskotel.MetricBackendLatency) == nil {
		t.Fatalf("%s metric not found", taskotel.MetricBackendLatency)
	}
}

func TestNilToolObserverIsSafe(t *testing.T) {
	var observer *taskotel.ToolObserver
	observer.ObserveInvoke(gateway.InvokeObservation{ToolName: "x"})
	observer.ObserveCall(backend.CallObservation{Method: "GET"})
}

func TestSetupWithoutEndpoint(t *testing.T) {
	t.Setenv(taskotel.EndpointEnv, "")
	reader := metric.NewManualReader()
	telemetry, err := taskotel.Setup(context.Background(), taskotel.SetupOptions{
		ServiceName:    "taskgate-test",
		ServiceVersion: "0.0.0",
		MetricReader:   reader,
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown() error = %v", err)
		}
	}()

	telemetry.Observer.ObserveInvoke(gateway.InvokeObservation{ToolName: "get_all_data", Success: true})
	rm := collectMetrics(t, reader)
	if findMetric(rm, taskotel.MetricToolInvocations) == nil {
		t.Fatal("invocation metric not recorded through Setup providers")
	}
}

func TestSetupExportsToEndpoint(t *testing.T) {
	t.Setenv(taskotel.EndpointEnv, "")
	var (
		mu    sync.Mutex
		paths = map[string]int{}
	)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.Method+" "+r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	telemetry, err := taskotel.Setup(context.Background(), taskotel.SetupOptions{
		ServiceName:    "taskgate-test",
		ServiceVersion: "0.0.0",
		Endpoint:       collector.URL + "/",
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	telemetry.Observer.ObserveInvoke(gateway.InvokeObservation{ToolName: "create_task", Success: true, Duration: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := telemetry.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if paths["POST /v1/metrics"] == 0 {
		t.Fatalf("collector requests = %v, want POST /v1/metrics", paths)
	}
	if paths["POST /v1/traces"] == 0 {
		t.Fatalf("collector requests = %v, want POST /v1/traces", paths)
	}
}
