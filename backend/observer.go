package backend

import (
	"context"
	"strings"
	"time"
)

// CallObservation captures one backend request outcome. Route is the request
// path with entity ids replaced by "{id}"; Failure is empty on success.
type CallObservation struct {
	Method     string
	Route      string
	StatusCode int
	Duration   time.Duration
	Failure    FailureKind
}

// Observer receives backend call observations.
type Observer interface {
	ObserveCall(observation CallObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveCall(CallObservation) {}

type requestIDKey struct{}

// WithRequestID returns a context carrying the invocation request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RouteTemplate collapses entity ids in a backend path so observations keep a
// bounded cardinality: "tasks/42/complete" becomes "tasks/{id}/complete".
func RouteTemplate(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return strings.TrimLeft(path, "/")
	}
	switch segments[1] {
	case "", "check-availability":
	default:
		segments[1] = "{id}"
	}
	return strings.Join(segments, "/")
}
