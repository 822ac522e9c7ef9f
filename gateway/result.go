package gateway

import "github.com/petal-labs/taskgate/backend"

// Result is what every handler returns: either the backend's decoded body or
// a failure. Exactly one of Value or Failure is meaningful.
type Result struct {
	Value   any
	Failure *backend.Failure
}

// Success wraps a value.
func Success(value any) Result {
	return Result{Value: value}
}

// Fail wraps a failure.
func Fail(failure *backend.Failure) Result {
	if failure == nil {
		failure = backend.NewFailure(backend.KindInternal, "unknown failure", nil)
	}
	return Result{Failure: failure}
}

// OK reports whether the result carries a value.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Payload is the caller-visible value: the backend body unchanged, or
// {"error": message}.
func (r Result) Payload() any {
	if r.Failure != nil {
		return ErrorPayload(r.Failure.Error())
	}
	return r.Value
}

// ErrorPayload builds the uniform error shape.
func ErrorPayload(message string) map[string]any {
	return map[string]any{"error": message}
}
