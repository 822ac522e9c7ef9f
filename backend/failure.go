package backend

import (
	"fmt"
	"strings"
)

// FailureKind classifies why a call did not produce a usable backend body.
type FailureKind string

const (
	// KindUpstreamStatus is a non-2xx response from the backend.
	KindUpstreamStatus FailureKind = "upstream_status"
	// KindNetwork is a connection, DNS or transport level failure.
	KindNetwork FailureKind = "network"
	// KindTimeout is a call that exceeded the request timeout.
	KindTimeout FailureKind = "timeout"
	// KindDecode is a 2xx response whose body is not JSON.
	KindDecode FailureKind = "decode"
	// KindDomain is a request rejected before any network call.
	KindDomain FailureKind = "domain"
	// KindInternal is an unexpected failure inside the gateway itself.
	KindInternal FailureKind = "internal"
)

// Failure is the structured error value produced at the backend boundary and
// by handlers that reject a request before calling out.
type Failure struct {
	Kind    FailureKind
	Message string
	// Status and Body are set for KindUpstreamStatus.
	Status int
	Body   string
	Cause  error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	msg := strings.TrimSpace(f.Message)
	if msg == "" && f.Cause != nil {
		msg = f.Cause.Error()
	}
	if msg == "" {
		msg = string(f.Kind)
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Cause
}

// Within returns a copy of f whose message is prefixed with the operation
// that failed, e.g. "error creating task: backend returned 404 ...".
func (f *Failure) Within(operation string) *Failure {
	if f == nil {
		return nil
	}
	out := *f
	op := strings.TrimSpace(operation)
	if op != "" {
		out.Message = op + ": " + f.Error()
	}
	return &out
}

// NewFailure builds a Failure of the given kind.
func NewFailure(kind FailureKind, message string, cause error) *Failure {
	return &Failure{
		Kind:    kind,
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Rejectf builds a domain rejection.
func Rejectf(format string, args ...any) *Failure {
	return NewFailure(KindDomain, fmt.Sprintf(format, args...), nil)
}
