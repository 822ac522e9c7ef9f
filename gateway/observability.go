package gateway

import (
	"sync"
	"time"

	"github.com/petal-labs/taskgate/backend"
)

// Error codes reported in invocation observations.
const (
	ErrorCodeToolNotFound    = "TOOL_NOT_FOUND"
	ErrorCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrorCodeInternal        = "INTERNAL"
)

// InvokeObservation captures one tool invocation outcome. FailureKind is set
// when the handler returned a failure result; ErrorCode when it returned an
// error.
type InvokeObservation struct {
	ToolName    string
	RequestID   string
	Duration    time.Duration
	Success     bool
	FailureKind backend.FailureKind
	ErrorCode   string
}

// Observer receives gateway observability events.
type Observer interface {
	ObserveInvoke(observation InvokeObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveInvoke(InvokeObservation) {}

var (
	observerMu     sync.RWMutex
	activeObserver Observer = noopObserver{}
)

// SetObserver sets the process-wide invocation observer. nil restores the
// no-op observer.
func SetObserver(observer Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if observer == nil {
		activeObserver = noopObserver{}
		return
	}
	activeObserver = observer
}

func emitInvokeObservation(observation InvokeObservation) {
	observerMu.RLock()
	observer := activeObserver
	observerMu.RUnlock()
	observer.ObserveInvoke(observation)
}
