package gateway

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/petal-labs/taskgate/backend"
)

// Backend is the subset of the backend client the handlers depend on.
type Backend interface {
	Call(ctx context.Context, req backend.Request) (any, *backend.Failure)
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Backend Backend
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Service implements the task and appointment handlers. It holds no
// per-request state.
type Service struct {
	backend Backend
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: cfg.Backend,
		now:     now,
		logger:  logger,
	}
}

// call issues one backend request, prefixing any failure with the operation.
func (s *Service) call(ctx context.Context, operation string, req backend.Request) Result {
	if s.backend == nil {
		return Fail(backend.NewFailure(backend.KindInternal, "backend client is not configured", nil).Within(operation))
	}
	value, failure := s.backend.Call(ctx, req)
	if failure != nil {
		return Fail(failure.Within(operation))
	}
	return Success(value)
}

// entityPath builds "<collection>/<id>[/<action>]", rejecting blank ids.
func entityPath(collection, field, id string, action ...string) (string, *backend.Failure) {
	clean := strings.TrimSpace(id)
	if clean == "" {
		return "", backend.Rejectf("%s is required", field)
	}
	parts := append([]string{collection, url.PathEscape(clean)}, action...)
	return strings.Join(parts, "/"), nil
}

// filterQuery keeps only non-empty filters.
func filterQuery(filters map[string]*string) url.Values {
	query := url.Values{}
	for key, value := range filters {
		if value == nil || *value == "" {
			continue
		}
		query.Set(key, *value)
	}
	return query
}

func stringOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}
