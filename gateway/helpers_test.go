package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/petal-labs/taskgate/backend"
)

type recordedRequest struct {
	Method    string
	Path      string
	Query     map[string]string
	Body      any
	RequestID string
}

type fakeResponse struct {
	value   any
	failure *backend.Failure
}

// fakeBackend records every call and answers from a per-route table.
type fakeBackend struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]fakeResponse
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{responses: map[string]fakeResponse{}}
}

func (f *fakeBackend) respond(method, path string, value any) {
	f.responses[method+" "+path] = fakeResponse{value: value}
}

func (f *fakeBackend) fail(method, path string, failure *backend.Failure) {
	f.responses[method+" "+path] = fakeResponse{failure: failure}
}

func (f *fakeBackend) Call(ctx context.Context, req backend.Request) (any, *backend.Failure) {
	rec := recordedRequest{
		Method:    req.Method,
		Path:      req.Path,
		Query:     map[string]string{},
		RequestID: backend.RequestIDFromContext(ctx),
	}
	for key := range req.Query {
		rec.Query[key] = req.Query.Get(key)
	}
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, backend.NewFailure(backend.KindInternal, "encode", err)
		}
		if err := json.Unmarshal(raw, &rec.Body); err != nil {
			return nil, backend.NewFailure(backend.KindInternal, "decode", err)
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	resp, ok := f.responses[req.Method+" "+req.Path]
	f.mu.Unlock()

	if !ok {
		return map[string]any{"ok": true}, nil
	}
	return resp.value, resp.failure
}

func (f *fakeBackend) calls() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestService(fake *fakeBackend) *Service {
	return NewService(ServiceConfig{
		Backend: fake,
		Now:     func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600)) },
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func newTestRegistry(t *testing.T, fake *fakeBackend) *Registry {
	t.Helper()
	registry, err := NewCatalogRegistry(newTestService(fake))
	if err != nil {
		t.Fatalf("NewCatalogRegistry() error = %v", err)
	}
	return registry
}

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return string(raw)
}
