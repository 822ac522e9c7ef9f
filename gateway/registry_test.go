package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/petal-labs/taskgate/backend"
)

type recordingInvokeObserver struct {
	mu           sync.Mutex
	observations []InvokeObservation
}

func (o *recordingInvokeObserver) ObserveInvoke(observation InvokeObservation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observations = append(o.observations, observation)
}

func TestCatalogOrderAndNames(t *testing.T) {
	registry := newTestRegistry(t, newFakeBackend())
	want := []string{
		"create_task", "list_tasks", "update_task", "delete_task", "complete_task",
		"schedule_appointment", "check_availability", "list_appointments", "update_appointment",
		"cancel_appointment", "get_task_summary", "get_appointment_summary", "get_all_data",
		"get_task", "get_appointment", "complete_appointment", "delete_appointment",
	}
	got := registry.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	tool, ok := registry.Lookup("update_task")
	if !ok || len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "task_id" {
		t.Fatalf("Lookup(update_task) = %+v, %v", tool.InputSchema, ok)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	handler := HandleNoArgs(func(context.Context) Result { return Success(nil) })
	_, err := NewRegistry(nil,
		Tool{Definition: mcp.NewTool("ping"), Handler: handler},
		Tool{Definition: mcp.NewTool("ping"), Handler: handler},
	)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("NewRegistry() error = %v, want duplicate error", err)
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	registry := newTestRegistry(t, newFakeBackend())
	_, err := registry.Invoke(context.Background(), "not_a_tool", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Invoke() error = %v, want ErrToolNotFound", err)
	}
}

func TestInvokeArgumentErrors(t *testing.T) {
	cases := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"missing required", "create_task", map[string]any{}, "missing required argument 'title'"},
		{"unexpected", "list_tasks", map[string]any{"color": "red"}, "unexpected argument 'color'"},
		{"wrong type", "create_task", map[string]any{"title": 5}, "title"},
		{"fractional minutes", "schedule_appointment", map[string]any{
			"title": "x", "start_time": "2024-01-01T10:00:00", "duration_minutes": 30.5,
		}, "duration_minutes"},
		{"null required", "delete_task", map[string]any{"task_id": nil}, "missing required argument 'task_id'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFakeBackend()
			registry := newTestRegistry(t, fake)
			_, err := registry.Invoke(context.Background(), tc.tool, tc.args)
			var argErr *ArgumentError
			if !errors.As(err, &argErr) {
				t.Fatalf("Invoke() error = %v, want *ArgumentError", err)
			}
			if argErr.Tool != tc.tool || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Invoke() error = %q, want mention of %q", err.Error(), tc.want)
			}
			if len(fake.calls()) != 0 {
				t.Fatal("backend was called")
			}
		})
	}
}

func TestInvokeDropsNullsAndTagsRequest(t *testing.T) {
	fake := newFakeBackend()
	registry := newTestRegistry(t, fake)

	result, err := registry.Invoke(context.Background(), "list_tasks", map[string]any{
		"status":   nil,
		"priority": "high",
	})
	if err != nil || !result.OK() {
		t.Fatalf("Invoke() = %+v, %v", result, err)
	}
	call := fake.calls()[0]
	if len(call.Query) != 1 || call.Query["priority"] != "high" {
		t.Fatalf("query = %v", call.Query)
	}
	if call.RequestID == "" {
		t.Fatal("backend call carried no request id")
	}
}

func TestInvokeUpdateAllNullIsDomainRejection(t *testing.T) {
	fake := newFakeBackend()
	registry := newTestRegistry(t, fake)

	result, err := registry.Invoke(context.Background(), "update_task", map[string]any{
		"task_id": "1",
		"title":   nil,
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if mustJSON(t, result.Payload()) != `{"error":"no valid fields supplied for update"}` {
		t.Fatalf("payload = %s", mustJSON(t, result.Payload()))
	}
	if len(fake.calls()) != 0 {
		t.Fatal("backend was called")
	}
}

func TestInvokeScheduleThroughRegistry(t *testing.T) {
	fake := newFakeBackend()
	registry := newTestRegistry(t, fake)

	_, err := registry.Invoke(context.Background(), "schedule_appointment", map[string]any{
		"title":            "Sync",
		"start_time":       "2024-01-01T10:00:00Z",
		"duration_minutes": float64(30),
		"participants":     []any{map[string]any{"email": "a@example.com"}},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	body := fake.calls()[0].Body.(map[string]any)
	if body["end_time"] != "2024-01-01T10:30:00+00:00" {
		t.Fatalf("end_time = %v", body["end_time"])
	}
}

func TestInvokeRecoversPanicsAndObserves(t *testing.T) {
	observer := &recordingInvokeObserver{}
	SetObserver(observer)
	defer SetObserver(nil)

	registry, err := NewRegistry(nil,
		Tool{
			Definition: mcp.NewTool("explode"),
			Handler: func(context.Context, json.RawMessage) (Result, error) {
				panic("boom")
			},
		},
		Tool{
			Definition: mcp.NewTool("fails"),
			Handler: HandleNoArgs(func(context.Context) Result {
				return Fail(backend.Rejectf("nope"))
			}),
		},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	_, err = registry.Invoke(context.Background(), "explode", nil)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Invoke(explode) error = %v", err)
	}
	result, err := registry.Invoke(context.Background(), "fails", map[string]any{})
	if err != nil || result.OK() {
		t.Fatalf("Invoke(fails) = %+v, %v", result, err)
	}

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if len(observer.observations) != 2 {
		t.Fatalf("observations = %d, want 2", len(observer.observations))
	}
	if got := observer.observations[0]; got.Success || got.ErrorCode != ErrorCodeInternal || got.RequestID == "" {
		t.Fatalf("panic observation = %+v", got)
	}
	if got := observer.observations[1]; got.Success || got.FailureKind != backend.KindDomain {
		t.Fatalf("failure observation = %+v", got)
	}
}

func TestBindRejectsUnknownFields(t *testing.T) {
	if _, err := Bind[TaskIDParams](json.RawMessage(`{"task_id":"1","extra":true}`)); err == nil {
		t.Fatal("Bind() error = nil, want unknown field error")
	}
	params, err := Bind[UpdateTaskParams](json.RawMessage(`{"task_id":"1","tags":["a"]}`))
	if err != nil || params.TaskID != "1" || len(params.Tags) != 1 {
		t.Fatalf("Bind() = %+v, %v", params, err)
	}
}
