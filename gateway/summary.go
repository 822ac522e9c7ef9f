package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/petal-labs/taskgate/backend"
)

// UnknownBucket counts records missing the grouped field.
const UnknownBucket = "unknown"

// TaskSummary is the get_task_summary result.
type TaskSummary struct {
	TotalTasks int            `json:"total_tasks"`
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
}

// AppointmentSummary is the get_appointment_summary result.
type AppointmentSummary struct {
	TotalAppointments int            `json:"total_appointments"`
	ByStatus          map[string]int `json:"by_status"`
}

// AllData is the get_all_data result.
type AllData struct {
	Tasks        any    `json:"tasks"`
	Appointments any    `json:"appointments"`
	Timestamp    string `json:"timestamp"`
}

// GetTaskSummary counts every task by status and by priority.
func (s *Service) GetTaskSummary(ctx context.Context) (result Result) {
	listed := s.ListTasks(ctx, ListTasksParams{})
	if !listed.OK() {
		return listed
	}
	defer recoverSummary(&result)

	records, err := listRecords(listed.Value, tasksCollection)
	if err != nil {
		return Fail(summaryFailure(err))
	}
	summary := TaskSummary{
		TotalTasks: len(records),
		ByStatus:   countBy(records, "status"),
		ByPriority: countBy(records, "priority"),
	}
	return Success(summary)
}

// GetAppointmentSummary counts every appointment by status.
func (s *Service) GetAppointmentSummary(ctx context.Context) (result Result) {
	listed := s.ListAppointments(ctx, ListAppointmentsParams{})
	if !listed.OK() {
		return listed
	}
	defer recoverSummary(&result)

	records, err := listRecords(listed.Value, appointmentsCollection)
	if err != nil {
		return Fail(summaryFailure(err))
	}
	summary := AppointmentSummary{
		TotalAppointments: len(records),
		ByStatus:          countBy(records, "status"),
	}
	return Success(summary)
}

// GetAllData returns every task and appointment with a UTC timestamp. Each
// part is its list result or that list's error value.
func (s *Service) GetAllData(ctx context.Context) Result {
	tasks := s.ListTasks(ctx, ListTasksParams{})
	appointments := s.ListAppointments(ctx, ListAppointmentsParams{})
	return Success(AllData{
		Tasks:        tasks.Payload(),
		Appointments: appointments.Payload(),
		Timestamp:    s.now().UTC().Format(time.RFC3339),
	})
}

// listRecords extracts the list from either {"<key>": [...]} or a bare array. A
// missing key counts as empty.
func listRecords(body any, key string) ([]any, error) {
	switch v := body.(type) {
	case []any:
		return v, nil
	case map[string]any:
		raw, ok := v[key]
		if !ok || raw == nil {
			return []any{}, nil
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%q is %T, want a list", key, raw)
		}
		return list, nil
	case nil:
		return []any{}, nil
	default:
		return nil, fmt.Errorf("unexpected list response %T", body)
	}
}

func countBy(records []any, field string) map[string]int {
	counts := map[string]int{}
	for _, record := range records {
		counts[bucket(record, field)]++
	}
	return counts
}

func bucket(record any, field string) string {
	obj, ok := record.(map[string]any)
	if !ok {
		return UnknownBucket
	}
	value, ok := obj[field]
	if !ok || value == nil {
		return UnknownBucket
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func summaryFailure(err error) *backend.Failure {
	return backend.NewFailure(backend.KindInternal, fmt.Sprintf("error building summary: %v", err), err)
}

func recoverSummary(result *Result) {
	if r := recover(); r != nil {
		*result = Fail(summaryFailure(fmt.Errorf("panic: %v", r)))
	}
}
