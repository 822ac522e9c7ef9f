package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/petal-labs/taskgate/backend"
)

const tasksCollection = "tasks"

// Task defaults applied by create_task.
const (
	DefaultTaskPriority = "medium"
	DefaultTaskCategory = "personal"
)

// CreateTaskParams are the create_task arguments.
type CreateTaskParams struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ListTasksParams are the list_tasks filters.
type ListTasksParams struct {
	Status   *string `json:"status,omitempty"`
	Priority *string `json:"priority,omitempty"`
	Category *string `json:"category,omitempty"`
}

// TaskUpdate is the set of task fields an update may change.
type TaskUpdate struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateTaskParams are the update_task arguments.
type UpdateTaskParams struct {
	TaskID string `json:"task_id"`
	TaskUpdate
}

// TaskIDParams identify a single task.
type TaskIDParams struct {
	TaskID string `json:"task_id"`
}

type taskPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	DueDate     string   `json:"due_date,omitempty"`
}

// CreateTask creates a task with defaults for every omitted field. due_date
// is sent only when non-empty.
func (s *Service) CreateTask(ctx context.Context, p CreateTaskParams) Result {
	if strings.TrimSpace(p.Title) == "" {
		return Fail(backend.Rejectf("title is required"))
	}
	payload := taskPayload{
		Title:       p.Title,
		Description: stringOr(p.Description, ""),
		Priority:    stringOr(p.Priority, DefaultTaskPriority),
		Category:    stringOr(p.Category, DefaultTaskCategory),
		Tags:        p.Tags,
		DueDate:     stringOr(p.DueDate, ""),
	}
	if payload.Tags == nil {
		payload.Tags = []string{}
	}
	if payload.DueDate != "" {
		if _, failure := parseField("due_date", payload.DueDate); failure != nil {
			return Fail(failure)
		}
	}
	return s.call(ctx, "error creating task", backend.Request{
		Method: http.MethodPost,
		Path:   tasksCollection + "/",
		Body:   payload,
	})
}

// ListTasks lists tasks, filtered by whichever of status/priority/category
// are supplied.
func (s *Service) ListTasks(ctx context.Context, p ListTasksParams) Result {
	return s.call(ctx, "error listing tasks", backend.Request{
		Method: http.MethodGet,
		Path:   tasksCollection + "/",
		Query: filterQuery(map[string]*string{
			"status":   p.Status,
			"priority": p.Priority,
			"category": p.Category,
		}),
	})
}

// GetTask fetches one task.
func (s *Service) GetTask(ctx context.Context, p TaskIDParams) Result {
	path, failure := entityPath(tasksCollection, "task_id", p.TaskID)
	if failure != nil {
		return Fail(failure)
	}
	return s.call(ctx, "error fetching task", backend.Request{Method: http.MethodGet, Path: path})
}

// UpdateTask sends only the supplied fields. An update with nothing to
// change is rejected without calling the backend.
func (s *Service) UpdateTask(ctx context.Context, p UpdateTaskParams) Result {
	path, failure := entityPath(tasksCollection, "task_id", p.TaskID)
	if failure != nil {
		return Fail(failure)
	}
	updates := SuppliedFields(p.TaskUpdate)
	if len(updates) == 0 {
		return Fail(errNoUpdateFields())
	}
	if p.DueDate != nil && *p.DueDate != "" {
		if _, failure := parseField("due_date", *p.DueDate); failure != nil {
			return Fail(failure)
		}
	}
	return s.call(ctx, "error updating task", backend.Request{
		Method: http.MethodPut,
		Path:   path,
		Body:   updates,
	})
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, p TaskIDParams) Result {
	path, failure := entityPath(tasksCollection, "task_id", p.TaskID)
	if failure != nil {
		return Fail(failure)
	}
	return s.call(ctx, "error deleting task", backend.Request{Method: http.MethodDelete, Path: path})
}

// CompleteTask marks a task completed.
func (s *Service) CompleteTask(ctx context.Context, p TaskIDParams) Result {
	path, failure := entityPath(tasksCollection, "task_id", p.TaskID, "complete")
	if failure != nil {
		return Fail(failure)
	}
	return s.call(ctx, "error completing task", backend.Request{Method: http.MethodPost, Path: path})
}

func errNoUpdateFields() *backend.Failure {
	return backend.Rejectf("no valid fields supplied for update")
}
