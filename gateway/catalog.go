package gateway

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Catalog tool names.
const (
	ToolCreateTask            = "create_task"
	ToolListTasks             = "list_tasks"
	ToolUpdateTask            = "update_task"
	ToolDeleteTask            = "delete_task"
	ToolCompleteTask          = "complete_task"
	ToolScheduleAppointment   = "schedule_appointment"
	ToolCheckAvailability     = "check_availability"
	ToolListAppointments      = "list_appointments"
	ToolUpdateAppointment     = "update_appointment"
	ToolCancelAppointment     = "cancel_appointment"
	ToolGetTaskSummary        = "get_task_summary"
	ToolGetAppointmentSummary = "get_appointment_summary"
	ToolGetAllData            = "get_all_data"
	ToolGetTask               = "get_task"
	ToolGetAppointment        = "get_appointment"
	ToolCompleteAppointment   = "complete_appointment"
	ToolDeleteAppointment     = "delete_appointment"
)

var participantItems = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"email":  map[string]any{"type": "string"},
		"status": map[string]any{"type": "string"},
	},
	"required": []any{"email"},
}

var stringItems = map[string]any{"type": "string"}

// Catalog returns every tool backed by svc, in listing order.
func Catalog(svc *Service) []Tool {
	return []Tool{
		{
			Definition: mcp.NewTool(ToolCreateTask,
				mcp.WithDescription("Create a new task"),
				mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
				mcp.WithString("description", mcp.Description("Task description")),
				mcp.WithString("due_date", mcp.Description("Due date (ISO-8601)")),
				mcp.WithString("priority", mcp.Description("low, medium, high or urgent"), mcp.DefaultString(DefaultTaskPriority)),
				mcp.WithString("category", mcp.Description("Task category"), mcp.DefaultString(DefaultTaskCategory)),
				mcp.WithArray("tags", mcp.Description("Task tags"), mcp.Items(stringItems)),
			),
			Handler: Handle(ToolCreateTask, svc.CreateTask),
		},
		{
			Definition: mcp.NewTool(ToolListTasks,
				mcp.WithDescription("List tasks, optionally filtered by status, priority or category"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("status", mcp.Description("pending, in_progress, completed or cancelled")),
				mcp.WithString("priority", mcp.Description("low, medium, high or urgent")),
				mcp.WithString("category", mcp.Description("Task category")),
			),
			Handler: Handle(ToolListTasks, svc.ListTasks),
		},
		{
			Definition: mcp.NewTool(ToolUpdateTask,
				mcp.WithDescription("Update the supplied fields of a task"),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
				mcp.WithString("title", mcp.Description("New title")),
				mcp.WithString("description", mcp.Description("New description")),
				mcp.WithString("status", mcp.Description("pending, in_progress, completed or cancelled")),
				mcp.WithString("priority", mcp.Description("low, medium, high or urgent")),
				mcp.WithString("due_date", mcp.Description("New due date (ISO-8601)")),
				mcp.WithString("category", mcp.Description("New category")),
				mcp.WithArray("tags", mcp.Description("Replacement tags"), mcp.Items(stringItems)),
			),
			Handler: Handle(ToolUpdateTask, svc.UpdateTask),
		},
		{
			Definition: mcp.NewTool(ToolDeleteTask,
				mcp.WithDescription("Delete a task"),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
			),
			Handler: Handle(ToolDeleteTask, svc.DeleteTask),
		},
		{
			Definition: mcp.NewTool(ToolCompleteTask,
				mcp.WithDescription("Mark a task as completed"),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
			),
			Handler: Handle(ToolCompleteTask, svc.CompleteTask),
		},
		{
			Definition: mcp.NewTool(ToolScheduleAppointment,
				mcp.WithDescription("Schedule an appointment. The end is start_time plus duration_minutes unless end_time is given"),
				mcp.WithString("title", mcp.Required(), mcp.Description("Appointment title")),
				mcp.WithString("start_time", mcp.Required(), mcp.Description("Start time (ISO-8601)")),
				mcp.WithString("end_time", mcp.Description("End time (ISO-8601)")),
				mcp.WithNumber("duration_minutes", mcp.Description("Length in minutes"), mcp.DefaultNumber(DefaultAppointmentMinutes)),
				mcp.WithString("description", mcp.Description("Appointment description")),
				mcp.WithString("location", mcp.Description("Appointment location")),
				mcp.WithArray("participants", mcp.Description("Participant objects; each needs an email, other keys such as status are passed through"), mcp.Items(participantItems)),
			),
			Handler: Handle(ToolScheduleAppointment, svc.ScheduleAppointment),
		},
		{
			Definition: mcp.NewTool(ToolCheckAvailability,
				mcp.WithDescription("Check for appointments overlapping a time range"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("start_time", mcp.Required(), mcp.Description("Range start (ISO-8601)")),
				mcp.WithString("end_time", mcp.Required(), mcp.Description("Range end (ISO-8601)")),
			),
			Handler: Handle(ToolCheckAvailability, svc.CheckAvailability),
		},
		{
			Definition: mcp.NewTool(ToolListAppointments,
				mcp.WithDescription("List appointments, optionally for one date and status"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("date", mcp.Description("Date (YYYY-MM-DD)")),
				mcp.WithString("status", mcp.Description("scheduled, completed, cancelled or missed")),
			),
			Handler: Handle(ToolListAppointments, svc.ListAppointments),
		},
		{
			Definition: mcp.NewTool(ToolUpdateAppointment,
				mcp.WithDescription("Update the supplied fields of an appointment"),
				mcp.WithString("appointment_id", mcp.Required(), mcp.Description("Appointment ID")),
				mcp.WithString("title", mcp.Description("New title")),
				mcp.WithString("description", mcp.Description("New description")),
				mcp.WithString("start_time", mcp.Description("New start time (ISO-8601)")),
				mcp.WithString("end_time", mcp.Description("New end time (ISO-8601)")),
				mcp.WithString("status", mcp.Description("scheduled, completed, cancelled or missed")),
				mcp.WithString("location", mcp.Description("New location")),
				mcp.WithArray("participants", mcp.Description("Replacement participants"), mcp.Items(participantItems)),
			),
			Handler: Handle(ToolUpdateAppointment, svc.UpdateAppointment),
		},
		{
			Definition: mcp.NewTool(ToolCancelAppointment,
				mcp.WithDescription("Cancel an appointment"),
				mcp.WithString("appointment_id", mcp.Required(), mcp.Description("Appointment ID")),
			),
			Handler: Handle(ToolCancelAppointment, svc.CancelAppointment),
		},
		{
			Definition: mcp.NewTool(ToolGetTaskSummary,
				mcp.WithDescription("Count tasks by status and priority"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: HandleNoArgs(svc.GetTaskSummary),
		},
		{
			Definition: mcp.NewTool(ToolGetAppointmentSummary,
				mcp.WithDescription("Count appointments by status"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: HandleNoArgs(svc.GetAppointmentSummary),
		},
		{
			Definition: mcp.NewTool(ToolGetAllData,
				mcp.WithDescription("Return every task and appointment"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: HandleNoArgs(svc.GetAllData),
		},
		{
			Definition: mcp.NewTool(ToolGetTask,
				mcp.WithDescription("Fetch one task"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
			),
			Handler: Handle(ToolGetTask, svc.GetTask),
		},
		{
			Definition: mcp.NewTool(ToolGetAppointment,
				mcp.WithDescription("Fetch one appointment"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("appointment_id", mcp.Required(), mcp.Description("Appointment ID")),
			),
			Handler: Handle(ToolGetAppointment, svc.GetAppointment),
		},
		{
			Definition: mcp.NewTool(ToolCompleteAppointment,
				mcp.WithDescription("Mark an appointment as completed"),
				mcp.WithString("appointment_id", mcp.Required(), mcp.Description("Appointment ID")),
			),
			Handler: Handle(ToolCompleteAppointment, svc.CompleteAppointment),
		},
		{
			Definition: mcp.NewTool(ToolDeleteAppointment,
				mcp.WithDescription("Delete an appointment"),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithString("appointment_id", mcp.Required(), mcp.Description("Appointment ID")),
			),
			Handler: Handle(ToolDeleteAppointment, svc.DeleteAppointment),
		},
	}
}

// NewCatalogRegistry builds the registry for the full catalog.
func NewCatalogRegistry(svc *Service) (*Registry, error) {
	return NewRegistry(svc.logger, Catalog(svc)...)
}
