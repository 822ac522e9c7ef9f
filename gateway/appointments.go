package gateway

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/petal-labs/taskgate/backend"
)

const appointmentsCollection = "appointments"

// DefaultAppointmentMinutes is the length used when neither end_time nor
// duration_minutes is given.
const DefaultAppointmentMinutes = 60

// maxAppointmentMinutes is the longest duration a time.Duration can hold.
const maxAppointmentMinutes = math.MaxInt64 / int64(time.Minute)

// Participant is one appointment attendee. The schema requires "email"; every
// other key (status, name, ...) is forwarded to the backend untouched.
type Participant map[string]any

// ScheduleAppointmentParams are the schedule_appointment arguments.
type ScheduleAppointmentParams struct {
	Title           string        `json:"title"`
	StartTime       string        `json:"start_time"`
	EndTime         *string       `json:"end_time,omitempty"`
	DurationMinutes *int          `json:"duration_minutes,omitempty"`
	Description     *string       `json:"description,omitempty"`
	Location        *string       `json:"location,omitempty"`
	Participants    []Participant `json:"participants,omitempty"`
}

// CheckAvailabilityParams are the check_availability arguments.
type CheckAvailabilityParams struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ListAppointmentsParams are the list_appointments filters.
type ListAppointmentsParams struct {
	Date   *string `json:"date,omitempty"`
	Status *string `json:"status,omitempty"`
}

// AppointmentUpdate is the set of appointment fields an update may change.
type AppointmentUpdate struct {
	Title        *string       `json:"title,omitempty"`
	Description  *string       `json:"description,omitempty"`
	StartTime    *string       `json:"start_time,omitempty"`
	EndTime      *string       `json:"end_time,omitempty"`
	Status       *string       `json:"status,omitempty"`
	Location     *string       `json:"location,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
}

// UpdateAppointmentParams are the update_appointment arguments.
type UpdateAppointmentParams struct {
	AppointmentID string `json:"appointment_id"`
	AppointmentUpdate
}

// AppointmentIDParams identify a single appointment.
type AppointmentIDParams struct {
	AppointmentID string `json:"appointment_id"`
}

type appointmentPayload struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	Location     string        `json:"location"`
	Participants []Participant `json:"participants"`
}

// ScheduleAppointment creates an appointment. Without an explicit end_time the
// end is start_time plus duration_minutes.
func (s *Service) ScheduleAppointment(ctx context.Context, p ScheduleAppointmentParams) Result {
	if strings.TrimSpace(p.Title) == "" {
		return Fail(backend.Rejectf("title is required"))
	}
	start, failure := parseField("start_time", p.StartTime)
	if failure != nil {
		return Fail(failure)
	}

	var end Timestamp
	if p.EndTime != nil && *p.EndTime != "" {
		if end, failure = parseField("end_time", *p.EndTime); failure != nil {
			return Fail(failure)
		}
	} else {
		minutes := DefaultAppointmentMinutes
		if p.DurationMinutes != nil {
			minutes = *p.DurationMinutes
		}
		if minutes < 0 {
			return Fail(backend.Rejectf("duration_minutes must not be negative, got %d", minutes))
		}
		if int64(minutes) > maxAppointmentMinutes {
			return Fail(backend.Rejectf("duration_minutes must be at most %d, got %d", maxAppointmentMinutes, minutes))
		}
		end = start.Add(time.Duration(minutes) * time.Minute)
	}

	payload := appointmentPayload{
		Title:        p.Title,
		Description:  stringOr(p.Description, ""),
		StartTime:    start.String(),
		EndTime:      end.String(),
		Location:     stringOr(p.Location, ""),
		Participants: p.Participants,
	}
	if payload.Participants == nil {
		payload.Participants = []Participant{}
	}
	return s.call(ctx, "error scheduling appointment", backend.Request{
		Method: http.MethodPost,
		Path:   appointmentsCollection + "/",
		Body:   payload,
	})
}

// CheckAvailability asks the backend for conflicts in [start_time, end_time).
// Both values are validated and forwarded as given.
func (s *Service) CheckAvailability(ctx context.Context, p CheckAvailabilityParams) Result {
	if _, failure := parseField("start_time", p.StartTime); failure != nil {
		return Fail(failure)
	}
	if _, failure := parseField("end_time", p.EndTime); failure != nil {
		return Fail(failure)
	}
	return s.call(ctx, "error checking availability", backend.Request{
		Method: http.MethodPost,
		Path:   appointmentsCollection + "/check-availability",
		Body: map[string]string{
			"start_time": p.StartTime,
			"end_time":   p.EndTime,
		},
	})
}

// ListAppointments lists appointments, optionally for one date and status.
func (s *Service) ListAppointments(ctx context.Context, p ListAppointmentsParams) Result {
	return s.call(ctx, "error listing appointments", backend.Request{
		Method: http.MethodGet,
		Path:   appointmentsCollection + "/",
		Query: filterQuery(map[string]*string{
			"date_filter": p.Date,
			"status":      p.Status,
		}),
	})
}

// GetAppointment fetches one appointment.
func (s *Service) GetAppointment(ctx context.Context, p AppointmentIDParams) Result {
	path, failure := entityPath(appointmentsCollection, "appointment_id", p.AppointmentID)
	if failure != nil {
		return Fail(failure)
	}
	return s.call(ctx, "error fetching appointment", backend.Request{Method: http.MethodGet, Path: path})
}

// UpdateAppointment sends only the supplied fields; an empty update is
// rejected without calling the backend.
func (s *Service) UpdateAppointment(ctx context.Context, p UpdateAppointmentParams) Result {
	path, failure := entityPath(appointmentsCollection, "appointment_id", p.AppointmentID)
	if failure != nil {
		return Fail(failure)
	}
	updates := SuppliedFields(p.AppointmentUpdate)
	if len(updates) == 0 {
		return Fail(errNoUpdateFields())
	}
	for field, value := range map[string]*string{"start_time": p.StartTime, "end_time": p.EndTime} {
		if value == nil || *value == "" {
			continue
		}
		if _, failure := parseField(field, *value); failure != nil {
			return Fail(failure)
		}
	}
	return s.call(ctx, "error updating appointment", backend.Request{
		Method: http.MethodPut,
		Path:   path,
		Body:   updates,
	})
}

// CancelAppointment marks an appointment cancelled.
func (s *Service) CancelAppointment(ctx context.Context, p AppointmentIDParams) Result {
	path, failure := entityPath(appointmentsCollection, "appointment_id", p.AppointmentID, "cancel")
	if failure != nil {
		return Fail(failure)
	}
	return s.call(ctx, "error cancelling appointment", backend.Request{Method: http.MethodPost, Path: path})
}

// CompleteAppointment marks an appointment completed.
func (s *Service) CompleteAppointment(ctx context.Context, p AppointmentIDParams) Result {
	path, failure := entityPath(appointmentsCollection, "appointment_id", p.AppointmentID, "complete")
	if failure != nil {
		return Fail(failure)
	}
	return s.call(ctx, "error completing appointment", backend.Request{Method: http.MethodPost, Path: path})
}

// DeleteAppointment removes an appointment.
func (s *Service) DeleteAppointment(ctx context.Context, p AppointmentIDParams) Result {
	path, failure := entityPath(appointmentsCollection, "appointment_id", p.AppointmentID)
	if failure != nil {
		return Fail(failure)
	}
	return s.call(ctx, "error deleting appointment", backend.Request{Method: http.MethodDelete, Path: path})
}
