package booking

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/slotbook-cli/internal/api"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[string][]string{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusCompleted, models.StatusCancelled, models.StatusNoShow},
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from status.
func NextStatuses(status string) []string {
	return append([]string(nil), transitions[status]...)
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool {
	for _, v := range models.Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// AppointmentFilter narrows an appointment listing.
type AppointmentFilter struct {
	Business int64
	Staff    int64
	Service  int64
	Statuses []string
	// Search matches customer name or email.
	Search string
	// From is inclusive, To exclusive.
	From, To time.Time
	// Ordering is "start_time" or "-start_time".
	Ordering string
	Page     int
	PageSize int
}

// Query encodes the filter as API query parameters.
func (f AppointmentFilter) Query() url.Values {
	q := url.Values{}
	setID := func(key string, id int64) {
		if id != 0 {
			q.Set(key, strconv.FormatInt(id, 10))
		}
	}
	setID("business", f.Business)
	setID("staff", f.Staff)
	setID("service", f.Service)
	if len(f.Statuses) > 0 {
		q.Set("status", strings.Join(f.Statuses, ","))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if !f.From.IsZero() {
		q.Set("date_from", f.From.Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		q.Set("date_to", f.To.Format(time.RFC3339))
	}
	if f.Ordering != "" {
		q.Set("ordering", f.Ordering)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return q
}

// Validate rejects unknown statuses and inverted ranges.
func (f AppointmentFilter) Validate() error {
	for _, s := range f.Statuses {
		if !ValidStatus(s) {
			return output.ErrUsageHint("Unknown status: "+s, "Use one of: "+strings.Join(models.Statuses, ", "))
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return output.ErrUsage("Date range is empty: start must be before end")
	}
	switch f.Ordering {
	case "", "start_time", "-start_time":
	default:
		return output.ErrUsageHint("Unknown ordering: "+f.Ordering, "Use start_time or -start_time")
	}
	return nil
}

// AppointmentsService manages appointments.
type AppointmentsService struct {
	gw *api.Gateway
}

func appointmentOp(op string, id int64, mutation bool) api.OperationInfo {
	return api.OperationInfo{
		Service:      "Appointments",
		Operation:    op,
		ResourceType: "appointment",
		IsMutation:   mutation,
		ResourceID:   id,
	}
}

// List returns one page of appointments.
func (s *AppointmentsService) List(ctx context.Context, f AppointmentFilter) (*models.Page[models.Appointment], error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var page *models.Page[models.Appointment]
	err := s.gw.Run(ctx, appointmentOp("List", 0, false), func(ctx context.Context) error {
		var err error
		page, err = fetch[models.Page[models.Appointment]](ctx, s.gw, &api.Request{
			Method: http.MethodGet,
			Path:   "/appointments/",
			Query:  f.Query(),
		})
		return err
	})
	return page, err
}

// ListAll follows pagination until limit appointments are collected
// (DefaultListLimit when limit <= 0). truncated reports whether more exist.
func (s *AppointmentsService) ListAll(ctx context.Context, f AppointmentFilter, limit int) (items []models.Appointment, truncated bool, err error) {
	if err := f.Validate(); err != nil {
		return nil, false, err
	}
	f.Page = 0
	err = s.gw.Run(ctx, appointmentOp("ListAll", 0, false), func(ctx context.Context) error {
		var err error
		items, truncated, err = listAll[models.Appointment](ctx, s.gw, "/appointments/", f.Query(), limit)
		return err
	})
	return items, truncated, err
}

// Get returns one appointment.
func (s *AppointmentsService) Get(ctx context.Context, id int64) (*models.Appointment, error) {
	var a *models.Appointment
	err := s.gw.Run(ctx, appointmentOp("Get", id, false), func(ctx context.Context) error {
		var err error
		a, err = fetch[models.Appointment](ctx, s.gw, &api.Request{
			Method: http.MethodGet,
			Path:   idPath("/appointments/%s/", id),
		})
		return err
	})
	return a, err
}

// NewAppointment is the booking payload.
type NewAppointment struct {
	Business      int64     `json:"business"`
	Service       int64     `json:"service"`
	Staff         int64     `json:"staff,omitempty"`
	StartTime     time.Time `json:"start_time"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	Notes         string    `json:"notes,omitempty"`

	// IdempotencyKey dedupes retried bookings. Generated when empty.
	IdempotencyKey string `json:"-"`
}

// Create books an appointment. The same Idempotency-Key is sent on the
// gateway's replay, so a booking is never duplicated by a session refresh.
func (s *AppointmentsService) Create(ctx context.Context, in NewAppointment) (*models.Appointment, error) {
	fields := map[string][]string{}
	if in.Service == 0 {
		fields["service"] = []string{"This field is required."}
	}
	if in.StartTime.IsZero() {
		fields["start_time"] = []string{"This field is required."}
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		fields["customer_name"] = []string{"This field is required."}
	}
	if len(fields) > 0 {
		return nil, output.ErrValidation(fields)
	}

	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	header := http.Header{}
	header.Set("Idempotency-Key", key)

	var a *models.Appointment
	err := s.gw.Run(ctx, appointmentOp("Create", 0, true), func(ctx context.Context) error {
		var err error
		a, err = fetch[models.Appointment](ctx, s.gw, &api.Request{
			Method: http.MethodPost,
			Path:   "/appointments/",
			Body:   in,
			Header: header,
		})
		return err
	})
	return a, err
}

// AppointmentUpdate is a partial update; nil fields are left unchanged.
type AppointmentUpdate struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	Staff     *int64     `json:"staff,omitempty"`
	Status    *string    `json:"status,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

// Update patches an appointment.
func (s *AppointmentsService) Update(ctx context.Context, id int64, u AppointmentUpdate) (*models.Appointment, error) {
	var a *models.Appointment
	err := s.gw.Run(ctx, appointmentOp("Update", id, true), func(ctx context.Context) error {
		var err error
		a, err = s.patch(ctx, id, u)
		return err
	})
	return a, err
}

func (s *AppointmentsService) patch(ctx context.Context, id int64, u AppointmentUpdate) (*models.Appointment, error) {
	return fetch[models.Appointment](ctx, s.gw, &api.Request{
		Method: http.MethodPatch,
		Path:   idPath("/appointments/%s/", id),
		Body:   u,
	})
}

// Reschedule moves an appointment to start, optionally reassigning staff
// (staff 0 keeps the current one). Terminal appointments cannot move.
func (s *AppointmentsService) Reschedule(ctx context.Context, id int64, start time.Time, staff int64) (*models.Appointment, error) {
	if start.IsZero() {
		return nil, output.ErrUsage("A new start time is required")
	}
	var a *models.Appointment
	err := s.gw.Run(ctx, appointmentOp("Reschedule", id, true), func(ctx context.Context) error {
		current, err := fetch[models.Appointment](ctx, s.gw, &api.Request{
			Method: http.MethodGet,
			Path:   idPath("/appointments/%s/", id),
		})
		if err != nil {
			return err
		}
		if len(transitions[current.Status]) == 0 {
			return output.ErrUsage(fmt.Sprintf("Appointment %d is %s and cannot be rescheduled", id, current.Status))
		}
		u := AppointmentUpdate{StartTime: &start}
		if staff != 0 {
			u.Staff = &staff
		}
		a, err = s.patch(ctx, id, u)
		return err
	})
	return a, err
}

// SetStatus moves an appointment along its lifecycle after checking the
// transition against the current status.
func (s *AppointmentsService) SetStatus(ctx context.Context, id int64, status string) (*models.Appointment, error) {
	if !ValidStatus(status) {
		return nil, output.ErrUsageHint("Unknown status: "+status, "Use one of: "+strings.Join(models.Statuses, ", "))
	}
	var a *models.Appointment
	err := s.gw.Run(ctx, appointmentOp("SetStatus", id, true), func(ctx context.Context) error {
		current, err := fetch[models.Appointment](ctx, s.gw, &api.Request{
			Method: http.MethodGet,
			Path:   idPath("/appointments/%s/", id),
		})
		if err != nil {
			return err
		}
		if current.Status == status {
			a = current
			return nil
		}
		if !CanTransition(current.Status, status) {
			hint := "This appointment is final"
			if next := NextStatuses(current.Status); len(next) > 0 {
				hint = "Allowed: " + strings.Join(next, ", ")
			}
			return output.ErrUsageHint(
				fmt.Sprintf("Cannot change appointment %d from %s to %s", id, current.Status, status), hint)
		}
		a, err = s.patch(ctx, id, AppointmentUpdate{Status: &status})
		return err
	})
	return a, err
}

// Delete removes an appointment.
func (s *AppointmentsService) Delete(ctx context.Context, id int64) error {
	return s.gw.Run(ctx, appointmentOp("Delete", id, true), func(ctx context.Context) error {
		_, err := s.gw.Do(ctx, &api.Request{
			Method: http.MethodDelete,
			Path:   idPath("/appointments/%s/", id),
		})
		return err
	})
}
