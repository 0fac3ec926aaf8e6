package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"practice-portal/internal/model"
	"practice-portal/internal/notify"
	"practice-portal/internal/store"
)

const (
	defaultLookBack  = 30 * 24 * time.Hour
	defaultLookAhead = 60 * 24 * time.Hour
)

type BookInput struct {
	ProviderID  string
	ServiceType string
	Start       time.Time
	End         time.Time
	Mode        string
	Notes       string
}

func (s *Service) validateSlot(start, end time.Time) error {
	if err := model.ValidateSlot(start, end, s.now()); err != nil {
		field := "start_time"
		if errors.Is(err, model.ErrEndBeforeStart) || errors.Is(err, model.ErrSlotLength) {
			field = "end_time"
		}
		return invalid(field, err.Error())
	}
	return nil
}

// Book creates a scheduled appointment for clientID and sends the
// confirmation email.
func (s *Service) Book(ctx context.Context, clientID string, in BookInput) (*AppointmentView, error) {
	if !validID(in.ProviderID) {
		return nil, invalid("provider_id", "unknown provider")
	}
	if !model.ServiceTypes[in.ServiceType] {
		return nil, invalid("service_type", "unknown service type")
	}
	if in.Mode == "" {
		in.Mode = model.ModeInPerson
	}
	if in.Mode != model.ModeInPerson && in.Mode != model.ModeTelehealth {
		return nil, invalid("mode", "must be in_person or telehealth")
	}
	if err := s.validateSlot(in.Start, in.End); err != nil {
		return nil, err
	}

	a := &model.Appointment{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		ProviderID:  in.ProviderID,
		ServiceType: in.ServiceType,
		StartTime:   in.Start.UTC(),
		EndTime:     in.End.UTC(),
		Status:      model.StatusScheduled,
		Mode:        in.Mode,
		Notes:       in.Notes,
	}
	if err := s.store.CreateAppointment(ctx, a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("provider_id", "unknown provider")
		}
		return nil, err
	}

	full, err := s.store.GetAppointment(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	s.send(ctx, notify.KindBookingConfirmed, full.ClientEmail, s.appointmentData(full))
	v := NewAppointmentView(full)
	return &v, nil
}

func (s *Service) appointmentData(a *model.Appointment) notify.Data {
	return notify.Data{
		Name:        a.ClientName,
		When:        s.formatWhen(a.StartTime),
		ServiceType: a.ServiceType,
		Mode:        a.Mode,
		Location:    a.Location,
		Link:        s.link("/dashboard/appointments/" + a.ID),
	}
}

// ListMine returns the client's appointments in [from, to], defaulting to
// the last 30 and next 60 days.
func (s *Service) ListMine(ctx context.Context, clientID string, from, to *time.Time) ([]AppointmentView, error) {
	now := s.now()
	f, t := now.Add(-defaultLookBack), now.Add(defaultLookAhead)
	if from != nil {
		f = *from
	}
	if to != nil {
		t = *to
	}
	if t.Before(f) {
		return nil, invalid("to", "must not be before from")
	}
	list, err := s.store.ListClientAppointments(ctx, clientID, f, t)
	if err != nil {
		return nil, err
	}
	return appointmentViews(list), nil
}

// owned loads an appointment and hides it from anyone but its client.
func (s *Service) owned(ctx context.Context, clientID, id string) (*model.Appointment, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ClientID != clientID {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (s *Service) GetMine(ctx context.Context, clientID, id string) (*AppointmentView, error) {
	a, err := s.owned(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	v := NewAppointmentView(a)
	return &v, nil
}

func (s *Service) Reschedule(ctx context.Context, clientID, id string, start, end time.Time) (*AppointmentView, error) {
	a, err := s.owned(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if !a.Active() {
		return nil, model.ErrInvalidTransition
	}
	if err := s.validateSlot(start, end); err != nil {
		return nil, err
	}

	a.StartTime, a.EndTime = start.UTC(), end.UTC()
	if err := s.store.RescheduleAppointment(ctx, a); err != nil {
		// the row left scheduled/confirmed between our read and the update
		if errors.Is(err, store.ErrNotFound) {
			return nil, model.ErrInvalidTransition
		}
		return nil, err
	}
	s.send(ctx, notify.KindBookingConfirmed, a.ClientEmail, s.appointmentData(a))
	v := NewAppointmentView(a)
	return &v, nil
}

func (s *Service) Cancel(ctx context.Context, clientID, id, reason string) (*AppointmentView, error) {
	a, err := s.owned(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, a, model.StatusCancelled); err != nil {
		return nil, err
	}

	d := s.appointmentData(a)
	d.Reason = reason
	d.Link = s.link("/book")
	s.send(ctx, notify.KindBookingCancelled, a.ClientEmail, d)
	v := NewAppointmentView(a)
	return &v, nil
}

// transition moves a to status to with a compare-and-set so a concurrent
// change is reported as an invalid transition rather than overwritten.
func (s *Service) transition(ctx context.Context, a *model.Appointment, to string) error {
	if !model.CanTransition(a.Status, to) {
		return model.ErrInvalidTransition
	}
	if err := s.store.SetAppointmentStatus(ctx, a.ID, a.Status, to); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.ErrInvalidTransition
		}
		return err
	}
	a.Status = to
	a.UpdatedAt = s.now()
	return nil
}

// Actor is the signed-in provider or admin using the staff tooling.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) sees(appt *model.Appointment) bool {
	return a.Role == model.RoleAdmin || appt.ProviderID == a.ID
}

// ListForStaff lists a provider's own calendar; admins see every provider.
func (s *Service) ListForStaff(ctx context.Context, actor Actor, from, to time.Time, status string) ([]AppointmentView, error) {
	if status != "" && !validStatus(status) {
		return nil, invalid("status", "unknown status")
	}
	if from.IsZero() {
		from = s.now().Add(-defaultLookBack)
	}
	if to.IsZero() {
		to = s.now().Add(defaultLookAhead)
	}
	providerID := actor.ID
	if actor.Role == model.RoleAdmin {
		providerID = ""
	}
	list, err := s.store.ListProviderAppointments(ctx, providerID, from, to, status)
	if err != nil {
		return nil, err
	}
	return appointmentViews(list), nil
}

func validStatus(st string) bool {
	switch st {
	case model.StatusScheduled, model.StatusConfirmed, model.StatusCompleted, model.StatusCancelled, model.StatusNoShow:
		return true
	}
	return false
}

// SetStatus is the staff-side status change. Outcomes (completed, no_show)
// can only be recorded once the session has started.
func (s *Service) SetStatus(ctx context.Context, actor Actor, id, to string) (*AppointmentView, error) {
	if !validStatus(to) {
		return nil, invalid("status", "unknown status")
	}
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.sees(a) {
		return nil, store.ErrNotFound
	}
	if (to == model.StatusCompleted || to == model.StatusNoShow) && a.StartTime.After(s.now()) {
		return nil, ErrTooEarly
	}
	if err := s.transition(ctx, a, to); err != nil {
		return nil, err
	}

	if to == model.StatusCancelled {
		d := s.appointmentData(a)
		d.Reason = "cancelled by the practice"
		d.Link = s.link("/book")
		s.send(ctx, notify.KindBookingCancelled, a.ClientEmail, d)
	}
	v := NewAppointmentView(a)
	return &v, nil
}
