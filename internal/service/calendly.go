package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"practice-portal/internal/calendly"
	"practice-portal/internal/logger"
	"practice-portal/internal/model"
	"practice-portal/internal/notify"
	"practice-portal/internal/store"
)

// CalendlyOutcome says what a webhook delivery did.
type CalendlyOutcome string

const (
	CalendlyCreated   CalendlyOutcome = "created"
	CalendlyDuplicate CalendlyOutcome = "duplicate"
	CalendlyCancelled CalendlyOutcome = "cancelled"
	CalendlyIgnored   CalendlyOutcome = "ignored"
	CalendlyConflict  CalendlyOutcome = "conflict"
	CalendlyUnhandled CalendlyOutcome = "unhandled"
)

// HandleCalendly verifies and applies one Calendly webhook delivery.
func (s *Service) HandleCalendly(ctx context.Context, body []byte, signature string) (CalendlyOutcome, error) {
	if s.calendlyKey == "" {
		return "", ErrNotConfigured
	}
	if err := calendly.Verify(body, signature, s.calendlyKey, s.now()); err != nil {
		return "", err
	}
	d, err := calendly.Parse(body)
	if err != nil {
		return "", invalid("body", err.Error())
	}

	lg := logger.WithCtx(ctx).With().Str("component", "calendly").Str("event", d.Event).Logger()
	switch d.Event {
	case calendly.EventInviteeCreated:
		out, err := s.calendlyCreated(ctx, d.Payload)
		if err == nil {
			lg.Info().Str("outcome", string(out)).Str("uri", d.Payload.EventURI()).Msg("calendly booking")
		}
		return out, err
	case calendly.EventInviteeCanceled:
		return s.calendlyCanceled(ctx, d.Payload)
	default:
		lg.Debug().Msg("calendly event ignored")
		return CalendlyUnhandled, nil
	}
}

func (s *Service) calendlyCreated(ctx context.Context, inv calendly.Invitee) (CalendlyOutcome, error) {
	uri := inv.EventURI()
	if uri == "" {
		return "", invalid("payload.scheduled_event.uri", "required")
	}
	if s.providerID == "" {
		return "", ErrNotConfigured
	}
	if _, err := s.store.AppointmentByCalendlyURI(ctx, uri); err == nil {
		return CalendlyDuplicate, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	client, err := s.calendlyClient(ctx, inv)
	if err != nil {
		return "", err
	}

	ev := inv.ScheduledEvent
	mode := model.ModeInPerson
	if calendly.IsRemote(ev.Location.Type) {
		mode = model.ModeTelehealth
	}
	loc := ev.Location.JoinURL
	if loc == "" {
		loc = ev.Location.Location
	}
	a := &model.Appointment{
		ID:               uuid.New().String(),
		ClientID:         client.ID,
		ProviderID:       s.providerID,
		ServiceType:      serviceTypeFor(ev.Name),
		StartTime:        ev.StartTime.UTC(),
		EndTime:          ev.EndTime.UTC(),
		Status:           model.StatusConfirmed,
		Mode:             mode,
		Location:         loc,
		Notes:            ev.Name,
		CalendlyEventURI: uri,
	}
	if err := s.store.CreateAppointment(ctx, a); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return "", err
		}
		// a concurrent delivery of the same event won the insert
		if _, lookupErr := s.store.AppointmentByCalendlyURI(ctx, uri); lookupErr == nil {
			return CalendlyDuplicate, nil
		}
		// The slot is taken locally. Calendly would retry a failure forever,
		// so accept the delivery and let the practice sort it out.
		logger.WithCtx(ctx).Warn().Str("component", "calendly").Str("uri", uri).
			Time("start", a.StartTime).Msg("calendly booking overlaps the calendar")
		s.send(ctx, notify.KindBookingConflict, s.inbox, notify.Data{
			Name:        client.Name,
			Email:       client.Email,
			ServiceType: a.ServiceType,
			When:        s.formatWhen(a.StartTime),
			Link:        uri,
		})
		return CalendlyConflict, nil
	}
	return CalendlyCreated, nil
}

// calendlyClient finds the invitee's account or creates a passwordless one.
// Such accounts cannot log in until a password is set.
func (s *Service) calendlyClient(ctx context.Context, inv calendly.Invitee) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(inv.Email))
	if email == "" {
		return nil, invalid("payload.email", "required")
	}
	u, err := s.store.UserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	u = &model.User{ID: uuid.New().String(), Email: email, Name: inv.Name, Role: model.RoleClient}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return s.store.UserByEmail(ctx, email)
		}
		return nil, err
	}
	return u, nil
}

var calendlyServiceTypes = []string{"assessment", "workshop", "therapy", "consultation"}

// serviceTypeFor guesses the service from the Calendly event name.
func serviceTypeFor(eventName string) string {
	n := strings.ToLower(eventName)
	for _, st := range calendlyServiceTypes {
		if strings.Contains(n, st) {
			return st
		}
	}
	return "consultation"
}

func (s *Service) calendlyCanceled(ctx context.Context, inv calendly.Invitee) (CalendlyOutcome, error) {
	a, err := s.store.AppointmentByCalendlyURI(ctx, inv.EventURI())
	if errors.Is(err, store.ErrNotFound) {
		return CalendlyIgnored, nil
	}
	if err != nil {
		return "", err
	}
	if !a.Active() {
		return CalendlyIgnored, nil
	}
	if err := s.transition(ctx, a, model.StatusCancelled); err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			return CalendlyIgnored, nil
		}
		return "", err
	}
	return CalendlyCancelled, nil
}
