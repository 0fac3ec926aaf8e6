package service

import (
	"context"
	"errors"
	"strings"

	"practice-portal/internal/auth"
	"practice-portal/internal/cache"
	"practice-portal/internal/logger"
	"practice-portal/internal/metrics"
	"practice-portal/internal/model"
	"practice-portal/internal/notify"
	"practice-portal/internal/store"
)

var ContactTopics = map[string]bool{
	"general":     true,
	"appointment": true,
	"course":      true,
	"media":       true,
}

// Subscribe starts double opt-in for email. It never reveals whether the
// address was already on the list.
func (s *Service) Subscribe(ctx context.Context, email, name, source string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	token, err := auth.RandomToken(24)
	if err != nil {
		return err
	}
	sub, err := s.store.UpsertPendingSubscriber(ctx, email, strings.TrimSpace(name), source, token)
	if err != nil {
		return err
	}
	metrics.RecordLead("newsletter")
	if sub.Status == model.SubscriberActive {
		logger.WithCtx(ctx).Debug().Str("subscriber_id", sub.ID).Msg("already subscribed")
		return nil
	}
	s.send(ctx, notify.KindNewsletterConfirm, sub.Email, notify.Data{
		Name:      sub.Name,
		Link:      s.link("/newsletter/confirm?token=" + sub.Token),
		UnsubLink: s.link("/newsletter/unsubscribe?token=" + sub.Token),
	})
	return nil
}

func (s *Service) ConfirmSubscription(ctx context.Context, token string) (*SubscriberView, error) {
	sub, err := s.store.SubscriberByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubscriberActive {
		if sub, err = s.store.SetSubscriberStatus(ctx, token, model.SubscriberActive, s.now()); err != nil {
			return nil, err
		}
	}
	v := NewSubscriberView(sub)
	return &v, nil
}

func (s *Service) Unsubscribe(ctx context.Context, token string) (*SubscriberView, error) {
	sub, err := s.store.SetSubscriberStatus(ctx, token, model.SubscriberUnsubscribed, s.now())
	if err != nil {
		return nil, err
	}
	v := NewSubscriberView(sub)
	return &v, nil
}

// activeSubscriber reports whether token belongs to a confirmed subscriber.
func (s *Service) activeSubscriber(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	sub, err := s.store.SubscriberByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return sub.Status == model.SubscriberActive, nil
}

type ContactInput struct {
	Name       string
	Email      string
	Phone      string
	Topic      string
	Message    string
	SourcePage string
}

// Contact stores an enquiry and forwards it to the practice inbox.
func (s *Service) Contact(ctx context.Context, in ContactInput) error {
	if !ContactTopics[in.Topic] {
		return invalid("topic", "must be one of general, appointment, course, media")
	}
	m := &model.ContactMessage{
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:      strings.TrimSpace(in.Phone),
		Topic:      in.Topic,
		Message:    strings.TrimSpace(in.Message),
		SourcePage: in.SourcePage,
	}
	if err := s.store.CreateContactMessage(ctx, m); err != nil {
		return err
	}
	metrics.RecordLead("contact")
	s.send(ctx, notify.KindContactReceived, s.inbox, notify.Data{
		Name:  m.Name,
		Email: m.Email,
		Phone: m.Phone,
		Topic: m.Topic,
		Body:  m.Message,
		Link:  m.SourcePage,
	})
	return nil
}

func (s *Service) ListLeads(ctx context.Context, includeHandled bool) ([]LeadView, error) {
	list, err := s.store.ListContactMessages(ctx, includeHandled)
	if err != nil {
		return nil, err
	}
	out := make([]LeadView, 0, len(list))
	for i := range list {
		out = append(out, newLeadView(&list[i]))
	}
	return out, nil
}

func (s *Service) ResolveLead(ctx context.Context, id string) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	if err := s.store.ResolveContactMessage(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cache.KeyAdminStats)
	return nil
}

func (s *Service) ListSubscribers(ctx context.Context, status string) ([]SubscriberView, error) {
	switch status {
	case "", model.SubscriberPending, model.SubscriberActive, model.SubscriberUnsubscribed:
	default:
		return nil, invalid("status", "unknown status")
	}
	list, err := s.store.ListSubscribers(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]SubscriberView, 0, len(list))
	for i := range list {
		out = append(out, NewSubscriberView(&list[i]))
	}
	return out, nil
}
