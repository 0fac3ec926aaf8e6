// Package service holds the practice's use cases. REST handlers, the admin
// gRPC service and the operator CLI all go through it, so booking, status and
// enrollment rules live in one place.
package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"practice-portal/internal/cache"
	"practice-portal/internal/logger"
	"practice-portal/internal/notify"
	"practice-portal/internal/payment"
	"practice-portal/internal/store"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("sign in or subscribe to download")
	ErrTooEarly      = errors.New("appointment has not started yet")
	ErrNotConfigured = errors.New("integration not configured")
)

// ValidationError maps field names to human readable problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid " + strings.Join(keys, ", ")
}

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// IncompleteError is returned when a workbook is submitted with required
// prompts left blank.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "required prompts missing: " + strings.Join(e.Missing, ", ")
}

// Presigner hands out temporary download links.
type Presigner interface {
	PresignGet(ctx context.Context, key, filename string) (string, time.Time, error)
}

type Deps struct {
	Store    *store.Store
	Cache    *cache.Cache
	Notify   notify.Dispatcher
	Payments *payment.Stripe
	Files    Presigner

	JWTSecret          string
	SiteURL            string
	PracticeInbox      string
	PracticeProviderID string
	CalendlySigningKey string
	Location           *time.Location
	CacheTTL           time.Duration

	Now func() time.Time
}

type Service struct {
	store    *store.Store
	cache    *cache.Cache
	notify   notify.Dispatcher
	payments *payment.Stripe
	files    Presigner

	secret      string
	siteURL     string
	inbox       string
	providerID  string
	calendlyKey string
	loc         *time.Location
	ttl         time.Duration
	now         func() time.Time
}

func New(d Deps) *Service {
	s := &Service{
		store:       d.Store,
		cache:       d.Cache,
		notify:      d.Notify,
		payments:    d.Payments,
		files:       d.Files,
		secret:      d.JWTSecret,
		siteURL:     strings.TrimRight(d.SiteURL, "/"),
		inbox:       d.PracticeInbox,
		providerID:  d.PracticeProviderID,
		calendlyKey: d.CalendlySigningKey,
		loc:         d.Location,
		ttl:         d.CacheTTL,
		now:         d.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.payments == nil {
		s.payments = payment.NewStripe("", "")
	}
	return s
}

func (s *Service) Store() *store.Store { return s.store }

func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	return s.cache.Ping(ctx)
}

// send renders and dispatches a notification. Delivery problems are logged
// and never fail the caller's request.
func (s *Service) send(ctx context.Context, k notify.Kind, to string, d notify.Data) {
	if s.notify == nil || to == "" {
		return
	}
	lg := logger.WithCtx(ctx)
	m, err := notify.Build(k, to, d)
	if err != nil {
		lg.Error().Err(err).Str("kind", string(k)).Msg("build notification")
		return
	}
	if err := s.notify.Dispatch(ctx, m); err != nil {
		lg.Warn().Err(err).Str("kind", string(k)).Str("message_id", m.ID).Msg("dispatch notification")
	}
}

// validID reports whether id can name a row; anything else is simply not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Service) link(path string) string {
	return s.siteURL + path
}

// formatWhen renders a start time in the practice's timezone for emails.
func (s *Service) formatWhen(t time.Time) string {
	return t.In(s.loc).Format("Monday 2 January 2006, 3:04 PM MST")
}

func sorted(keys []string) []string {
	out := append([]string{}, keys...)
	sort.Strings(out)
	return out
}
