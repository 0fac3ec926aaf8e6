// Package reminder sends appointment reminders and no-show follow-ups on a
// fixed interval.
package reminder

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"practice-portal/internal/cache"
	"practice-portal/internal/metrics"
	"practice-portal/internal/model"
	"practice-portal/internal/notify"
)

// Store is the slice of the database the worker needs.
type Store interface {
	DueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]model.Appointment, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
	PendingNoShowFollowUps(ctx context.Context) ([]model.Appointment, error)
	MarkFollowUpSent(ctx context.Context, id string, at time.Time) error
}

// Locker keeps two workers from running a pass at the same time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

type Config struct {
	Interval time.Duration
	Lead     time.Duration
	SiteURL  string
	Location *time.Location
}

type Worker struct {
	store  Store
	lock   Locker
	notify notify.Dispatcher
	cfg    Config
	lg     zerolog.Logger
	now    func() time.Time
}

// New builds a worker. lock may be nil, in which case every pass runs.
func New(st Store, lock Locker, d notify.Dispatcher, cfg Config, lg zerolog.Logger) *Worker {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if lock == nil {
		lock = (*cache.Cache)(nil)
	}
	return &Worker{store: st, lock: lock, notify: d, cfg: cfg, lg: lg.With().Str("component", "reminder").Logger(), now: time.Now}
}

// Result counts what a single pass did.
type Result struct {
	Skipped        bool `json:"skipped"`
	Reminders      int  `json:"reminders"`
	ReminderErrors int  `json:"reminder_errors"`
	FollowUps      int  `json:"follow_ups"`
	FollowUpErrors int  `json:"follow_up_errors"`
}

// Run ticks until ctx is cancelled. A failed pass is logged and retried on
// the next tick.
func (w *Worker) Run(ctx context.Context) error {
	w.lg.Info().Dur("interval", w.cfg.Interval).Dur("lead", w.cfg.Lead).Msg("reminder worker started")
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.lg.Error().Err(err).Msg("reminder pass failed")
		}
		select {
		case <-ctx.Done():
			w.lg.Info().Msg("reminder worker stopped")
			return nil
		case <-t.C:
		}
	}
}

// RunOnce performs one pass. Rows are marked only after their email was
// handed off, so a crash mid-pass means a resend, never a lost reminder.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	token, ok, err := w.lock.TryLock(ctx, cache.KeyReminderLock, w.cfg.Interval)
	if err != nil {
		// redis trouble should not stop reminders going out
		w.lg.Warn().Err(err).Msg("reminder lock unavailable, running unlocked")
	} else if !ok {
		w.lg.Debug().Msg("another worker holds the reminder lock")
		res.Skipped = true
		return res, nil
	} else {
		defer func() {
			if err := w.lock.Unlock(context.WithoutCancel(ctx), cache.KeyReminderLock, token); err != nil {
				w.lg.Warn().Err(err).Msg("release reminder lock")
			}
		}()
	}

	now := w.now()
	due, err := w.store.DueReminders(ctx, now, w.cfg.Lead)
	if err != nil {
		return res, err
	}
	for i := range due {
		a := &due[i]
		if err := w.deliver(ctx, notify.KindAppointmentReminder, a, w.link("/dashboard/appointments/"+a.ID)); err != nil {
			res.ReminderErrors++
			metrics.RecordReminder("reminder", "failed")
			w.lg.Warn().Err(err).Str("appointment_id", a.ID).Msg("reminder not sent")
			continue
		}
		if err := w.store.MarkReminderSent(ctx, a.ID, now); err != nil {
			return res, err
		}
		res.Reminders++
		metrics.RecordReminder("reminder", "sent")
	}

	noShows, err := w.store.PendingNoShowFollowUps(ctx)
	if err != nil {
		return res, err
	}
	for i := range noShows {
		a := &noShows[i]
		if err := w.deliver(ctx, notify.KindNoShowFollowUp, a, w.link("/book")); err != nil {
			res.FollowUpErrors++
			metrics.RecordReminder("no_show_followup", "failed")
			w.lg.Warn().Err(err).Str("appointment_id", a.ID).Msg("follow-up not sent")
			continue
		}
		if err := w.store.MarkFollowUpSent(ctx, a.ID, now); err != nil {
			return res, err
		}
		res.FollowUps++
		metrics.RecordReminder("no_show_followup", "sent")
	}

	if res.Reminders+res.FollowUps+res.ReminderErrors+res.FollowUpErrors > 0 {
		w.lg.Info().
			Int("reminders", res.Reminders).
			Int("follow_ups", res.FollowUps).
			Int("errors", res.ReminderErrors+res.FollowUpErrors).
			Msg("reminder pass done")
	}
	return res, nil
}

func (w *Worker) deliver(ctx context.Context, k notify.Kind, a *model.Appointment, link string) error {
	m, err := notify.Build(k, a.ClientEmail, notify.Data{
		Name:        a.ClientName,
		When:        a.StartTime.In(w.cfg.Location).Format("Monday 2 January 2006, 3:04 PM MST"),
		ServiceType: a.ServiceType,
		Mode:        a.Mode,
		Location:    a.Location,
		Link:        link,
	})
	if err != nil {
		return err
	}
	return w.notify.Dispatch(ctx, m)
}

func (w *Worker) link(path string) string {
	return w.cfg.SiteURL + path
}
