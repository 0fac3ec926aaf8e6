package notify

import (
	"context"
	"time"

	"practice-portal/internal/logger"
	"practice-portal/internal/metrics"
)

// Direct sends synchronously, retrying temporary failures.
type Direct struct {
	sender   Sender
	attempts int
	backoff  time.Duration
}

func NewDirect(s Sender) *Direct {
	return &Direct{sender: s, attempts: 3, backoff: 200 * time.Millisecond}
}

func (d *Direct) Dispatch(ctx context.Context, m Message) error {
	err := deliver(ctx, d.sender, m, d.attempts, d.backoff)
	if err != nil {
		logger.WithCtx(ctx).Error().Err(err).Str("kind", string(m.Kind)).Msg("email dispatch failed")
	}
	return err
}

// deliver calls s up to attempts times, doubling the wait between tries.
// Permanent errors stop immediately.
func deliver(ctx context.Context, s Sender, m Message, attempts int, backoff time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = s.Send(ctx, m); err == nil {
			metrics.RecordEmailSent(string(m.Kind))
			return nil
		}
		if IsPermanent(err) || i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			metrics.RecordEmailFailed(string(m.Kind), "canceled")
			return ctx.Err()
		case <-time.After(backoff << i):
		}
	}
	metrics.RecordEmailFailed(string(m.Kind), failureReason(err))
	return err
}

// Async runs dispatches in the background so request handlers never wait on
// mail delivery. Failures are only logged.
type Async struct {
	next Dispatcher
}

func NewAsync(next Dispatcher) *Async { return &Async{next: next} }

func (a *Async) Dispatch(ctx context.Context, m Message) error {
	rid := logger.RequestID(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = a.next.Dispatch(logger.WithRequestID(ctx, rid), m)
	}()
	return nil
}
