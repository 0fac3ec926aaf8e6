package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"practice-portal/internal/model"
)

// RecordPaymentAndActivate stores the payment and activates its enrollment in
// one transaction. A replayed webhook (same external id) is a no-op and
// returns created=false.
func (s *Store) RecordPaymentAndActivate(ctx context.Context, p *model.Payment, paymentIntent string, at time.Time) (created bool, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO payments (id, enrollment_id, user_id, amount_cents, currency, provider, external_id, payment_intent)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (external_id) DO NOTHING`,
		p.ID, p.EnrollmentID, p.UserID, p.AmountCents, p.Currency, p.Provider, p.ExternalID, paymentIntent,
	)
	if err != nil {
		return false, mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE enrollments SET status='active', enrolled_at=COALESCE(enrolled_at, $2) WHERE id=$1`,
		p.EnrollmentID, at); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// RefundByPaymentIntent marks the enrollment paid through intent as refunded.
// Payments recorded without an intent store an empty one, so an empty intent
// never matches.
func (s *Store) RefundByPaymentIntent(ctx context.Context, intent string) error {
	if intent == "" {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrollments SET status='refunded'
		 WHERE id = (SELECT enrollment_id FROM payments WHERE payment_intent = $1 LIMIT 1)`, intent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
