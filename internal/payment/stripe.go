// Package payment wraps Stripe Checkout for course purchases.
package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrNotConfigured = errors.New("payments not configured")
	ErrBadSignature  = errors.New("invalid webhook signature")
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventChargeRefunded    = "charge.refunded"
)

type CheckoutRequest struct {
	EnrollmentID  string
	PriceID       string
	CustomerEmail string
	CourseSlug    string
	SuccessURL    string
	CancelURL     string
}

type Stripe struct {
	webhookSecret string
	newSession    func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripe returns a client for secretKey. An empty key yields a client whose
// calls fail with ErrNotConfigured, so the rest of the site keeps working.
func NewStripe(secretKey, webhookSecret string) *Stripe {
	s := &Stripe{webhookSecret: webhookSecret}
	if secretKey != "" {
		sc := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
		s.newSession = sc.New
	}
	return s
}

// CreateCheckout starts a hosted checkout for one unit of the course price and
// returns the session id and redirect URL.
func (s *Stripe) CreateCheckout(req CheckoutRequest) (id, url string, err error) {
	if s.newSession == nil {
		return "", "", ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(req.PriceID),
			Quantity: stripe.Int64(1),
		}},
		ClientReferenceID: stripe.String(req.EnrollmentID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("enrollment_id", req.EnrollmentID)
	params.AddMetadata("course", req.CourseSlug)

	cs, err := s.newSession(params)
	if err != nil {
		return "", "", fmt.Errorf("stripe checkout: %w", err)
	}
	return cs.ID, cs.URL, nil
}

type CheckoutCompleted struct {
	SessionID     string
	EnrollmentID  string
	AmountCents   int64
	Currency      string
	PaymentIntent string
	Paid          bool
}

type ChargeRefunded struct {
	PaymentIntent string
}

// Event is the subset of a Stripe event the site acts on. Only the field
// matching Type is set.
type Event struct {
	ID       string
	Type     string
	Checkout *CheckoutCompleted
	Refund   *ChargeRefunded
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (s *Stripe) ParseWebhook(payload []byte, sigHeader string) (*Event, error) {
	if s.webhookSecret == "" {
		return nil, ErrNotConfigured
	}
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	switch out.Type {
	case EventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		c := &CheckoutCompleted{
			SessionID:    cs.ID,
			EnrollmentID: cs.ClientReferenceID,
			AmountCents:  cs.AmountTotal,
			Currency:     string(cs.Currency),
			Paid:         cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusUnpaid,
		}
		if c.EnrollmentID == "" {
			c.EnrollmentID = cs.Metadata["enrollment_id"]
		}
		if cs.PaymentIntent != nil {
			c.PaymentIntent = cs.PaymentIntent.ID
		}
		out.Checkout = c
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		r := &ChargeRefunded{}
		if ch.PaymentIntent != nil {
			r.PaymentIntent = ch.PaymentIntent.ID
		}
		out.Refund = r
	}
	return out, nil
}
