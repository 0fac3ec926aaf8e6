package service

import (
	"context"
	"errors"
	"fmt"

	"practice-portal/internal/cache"
	"practice-portal/internal/content"
	"practice-portal/internal/logger"
	"practice-portal/internal/model"
	"practice-portal/internal/notify"
	"practice-portal/internal/payment"
	"practice-portal/internal/store"
)

func summarize(c *model.Course) CourseSummary {
	return CourseSummary{
		ID:         c.ID,
		Slug:       c.Slug,
		Title:      c.Title,
		Summary:    c.Summary,
		PriceCents: c.PriceCents,
		Currency:   c.Currency,
		Free:       c.Free(),
		Lessons:    len(c.Lessons),
	}
}

func (s *Service) ListCourses(ctx context.Context) ([]CourseSummary, error) {
	return cache.Fetch(ctx, s.cache, cache.PrefixCourses+"list", s.ttl, func(ctx context.Context) ([]CourseSummary, error) {
		list, err := s.store.ListPublishedCourses(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]CourseSummary, 0, len(list))
		for i := range list {
			c, err := s.store.CourseByID(ctx, list[i].ID)
			if err != nil {
				return nil, err
			}
			out = append(out, summarize(c))
		}
		return out, nil
	})
}

func (s *Service) publishedCourse(ctx context.Context, slug string) (*model.Course, error) {
	c, err := s.store.CourseBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !c.Published {
		return nil, store.ErrNotFound
	}
	return c, nil
}

// activeEnrollment reports whether userID may read the course material.
func (s *Service) activeEnrollment(ctx context.Context, userID, courseID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	e, err := s.store.Enrollment(ctx, userID, courseID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.Status == model.EnrollmentActive, nil
}

// GetCourse returns the outline of a published course. Lesson bodies and
// progress are only filled in for enrolled users.
func (s *Service) GetCourse(ctx context.Context, slug, userID string) (*CourseView, error) {
	c, err := s.publishedCourse(ctx, slug)
	if err != nil {
		return nil, err
	}
	desc, err := content.Render(c.DescriptionMarkdown)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.activeEnrollment(ctx, userID, c.ID)
	if err != nil {
		return nil, err
	}

	v := &CourseView{
		CourseSummary:   summarize(c),
		DescriptionHTML: desc,
		Enrolled:        enrolled,
		Lessons:         make([]LessonView, 0, len(c.Lessons)),
	}
	var done map[string]bool
	if enrolled {
		if done, err = s.store.CompletedLessons(ctx, userID, c.ID); err != nil {
			return nil, err
		}
		p := model.ComputeCourseProgress(c.Lessons, done)
		v.Progress = &p
	}
	for _, l := range c.Lessons {
		lv := LessonView{ID: l.ID, Position: l.Position, Title: l.Title, DurationMinutes: l.DurationMinutes, Completed: done[l.ID]}
		if enrolled {
			if lv.BodyHTML, err = content.Render(l.BodyMarkdown); err != nil {
				return nil, err
			}
		}
		v.Lessons = append(v.Lessons, lv)
	}
	return v, nil
}

func (s *Service) enrolledCourse(ctx context.Context, userID, slug string) (*model.Course, error) {
	c, err := s.publishedCourse(ctx, slug)
	if err != nil {
		return nil, err
	}
	ok, err := s.activeEnrollment(ctx, userID, c.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrNotEnrolled
	}
	return c, nil
}

func (s *Service) CompleteLesson(ctx context.Context, userID, slug, lessonID string) (*model.CourseProgress, error) {
	c, err := s.enrolledCourse(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	found := false
	for _, l := range c.Lessons {
		if l.ID == lessonID {
			found = true
			break
		}
	}
	if !found {
		return nil, store.ErrNotFound
	}
	if err := s.store.CompleteLesson(ctx, userID, lessonID); err != nil {
		return nil, err
	}
	return s.progress(ctx, userID, c)
}

func (s *Service) CourseProgress(ctx context.Context, userID, slug string) (*model.CourseProgress, error) {
	c, err := s.enrolledCourse(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	return s.progress(ctx, userID, c)
}

func (s *Service) progress(ctx context.Context, userID string, c *model.Course) (*model.CourseProgress, error) {
	done, err := s.store.CompletedLessons(ctx, userID, c.ID)
	if err != nil {
		return nil, err
	}
	p := model.ComputeCourseProgress(c.Lessons, done)
	return &p, nil
}

// Checkout enrolls the user in a course. Free courses activate immediately;
// paid ones return a Stripe Checkout URL and activate from the webhook.
func (s *Service) Checkout(ctx context.Context, userID, slug string) (*CheckoutView, error) {
	c, err := s.publishedCourse(ctx, slug)
	if err != nil {
		return nil, err
	}
	e, err := s.store.UpsertPendingEnrollment(ctx, userID, c.ID)
	if err != nil {
		return nil, err
	}
	if e.Status == model.EnrollmentActive {
		return nil, model.ErrAlreadyEnrolled
	}

	if c.Free() {
		if err := s.store.ActivateEnrollment(ctx, e.ID, s.now()); err != nil {
			return nil, err
		}
		s.sendEnrollment(ctx, userID, c)
		return &CheckoutView{EnrollmentID: e.ID, Status: model.EnrollmentActive}, nil
	}

	if c.StripePriceID == "" {
		return nil, fmt.Errorf("course %s has no stripe price: %w", c.Slug, ErrNotConfigured)
	}
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	id, url, err := s.payments.CreateCheckout(payment.CheckoutRequest{
		EnrollmentID:  e.ID,
		PriceID:       c.StripePriceID,
		CustomerEmail: u.Email,
		CourseSlug:    c.Slug,
		SuccessURL:    s.link("/courses/" + c.Slug + "?checkout=success"),
		CancelURL:     s.link("/courses/" + c.Slug + "?checkout=cancelled"),
	})
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			return nil, ErrNotConfigured
		}
		return nil, err
	}
	if err := s.store.SetCheckoutSession(ctx, e.ID, id); err != nil {
		return nil, err
	}
	return &CheckoutView{EnrollmentID: e.ID, Status: model.EnrollmentPending, URL: url}, nil
}

func (s *Service) sendEnrollment(ctx context.Context, userID string, c *model.Course) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Str("user_id", userID).Msg("enrollment email: load user")
		return
	}
	s.send(ctx, notify.KindEnrollmentActive, u.Email, notify.Data{
		Name:        u.Name,
		CourseTitle: c.Title,
		Link:        s.link("/courses/" + c.Slug),
	})
}

// HandleStripe verifies and applies one Stripe webhook delivery. It returns
// the event type it saw.
func (s *Service) HandleStripe(ctx context.Context, payload []byte, signature string) (string, error) {
	ev, err := s.payments.ParseWebhook(payload, signature)
	if err != nil {
		return "", err
	}
	lg := logger.WithCtx(ctx).With().Str("component", "stripe").Str("event_id", ev.ID).Str("type", ev.Type).Logger()

	switch {
	case ev.Checkout != nil:
		c := ev.Checkout
		if !c.Paid {
			lg.Info().Str("session", c.SessionID).Msg("checkout completed unpaid, waiting")
			return ev.Type, nil
		}
		e, err := s.enrollmentFor(ctx, c.EnrollmentID)
		if errors.Is(err, store.ErrNotFound) {
			lg.Warn().Str("enrollment_id", c.EnrollmentID).Msg("checkout for unknown enrollment")
			return ev.Type, nil
		}
		if err != nil {
			return "", err
		}
		created, err := s.store.RecordPaymentAndActivate(ctx, &model.Payment{
			EnrollmentID: e.ID,
			UserID:       e.UserID,
			AmountCents:  c.AmountCents,
			Currency:     c.Currency,
			Provider:     "stripe",
			ExternalID:   c.SessionID,
		}, c.PaymentIntent, s.now())
		if err != nil {
			return "", err
		}
		if !created {
			lg.Info().Msg("checkout already recorded")
			return ev.Type, nil
		}
		course, err := s.store.CourseByID(ctx, e.CourseID)
		if err != nil {
			return "", err
		}
		s.sendEnrollment(ctx, e.UserID, course)
		lg.Info().Str("enrollment_id", e.ID).Int64("amount_cents", c.AmountCents).Msg("enrollment activated")

	case ev.Refund != nil:
		if err := s.store.RefundByPaymentIntent(ctx, ev.Refund.PaymentIntent); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				lg.Warn().Str("payment_intent", ev.Refund.PaymentIntent).Msg("refund for unknown payment")
				return ev.Type, nil
			}
			return "", err
		}
		lg.Info().Str("payment_intent", ev.Refund.PaymentIntent).Msg("enrollment refunded")
	}
	return ev.Type, nil
}

func (s *Service) courseProgressViews(ctx context.Context, userID string) ([]CourseProgressView, error) {
	enrollments, err := s.store.ActiveEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]CourseProgressView, 0, len(enrollments))
	for _, e := range enrollments {
		c, err := s.store.CourseByID(ctx, e.CourseID)
		if err != nil {
			return nil, err
		}
		p, err := s.progress(ctx, userID, c)
		if err != nil {
			return nil, err
		}
		out = append(out, CourseProgressView{Course: summarize(c), Progress: *p})
	}
	return out, nil
}

func (s *Service) enrollmentFor(ctx context.Context, id string) (*model.Enrollment, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	return s.store.EnrollmentByID(ctx, id)
}
