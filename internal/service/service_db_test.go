package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"practice-portal/internal/calendly"
	"practice-portal/internal/model"
	"practice-portal/internal/notify"
	"practice-portal/internal/payment"
	"practice-portal/internal/store"
)

func setupDB(t *testing.T) (*Service, *store.Store, *recorder) {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	st, err := store.Open(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	_, err = st.Migrate(ctx)
	require.NoError(t, err)

	rec := &recorder{}
	return New(Deps{
		Store:              st,
		Notify:             rec,
		JWTSecret:          "test-secret",
		SiteURL:            "https://practice.test",
		PracticeInbox:      "inbox@practice.test",
		CalendlySigningKey: "calendly-key",
	}), st, rec
}

func newUser(t *testing.T, st *store.Store, role string) *model.User {
	t.Helper()
	u := &model.User{
		ID:    uuid.New().String(),
		Email: fmt.Sprintf("svc-%s@test.com", uuid.New().String()[:8]),
		Name:  "Svc " + role,
		Role:  role,
	}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return u
}

func TestBookAndCancel(t *testing.T) {
	s, st, rec := setupDB(t)
	ctx := context.Background()
	client := newUser(t, st, model.RoleClient)
	provider := newUser(t, st, model.RoleProvider)
	start := time.Now().Add(500 * time.Hour).Truncate(time.Minute)

	a, err := s.Book(ctx, client.ID, BookInput{
		ProviderID: provider.ID, ServiceType: "therapy", Start: start, End: start.Add(50 * time.Minute), Mode: model.ModeTelehealth,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, a.Status)
	assert.Equal(t, client.Email, a.ClientEmail)

	_, err = s.Book(ctx, client.ID, BookInput{
		ProviderID: provider.ID, ServiceType: "therapy", Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute),
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	stranger := newUser(t, st, model.RoleClient)
	_, err = s.GetMine(ctx, stranger.ID, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Cancel(ctx, stranger.ID, a.ID, "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	c, err := s.Cancel(ctx, client.ID, a.ID, "moving house")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, c.Status)

	_, err = s.Cancel(ctx, client.ID, a.ID, "")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = s.Reschedule(ctx, client.ID, a.ID, start.Add(2*time.Hour), start.Add(3*time.Hour))
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	assert.Equal(t, []notify.Kind{notify.KindBookingConfirmed, notify.KindBookingCancelled}, rec.kinds())
}

func TestStaffSetStatus(t *testing.T) {
	s, st, _ := setupDB(t)
	ctx := context.Background()
	client := newUser(t, st, model.RoleClient)
	provider := newUser(t, st, model.RoleProvider)
	other := newUser(t, st, model.RoleProvider)
	admin := newUser(t, st, model.RoleAdmin)

	future := &model.Appointment{
		ID: uuid.New().String(), ClientID: client.ID, ProviderID: provider.ID, ServiceType: "assessment",
		StartTime: time.Now().Add(600 * time.Hour), EndTime: time.Now().Add(601 * time.Hour),
		Status: model.StatusScheduled, Mode: model.ModeInPerson,
	}
	require.NoError(t, st.CreateAppointment(ctx, future))

	_, err := s.SetStatus(ctx, Actor{ID: other.ID, Role: model.RoleProvider}, future.ID, model.StatusConfirmed)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.SetStatus(ctx, Actor{ID: provider.ID, Role: model.RoleProvider}, future.ID, model.StatusNoShow)
	assert.ErrorIs(t, err, ErrTooEarly)

	v, err := s.SetStatus(ctx, Actor{ID: admin.ID, Role: model.RoleAdmin}, future.ID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, v.Status)

	past := &model.Appointment{
		ID: uuid.New().String(), ClientID: client.ID, ProviderID: provider.ID, ServiceType: "therapy",
		StartTime: time.Now().Add(-3 * time.Hour), EndTime: time.Now().Add(-2 * time.Hour),
		Status: model.StatusConfirmed, Mode: model.ModeInPerson,
	}
	require.NoError(t, st.CreateAppointment(ctx, past))
	v, err = s.SetStatus(ctx, Actor{ID: provider.ID, Role: model.RoleProvider}, past.ID, model.StatusNoShow)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, v.Status)

	_, err = s.SetStatus(ctx, Actor{ID: provider.ID, Role: model.RoleProvider}, past.ID, model.StatusCompleted)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	mine, err := s.ListForStaff(ctx, Actor{ID: other.ID, Role: model.RoleProvider}, time.Time{}, time.Time{}, "")
	require.NoError(t, err)
	for _, a := range mine {
		assert.Equal(t, other.ID, a.ProviderID)
	}
}

func calendlyBody(event, uri, email string, start time.Time) []byte {
	return []byte(fmt.Sprintf(`{
		"event": %q,
		"created_at": "2026-03-02T10:00:00Z",
		"payload": {
			"email": %q,
			"name": "Cal Client",
			"scheduled_event": {
				"uri": %q,
				"name": "Initial consultation",
				"start_time": %q,
				"end_time": %q,
				"location": {"type": "zoom_conference", "join_url": "https://zoom.example/j/1"}
			}
		}
	}`, event, email, uri, start.Format(time.RFC3339), start.Add(30*time.Minute).Format(time.RFC3339)))
}

func TestCalendlyLifecycle(t *testing.T) {
	s, st, _ := setupDB(t)
	ctx := context.Background()
	provider := newUser(t, st, model.RoleProvider)
	s.providerID = provider.ID

	uri := "https://api.calendly.com/scheduled_events/" + uuid.New().String()
	email := fmt.Sprintf("cal-%s@test.com", uuid.New().String()[:8])
	start := time.Now().Add(700 * time.Hour).Truncate(time.Minute)
	now := time.Now()

	body := calendlyBody(calendly.EventInviteeCreated, uri, email, start)
	out, err := s.HandleCalendly(ctx, body, calendly.Header(body, "calendly-key", now))
	require.NoError(t, err)
	assert.Equal(t, CalendlyCreated, out)

	out, err = s.HandleCalendly(ctx, body, calendly.Header(body, "calendly-key", now))
	require.NoError(t, err)
	assert.Equal(t, CalendlyDuplicate, out)

	a, err := st.AppointmentByCalendlyURI(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, a.Status)
	assert.Equal(t, model.ModeTelehealth, a.Mode)
	assert.Equal(t, "consultation", a.ServiceType)

	u, err := st.UserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Empty(t, u.PasswordHash)
	_, err = s.Login(ctx, email, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// the invitee can claim the account once
	sess, err := s.Register(ctx, RegisterInput{Email: strings.ToUpper(email), Password: "longenough1", Name: "Claimed"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.User.ID)
	_, err = s.Login(ctx, email, "longenough1")
	require.NoError(t, err)
	_, err = s.Register(ctx, RegisterInput{Email: email, Password: "another-pass", Name: "Again"})
	assert.ErrorIs(t, err, ErrRegistration)

	body = calendlyBody(calendly.EventInviteeCanceled, uri, email, start)
	out, err = s.HandleCalendly(ctx, body, calendly.Header(body, "calendly-key", now))
	require.NoError(t, err)
	assert.Equal(t, CalendlyCancelled, out)

	body = calendlyBody(calendly.EventInviteeCanceled, "https://api.calendly.com/scheduled_events/unknown", email, start)
	out, err = s.HandleCalendly(ctx, body, calendly.Header(body, "calendly-key", now))
	require.NoError(t, err)
	assert.Equal(t, CalendlyIgnored, out)
}

func TestCalendlyOverlapIsAcceptedAndReported(t *testing.T) {
	s, st, rec := setupDB(t)
	ctx := context.Background()
	provider := newUser(t, st, model.RoleProvider)
	client := newUser(t, st, model.RoleClient)
	s.providerID = provider.ID

	start := time.Now().Add(800 * time.Hour).Truncate(time.Minute)
	require.NoError(t, st.CreateAppointment(ctx, &model.Appointment{
		ID: uuid.New().String(), ClientID: client.ID, ProviderID: provider.ID, ServiceType: "therapy",
		StartTime: start, EndTime: start.Add(time.Hour), Status: model.StatusScheduled, Mode: model.ModeInPerson,
	}))

	uri := "https://api.calendly.com/scheduled_events/" + uuid.New().String()
	email := fmt.Sprintf("cal-%s@test.com", uuid.New().String()[:8])
	body := calendlyBody(calendly.EventInviteeCreated, uri, email, start.Add(15*time.Minute))

	out, err := s.HandleCalendly(ctx, body, calendly.Header(body, "calendly-key", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, CalendlyConflict, out)

	_, err = st.AppointmentByCalendlyURI(ctx, uri)
	assert.ErrorIs(t, err, store.ErrNotFound)

	var notice *notify.Message
	for i := range rec.msgs {
		if rec.msgs[i].Kind == notify.KindBookingConflict {
			notice = &rec.msgs[i]
		}
	}
	require.NotNil(t, notice)
	assert.Equal(t, "inbox@practice.test", notice.To)
	assert.Contains(t, notice.Text, email)
	assert.Contains(t, notice.Text, uri)

	// a redelivery lands on the same answer instead of an error
	out, err = s.HandleCalendly(ctx, body, calendly.Header(body, "calendly-key", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, CalendlyConflict, out)
}

func testCatalog(suffix string, price int64) Catalog {
	return Catalog{
		Courses: []CatalogCourse{{
			Slug: "calm-" + suffix, Title: "Calm " + suffix, PriceCents: price, Published: true,
			Lessons: []CatalogLesson{
				{Title: "Breathing", BodyMarkdown: "# Breathe\n\nIn and out.", DurationMinutes: 10},
				{Title: "Grounding", BodyMarkdown: "Five things you can see.", DurationMinutes: 12},
			},
		}},
		Workbooks: []CatalogWorkbook{{
			Slug: "values-" + suffix, Title: "Values", Course: "calm-" + suffix,
			Prompts: []model.Prompt{
				{Key: "values", Question: "What matters?", Required: true},
				{Key: "notes", Question: "Anything else?"},
			},
		}},
	}
}

func TestCourseAndWorkbookFlow(t *testing.T) {
	s, st, rec := setupDB(t)
	ctx := context.Background()
	suffix := uuid.New().String()[:8]
	user := newUser(t, st, model.RoleClient)

	res, err := s.ImportCatalog(ctx, testCatalog(suffix, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Lessons)
	slug := "calm-" + suffix

	outline, err := s.GetCourse(ctx, slug, user.ID)
	require.NoError(t, err)
	assert.False(t, outline.Enrolled)
	assert.Empty(t, outline.Lessons[0].BodyHTML)

	_, err = s.CompleteLesson(ctx, user.ID, slug, outline.Lessons[0].ID)
	assert.ErrorIs(t, err, model.ErrNotEnrolled)
	_, err = s.GetWorkbook(ctx, user.ID, "values-"+suffix)
	assert.ErrorIs(t, err, model.ErrNotEnrolled)

	co, err := s.Checkout(ctx, user.ID, slug)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, co.Status)
	_, err = s.Checkout(ctx, user.ID, slug)
	assert.ErrorIs(t, err, model.ErrAlreadyEnrolled)
	assert.Contains(t, rec.kinds(), notify.KindEnrollmentActive)

	full, err := s.GetCourse(ctx, slug, user.ID)
	require.NoError(t, err)
	assert.True(t, full.Enrolled)
	assert.Contains(t, full.Lessons[0].BodyHTML, "<h1")

	p, err := s.CompleteLesson(ctx, user.ID, slug, full.Lessons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Percent)
	assert.Equal(t, full.Lessons[1].ID, p.NextLessonID)

	_, err = s.CompleteLesson(ctx, user.ID, slug, uuid.New().String())
	assert.ErrorIs(t, err, store.ErrNotFound)

	wb := "values-" + suffix
	_, err = s.SubmitWorkbook(ctx, user.ID, wb)
	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, []string{"values"}, inc.Missing)

	saved, err := s.AutoSave(ctx, user.ID, wb, map[string]string{"values": " family ", "notes": "n"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes", "values"}, saved.SavedKeys)
	assert.Equal(t, 100, saved.Progress.Percent)

	stale := time.Now().Add(-time.Hour)
	again, err := s.AutoSave(ctx, user.ID, wb, map[string]string{"values": "older tab"}, &stale)
	require.NoError(t, err)
	assert.Equal(t, []string{"values"}, again.Conflicts)

	// saved_at is the database's clock, not the app's
	book, err := st.WorkbookBySlug(ctx, wb)
	require.NoError(t, err)
	stored, err := st.Responses(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, saved.SavedAt.Equal(stored["values"].UpdatedAt), "saved_at %v, stored %v", saved.SavedAt, stored["values"].UpdatedAt)
	assert.True(t, again.SavedAt.Equal(stored["values"].UpdatedAt), "a rejected write reports the stored copy")

	view, err := s.GetWorkbook(ctx, user.ID, wb)
	require.NoError(t, err)
	assert.Equal(t, "family", view.Prompts[0].Answer)

	at, err := s.SubmitWorkbook(ctx, user.ID, wb)
	require.NoError(t, err)
	assert.False(t, at.IsZero())

	dash, err := s.ClientDashboard(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, dash.Courses, 1)
	require.Len(t, dash.Workbooks, 1)
	assert.NotNil(t, dash.Workbooks[0].SubmittedAt)
}

const stripeSecret = "whsec_service_test"

func stripeEvent(t *testing.T, payload string) (body []byte, header string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    stripeSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func countKind(rec *recorder, k notify.Kind) int {
	n := 0
	for _, got := range rec.kinds() {
		if got == k {
			n++
		}
	}
	return n
}

func TestStripeWebhookActivatesOnceAndRefunds(t *testing.T) {
	s, st, rec := setupDB(t)
	ctx := context.Background()
	s.payments = payment.NewStripe("", stripeSecret)
	suffix := uuid.New().String()[:8]
	user := newUser(t, st, model.RoleClient)

	_, err := s.ImportCatalog(ctx, testCatalog(suffix, 4900))
	require.NoError(t, err)
	course, err := st.CourseBySlug(ctx, "calm-"+suffix)
	require.NoError(t, err)
	e, err := st.UpsertPendingEnrollment(ctx, user.ID, course.ID)
	require.NoError(t, err)

	session := "cs_" + suffix
	intent := "pi_" + suffix
	completed := fmt.Sprintf(`{
		"id": "evt_done_%s", "object": "event", "type": "checkout.session.completed",
		"data": {"object": {
			"id": %q, "object": "checkout.session",
			"client_reference_id": %q,
			"amount_total": 4900, "currency": "usd",
			"payment_status": "paid",
			"payment_intent": %q
		}}
	}`, suffix, session, e.ID, intent)

	body, sig := stripeEvent(t, completed)
	typ, err := s.HandleStripe(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, payment.EventCheckoutCompleted, typ)

	got, err := st.EnrollmentByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, got.Status)
	assert.Equal(t, 1, countKind(rec, notify.KindEnrollmentActive))

	// Stripe redelivers; the payment is already recorded under the session id
	body, sig = stripeEvent(t, completed)
	_, err = s.HandleStripe(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, 1, countKind(rec, notify.KindEnrollmentActive))

	_, err = s.HandleStripe(ctx, body, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, payment.ErrBadSignature)

	body, sig = stripeEvent(t, fmt.Sprintf(`{"id":"evt_refund_%s","object":"event","type":"charge.refunded",
		"data":{"object":{"id":"ch_%s","object":"charge","payment_intent":%q}}}`, suffix, suffix, intent))
	typ, err = s.HandleStripe(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, payment.EventChargeRefunded, typ)

	got, err = st.EnrollmentByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentRefunded, got.Status)
}

type fakePresigner struct {
	keys []string
}

func (f *fakePresigner) PresignGet(_ context.Context, key, filename string) (string, time.Time, error) {
	f.keys = append(f.keys, key)
	return "https://files.test/" + key + "?name=" + filename, time.Now().Add(10 * time.Minute), nil
}

func TestDownloadResourceGating(t *testing.T) {
	s, st, rec := setupDB(t)
	ctx := context.Background()
	files := &fakePresigner{}
	s.files = files
	suffix := uuid.New().String()[:8]

	_, err := s.ImportCatalog(ctx, Catalog{Resources: []CatalogResource{
		{Slug: "guide-" + suffix, Title: "Sleep guide", Category: "worksheets", ObjectKey: "worksheets/guide.pdf", Gated: true},
		{Slug: "open-" + suffix, Title: "Open sheet", Category: "worksheets", ObjectKey: "worksheets/open.pdf"},
	}})
	require.NoError(t, err)
	gated := "guide-" + suffix

	_, err = s.DownloadResource(ctx, gated, "", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.DownloadResource(ctx, gated, "", "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	open, err := s.DownloadResource(ctx, "open-"+suffix, "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/worksheets/open.pdf?name=open-"+suffix+".pdf", open.URL)

	email := fmt.Sprintf("dl-%s@test.com", suffix)
	require.NoError(t, s.Subscribe(ctx, email, "Dee", "resource"))
	var token string
	for _, m := range rec.msgs {
		if m.Kind == notify.KindNewsletterConfirm && m.To == email {
			token = tokenFrom(m.Text)
		}
	}
	require.NotEmpty(t, token)

	// pending subscribers have not confirmed yet
	_, err = s.DownloadResource(ctx, gated, "", token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.ConfirmSubscription(ctx, token)
	require.NoError(t, err)
	dl, err := s.DownloadResource(ctx, gated, "", token)
	require.NoError(t, err)
	assert.Contains(t, dl.URL, "worksheets/guide.pdf")
	assert.True(t, dl.ExpiresAt.After(time.Now()))

	user := newUser(t, st, model.RoleClient)
	dl, err = s.DownloadResource(ctx, gated, user.ID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, dl.URL)

	assert.Equal(t, []string{"worksheets/open.pdf", "worksheets/guide.pdf", "worksheets/guide.pdf"}, files.keys)

	_, err = s.DownloadResource(ctx, "missing-"+suffix, user.ID, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshReuseRevokesEverything(t *testing.T) {
	s, _, _ := setupDB(t)
	ctx := context.Background()
	email := fmt.Sprintf("auth-%s@test.com", uuid.New().String()[:8])

	sess, err := s.Register(ctx, RegisterInput{Email: email, Password: "correct horse", Name: "Ann"})
	require.NoError(t, err)
	_, err = s.Register(ctx, RegisterInput{Email: email, Password: "another one", Name: "Ann"})
	assert.ErrorIs(t, err, ErrRegistration)

	rotated, err := s.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, rotated.RefreshToken)

	// replaying the first token is treated as theft
	_, err = s.Refresh(ctx, sess.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
	_, err = s.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = s.Login(ctx, email, "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, email, "correct horse")
	require.NoError(t, err)
}

func TestLeadsFlow(t *testing.T) {
	s, _, rec := setupDB(t)
	ctx := context.Background()
	email := fmt.Sprintf("Lead-%s@Test.com", uuid.New().String()[:8])

	require.NoError(t, s.Subscribe(ctx, email, "Lee", "footer"))
	require.Contains(t, rec.kinds(), notify.KindNewsletterConfirm)

	subs, err := s.ListSubscribers(ctx, model.SubscriberPending)
	require.NoError(t, err)
	found := false
	for _, sub := range subs {
		found = found || sub.Email == strings.ToLower(email)
	}
	assert.True(t, found, "email is stored lower-cased")

	var token string
	for _, m := range rec.msgs {
		if m.Kind == notify.KindNewsletterConfirm && m.To == strings.ToLower(email) {
			token = tokenFrom(m.Text)
		}
	}
	require.NotEmpty(t, token)

	v, err := s.ConfirmSubscription(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriberActive, v.Status)

	ok, err := s.activeSubscriber(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.ConfirmSubscription(ctx, "missing-token")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Contact(ctx, ContactInput{Name: "Bo", Email: "bo@test.com", Topic: "weather", Message: "long enough message"})
	assert.Contains(t, fields(t, err), "topic")
	require.NoError(t, s.Contact(ctx, ContactInput{Name: "Bo", Email: "bo@test.com", Topic: "general", Message: "long enough message"}))
}

// tokenFrom pulls the confirmation token out of the email text.
func tokenFrom(text string) string {
	_, after, ok := strings.Cut(text, "token=")
	if !ok {
		return ""
	}
	return strings.Fields(after)[0]
}

func TestSetRole(t *testing.T) {
	s, st, _ := setupDB(t)
	ctx := context.Background()
	u := newUser(t, st, model.RoleClient)

	require.NoError(t, s.SetRole(ctx, u.Email, model.RoleProvider))
	got, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleProvider, got.Role)

	var verr *ValidationError
	assert.ErrorAs(t, s.SetRole(ctx, u.Email, "owner"), &verr)
	assert.ErrorIs(t, s.SetRole(ctx, "nobody-"+u.Email, model.RoleAdmin), store.ErrNotFound)
}
