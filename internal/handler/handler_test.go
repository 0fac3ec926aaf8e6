package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"practice-portal/internal/auth"
	"practice-portal/internal/cache"
	"practice-portal/internal/calendly"
	"practice-portal/internal/handler"
	"practice-portal/internal/model"
	"practice-portal/internal/notify"
	"practice-portal/internal/service"
	"practice-portal/internal/store"
)

const secret = "handler-test-secret"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code      string            `json:"code"`
		Message   string            `json:"message"`
		Meta      map[string]string `json:"meta"`
		RequestID string            `json:"request_id"`
	} `json:"error"`
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, notify.Message) error { return nil }

// routes builds the API over a service with no database. Only paths that
// stop before the store are safe to call.
func routes(t *testing.T, d service.Deps) http.Handler {
	t.Helper()
	d.JWTSecret = secret
	return handler.New(service.New(d), handler.Options{JWTSecret: secret}).Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any, mods ...func(*http.Request)) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mods {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func bearer(uid, role string) func(*http.Request) {
	return func(r *http.Request) {
		tok, _ := auth.MakeToken(uid, role, secret)
		r.Header.Set("Authorization", "Bearer "+tok)
	}
}

func fromIP(ip string) func(*http.Request) {
	return func(r *http.Request) { r.RemoteAddr = ip + ":4242" }
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	h := routes(t, service.Deps{})
	rec, _ := do(t, h, http.MethodGet, "/api/v1/me", nil, func(r *http.Request) {
		r.Header.Set("X-Request-Id", "abc-123")
	})
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestAuthRequired(t *testing.T) {
	h := routes(t, service.Deps{})

	rec, env := do(t, h, http.MethodGet, "/api/v1/me/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth.unauthorized", env.Error.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/appointments", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-jwt")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth.invalid_token", env.Error.Code)

	other, _ := auth.MakeToken(uuid.NewString(), model.RoleClient, "some-other-secret")
	rec, _ = do(t, h, http.MethodGet, "/api/v1/appointments", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+other)
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccessCookieAccepted(t *testing.T) {
	h := routes(t, service.Deps{})
	tok, err := auth.MakeToken(uuid.NewString(), model.RoleClient, secret)
	require.NoError(t, err)

	// a bad query param fails before the store, proving auth passed
	rec, env := do(t, h, http.MethodGet, "/api/v1/appointments?from=yesterday", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "access_token", Value: tok})
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Meta, "from")
}

func TestRegisterValidation(t *testing.T) {
	h := routes(t, service.Deps{})

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"bad email", map[string]string{"email": "nope", "password": "longenough", "name": "A"}, "email"},
		{"short password", map[string]string{"email": "a@b.co", "password": "short", "name": "A"}, "password"},
		{"missing name", map[string]string{"email": "a@b.co", "password": "longenough"}, "name"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/api/v1/auth/register", tt.body, fromIP(fmt.Sprintf("10.0.0.%d", i+1)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation.failed", env.Error.Code)
			assert.Contains(t, env.Error.Meta, tt.field)
		})
	}

	rec, env := do(t, h, http.MethodPost, "/api/v1/auth/register", "{not json", fromIP("10.0.0.99"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request.invalid", env.Error.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	h := routes(t, service.Deps{})
	rec, env := do(t, h, http.MethodPost, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth.session_expired", env.Error.Code)
}

// expiredBearer sends a correctly signed access token that ran out a minute ago.
func expiredBearer(t *testing.T, uid string) func(*http.Request) {
	t.Helper()
	past := time.Now().Add(-time.Minute)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: uid,
		Role:   model.RoleClient,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(past.Add(-auth.AccessTTL)),
			ExpiresAt: jwt.NewNumericDate(past),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func TestExpiredAccessTokenDoesNotBlockSessionRoutes(t *testing.T) {
	h := routes(t, service.Deps{})
	expired := expiredBearer(t, uuid.NewString())

	// refresh is judged by the cookie, not the stale bearer
	rec, env := do(t, h, http.MethodPost, "/api/v1/auth/refresh", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth.session_expired", env.Error.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/auth/logout", nil, expired)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 2)
	for _, c := range cleared {
		assert.Empty(t, c.Value, c.Name)
		assert.Negative(t, c.MaxAge, c.Name)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/me", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth.invalid_token", env.Error.Code)
}

func TestContactHoneypot(t *testing.T) {
	h := routes(t, service.Deps{})
	rec, _ := do(t, h, http.MethodPost, "/api/v1/leads/contact", map[string]string{
		"name": "Bot", "email": "bot@spam.test", "topic": "general",
		"message": "buy cheap watches now", "website": "http://spam.test",
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestContactValidation(t *testing.T) {
	h := routes(t, service.Deps{})
	rec, env := do(t, h, http.MethodPost, "/api/v1/leads/contact", map[string]string{
		"name": "Ann", "email": "ann@example.com", "topic": "gossip", "message": "hi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Meta, "topic")
	assert.Contains(t, env.Error.Meta, "message")
}

func TestLeadFormsRateLimited(t *testing.T) {
	h := routes(t, service.Deps{})
	body := map[string]string{
		"name": "Bot", "email": "bot@spam.test", "topic": "general",
		"message": "buy cheap watches now", "website": "x",
	}
	codes := map[int]int{}
	for range 8 {
		rec, _ := do(t, h, http.MethodPost, "/api/v1/leads/contact", body, fromIP("203.0.113.9"))
		codes[rec.Code]++
	}
	assert.Equal(t, 5, codes[http.StatusAccepted])
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])

	rec, _ := do(t, h, http.MethodPost, "/api/v1/leads/contact", body, fromIP("203.0.113.10"))
	assert.Equal(t, http.StatusAccepted, rec.Code, "other clients keep their own bucket")
}

func TestLoginAttemptsDoNotSpendLeadBudget(t *testing.T) {
	h := routes(t, service.Deps{})
	ip := fromIP("203.0.113.21")
	codes := map[int]int{}
	for range 6 {
		rec, _ := do(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{}, ip)
		codes[rec.Code]++
	}
	assert.Equal(t, 5, codes[http.StatusBadRequest])
	assert.Equal(t, 1, codes[http.StatusTooManyRequests])

	rec, _ := do(t, h, http.MethodPost, "/api/v1/leads/contact", map[string]string{
		"name": "Bot", "email": "bot@spam.test", "topic": "general",
		"message": "buy cheap watches now", "website": "x",
	}, ip)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestAutoSaveRateLimitedPerUser(t *testing.T) {
	h := routes(t, service.Deps{})
	uid := uuid.NewString()

	limited := 0
	for range 12 {
		// empty answers never reach the store
		rec, _ := do(t, h, http.MethodPut, "/api/v1/workbooks/values/answers", map[string]any{}, bearer(uid, model.RoleClient))
		if rec.Code == http.StatusTooManyRequests {
			limited++
		} else {
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		}
	}
	assert.Equal(t, 2, limited)
}

func TestPostsFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0, time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	posts := []service.PostView{{Slug: "sleep-hygiene", Title: "Sleep hygiene", Tags: []string{"sleep"}}}
	require.NoError(t, c.SetJSON(context.Background(), cache.PrefixPosts+"list::20:0", posts, 0))

	h := routes(t, service.Deps{Cache: c, CacheTTL: time.Minute})
	rec, env := do(t, h, http.MethodGet, "/api/v1/posts?limit=abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []service.PostView
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, posts, got)
}

func TestCalendlyWebhook(t *testing.T) {
	now := time.Now()

	t.Run("not configured", func(t *testing.T) {
		h := routes(t, service.Deps{})
		rec, env := do(t, h, http.MethodPost, "/api/v1/webhooks/calendly", `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "not_configured", env.Error.Code)
	})

	h := routes(t, service.Deps{CalendlySigningKey: "ck"})

	t.Run("bad signature", func(t *testing.T) {
		body := `{"event":"invitee.created","payload":{}}`
		rec, _ := do(t, h, http.MethodPost, "/api/v1/webhooks/calendly", body, func(r *http.Request) {
			r.Header.Set(calendly.SignatureHeader, calendly.Header([]byte(body), "wrong", now))
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("other events accepted", func(t *testing.T) {
		body := `{"event":"routing_form_submission.created","payload":{}}`
		rec, env := do(t, h, http.MethodPost, "/api/v1/webhooks/calendly", body, func(r *http.Request) {
			r.Header.Set(calendly.SignatureHeader, calendly.Header([]byte(body), "ck", now))
		})
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"outcome":"unhandled"}`, string(env.Data))
	})
}

func TestStripeWebhookNotConfigured(t *testing.T) {
	h := routes(t, service.Deps{})
	rec, _ := do(t, h, http.MethodPost, "/api/v1/webhooks/stripe", `{}`, func(r *http.Request) {
		r.Header.Set("Stripe-Signature", "t=1,v1=abc")
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := routes(t, service.Deps{})
	do(t, h, http.MethodGet, "/api/v1/me", nil)

	rec, _ := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `practice_http_requests_total`)
}

// ----- database-backed flows -----

func setupDB(t *testing.T) (http.Handler, *store.Store) {
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

	svc := service.New(service.Deps{
		Store:     st,
		Notify:    nopDispatcher{},
		JWTSecret: secret,
		SiteURL:   "https://practice.test",
	})
	return handler.New(svc, handler.Options{JWTSecret: secret, GlobalLimit: 10000}).Routes(), st
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthz(t *testing.T) {
	h, _ := setupDB(t)
	rec, _ := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	h, _ := setupDB(t)
	email := fmt.Sprintf("Flow-%s@Test.com", uuid.NewString()[:8])
	ip := fromIP("198.51.100." + fmt.Sprint(time.Now().UnixNano()%200+1))

	rec, env := do(t, h, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": email, "password": "correct horse", "name": "Flow User",
	}, ip)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	refresh := cookie(rec, "refresh_token")
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, "/api/v1/auth", refresh.Path)

	var sess struct {
		User        service.UserView `json:"user"`
		AccessToken string           `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Equal(t, strings.ToLower(email), sess.User.Email)
	assert.Equal(t, model.RoleClient, sess.User.Role)

	rec, env = do(t, h, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": email, "password": "another one", "name": "Dupe",
	}, ip)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "registration failed", env.Error.Message)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": email, "password": "wrong password",
	}, ip)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// rotate, then replay the old cookie: every session dies
	rec, _ = do(t, h, http.MethodPost, "/api/v1/auth/refresh", nil, func(r *http.Request) { r.AddCookie(refresh) })
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := cookie(rec, "refresh_token")
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/auth/refresh", nil, func(r *http.Request) { r.AddCookie(refresh) })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = do(t, h, http.MethodPost, "/api/v1/auth/refresh", nil, func(r *http.Request) { r.AddCookie(rotated) })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a fresh login refreshes even while the browser still sends the old access token
	rec, _ = do(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": email, "password": "correct horse",
	}, ip)
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := cookie(rec, "refresh_token")
	require.NotNil(t, fresh)
	stale := expiredBearer(t, sess.User.ID)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/auth/refresh", nil, stale, func(r *http.Request) { r.AddCookie(fresh) })
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	latest := cookie(rec, "refresh_token")
	require.NotNil(t, latest)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/auth/logout", nil, stale, func(r *http.Request) { r.AddCookie(latest) })
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = do(t, h, http.MethodPost, "/api/v1/auth/refresh", nil, func(r *http.Request) { r.AddCookie(latest) })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAppointmentFlow(t *testing.T) {
	h, st := setupDB(t)
	ctx := context.Background()

	mk := func(role string) *model.User {
		u := &model.User{ID: uuid.NewString(), Email: fmt.Sprintf("h-%s@test.com", uuid.NewString()[:8]), Name: "H " + role, Role: role}
		require.NoError(t, st.CreateUser(ctx, u))
		return u
	}
	client, provider, stranger := mk(model.RoleClient), mk(model.RoleProvider), mk(model.RoleClient)
	start := time.Now().Add(700 * time.Hour).Truncate(time.Minute).UTC()

	rec, env := do(t, h, http.MethodPost, "/api/v1/appointments", map[string]any{
		"provider_id": provider.ID, "service_type": "consultation",
		"start_time": start, "end_time": start.Add(time.Hour), "mode": "telehealth",
	}, bearer(client.ID, model.RoleClient))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a service.AppointmentView
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, model.StatusScheduled, a.Status)

	// same provider, overlapping window
	rec, _ = do(t, h, http.MethodPost, "/api/v1/appointments", map[string]any{
		"provider_id": provider.ID, "service_type": "consultation",
		"start_time": start.Add(30 * time.Minute), "end_time": start.Add(90 * time.Minute),
	}, bearer(stranger.ID, model.RoleClient))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/appointments/"+a.ID, nil, bearer(stranger.ID, model.RoleClient))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/appointments/"+a.ID+"/cancel", map[string]string{"reason": "sick"}, bearer(client.ID, model.RoleClient))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodPost, "/api/v1/appointments/"+a.ID+"/cancel", nil, bearer(client.ID, model.RoleClient))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "appointment.invalid_transition", env.Error.Code)
}
