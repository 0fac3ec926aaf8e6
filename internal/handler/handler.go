// Package handler is the public and client REST API.
package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"practice-portal/internal/calendly"
	"practice-portal/internal/metrics"
	"practice-portal/internal/middleware"
	"practice-portal/internal/model"
	"practice-portal/internal/payment"
	"practice-portal/internal/response"
	"practice-portal/internal/service"
	"practice-portal/internal/store"
)

const (
	refreshCookie = "refresh_token"
	refreshPath   = "/api/v1/auth"
	maxBody       = 1 << 20
)

type Options struct {
	JWTSecret    string
	CORSOrigins  []string
	CookieSecure bool

	// requests per minute per IP across the whole API; 0 means 300
	GlobalLimit int
}

type Handler struct {
	svc      *service.Service
	opts     Options
	authForms *middleware.RateLimiter
	leadForms *middleware.RateLimiter
	autosave  *middleware.RateLimiter
}

func New(svc *service.Service, opts Options) *Handler {
	if opts.GlobalLimit <= 0 {
		opts.GlobalLimit = 300
	}
	return &Handler{
		svc:       svc,
		opts:      opts,
		authForms: middleware.NewRateLimiter(1, 5),
		leadForms: middleware.NewRateLimiter(1, 5),
		autosave:  middleware.NewRateLimiter(2, 10),
	}
}

// Routes builds the router. /metrics and /healthz sit outside /api/v1 and
// skip the rate limiters.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(h.opts.GlobalLimit, time.Minute))
		r.Use(middleware.Authenticate(h.opts.JWTSecret))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.LimitByIP(h.authForms)).Post("/register", h.Register)
			r.With(middleware.LimitByIP(h.authForms)).Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", h.StripeWebhook)
			r.Post("/calendly", h.CalendlyWebhook)
		})

		r.Get("/posts", h.ListPosts)
		r.Get("/posts/{slug}", h.GetPost)
		r.Get("/resources", h.ListResources)
		r.Get("/resources/{slug}/download", h.DownloadResource)
		r.Get("/courses", h.ListCourses)
		r.Get("/courses/{slug}", h.GetCourse)

		r.Route("/leads", func(r chi.Router) {
			r.Use(middleware.LimitByIP(h.leadForms))
			r.Post("/subscribe", h.Subscribe)
			r.Post("/confirm", h.ConfirmSubscription)
			r.Post("/unsubscribe", h.Unsubscribe)
			r.Post("/contact", h.Contact)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/me", h.Me)
			r.Patch("/me", h.UpdateMe)
			r.Get("/me/dashboard", h.Dashboard)

			r.Route("/appointments", func(r chi.Router) {
				r.Get("/", h.ListAppointments)
				r.Post("/", h.BookAppointment)
				r.Get("/{id}", h.GetAppointment)
				r.Put("/{id}", h.RescheduleAppointment)
				r.Post("/{id}/cancel", h.CancelAppointment)
			})

			r.Post("/courses/{slug}/checkout", h.Checkout)
			r.Get("/courses/{slug}/progress", h.CourseProgress)
			r.Post("/courses/{slug}/lessons/{lessonID}/complete", h.CompleteLesson)

			r.Route("/workbooks/{slug}", func(r chi.Router) {
				r.Get("/", h.GetWorkbook)
				r.With(middleware.LimitByUser(h.autosave)).Put("/answers", h.AutoSave)
				r.Post("/submit", h.SubmitWorkbook)
			})
		})
	})

	return otelhttp.NewHandler(r, "practice-portal.http")
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		response.Fail(w, r, http.StatusServiceUnavailable, "unhealthy", err.Error(), nil)
		return
	}
	response.Data(w, http.StatusOK, map[string]string{"status": "ok"})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and runs its validate tags. It writes the
// error response itself and reports whether the caller may continue.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		response.Fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			response.Fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
			return false
		}
		meta := make(map[string]string, len(ves))
		for _, fe := range ves {
			meta[fe.Field()] = describe(fe)
		}
		response.Fail(w, r, http.StatusBadRequest, "validation.failed", "validation failed", meta)
		return false
	}
	return true
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	case "uuid":
		return "must be a valid uuid"
	default:
		return "invalid"
	}
}

// fail maps service and store errors onto HTTP statuses.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	var ie *service.IncompleteError
	switch {
	case errors.As(err, &ve):
		response.Fail(w, r, http.StatusBadRequest, "validation.failed", "validation failed", ve.Fields)
	case errors.As(err, &ie):
		meta := make(map[string]string, len(ie.Missing))
		for _, k := range ie.Missing {
			meta[k] = "required"
		}
		response.Fail(w, r, http.StatusUnprocessableEntity, "workbook.incomplete", err.Error(), meta)
	case errors.Is(err, store.ErrNotFound):
		response.Fail(w, r, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, store.ErrConflict):
		response.Fail(w, r, http.StatusConflict, "conflict", "time conflicts with an existing appointment", nil)
	case errors.Is(err, model.ErrInvalidTransition):
		response.Fail(w, r, http.StatusConflict, "appointment.invalid_transition", err.Error(), nil)
	case errors.Is(err, model.ErrAlreadyEnrolled):
		response.Fail(w, r, http.StatusConflict, "course.already_enrolled", err.Error(), nil)
	case errors.Is(err, service.ErrRegistration):
		response.Fail(w, r, http.StatusConflict, "auth.registration_failed", err.Error(), nil)
	case errors.Is(err, model.ErrNotEnrolled):
		response.Fail(w, r, http.StatusForbidden, "course.not_enrolled", err.Error(), nil)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(w, r, http.StatusForbidden, "auth.forbidden", "forbidden", nil)
	case errors.Is(err, service.ErrUnauthorized):
		response.Fail(w, r, http.StatusUnauthorized, "resource.gated", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(w, r, http.StatusUnauthorized, "auth.invalid_credentials", err.Error(), nil)
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(w, r, http.StatusUnauthorized, "auth.session_expired", err.Error(), nil)
	case errors.Is(err, calendly.ErrBadSignature), errors.Is(err, calendly.ErrStale):
		response.Fail(w, r, http.StatusUnauthorized, "webhook.bad_signature", "invalid signature", nil)
	case errors.Is(err, payment.ErrBadSignature):
		response.Fail(w, r, http.StatusBadRequest, "webhook.bad_signature", "invalid signature", nil)
	case errors.Is(err, service.ErrNotConfigured), errors.Is(err, payment.ErrNotConfigured):
		response.Fail(w, r, http.StatusServiceUnavailable, "not_configured", "this feature is not available", nil)
	default:
		response.Internal(w, r, err)
	}
}

func (h *Handler) setSession(w http.ResponseWriter, s *service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    s.RefreshToken,
		Path:     refreshPath,
		Expires:  s.RefreshExpires,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.AccessExpires,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSession(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{refreshCookie, refreshPath},
		{middleware.AccessCookie, "/"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.opts.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// parseTime reads an optional RFC 3339 query parameter.
func parseTime(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, &service.ValidationError{Fields: map[string]string{name: "must be an RFC 3339 timestamp"}}
	}
	return &t, nil
}
