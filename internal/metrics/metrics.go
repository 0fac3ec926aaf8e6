package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "practice_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	emailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_emails_sent_total",
			Help: "Emails handed to the mail sender successfully",
		},
		[]string{"kind"},
	)

	emailsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_emails_failed_total",
			Help: "Emails that could not be sent",
		},
		[]string{"kind", "reason"},
	)

	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_reminders_total",
			Help: "Reminder worker sends by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	leadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_leads_total",
			Help: "Lead capture submissions by form",
		},
		[]string{"form"},
	)
)

func RecordEmailSent(kind string) {
	emailsSentTotal.WithLabelValues(kind).Inc()
}

func RecordEmailFailed(kind, reason string) {
	emailsFailedTotal.WithLabelValues(kind, reason).Inc()
}

// RecordReminder counts a reminder or follow-up; outcome is "sent" or "failed".
func RecordReminder(typ, outcome string) {
	remindersTotal.WithLabelValues(typ, outcome).Inc()
}

func RecordLead(form string) {
	leadsTotal.WithLabelValues(form).Inc()
}

// Middleware records request count and latency labelled by the chi route
// pattern, so ids in paths do not blow up cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
