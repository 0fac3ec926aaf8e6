package handler

import (
	"io"
	"net/http"

	"practice-portal/internal/calendly"
	"practice-portal/internal/response"
	"practice-portal/internal/service"
)

// webhooks are verified against the exact bytes received
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		response.Fail(w, r, http.StatusRequestEntityTooLarge, "request.too_large", "body too large", nil)
		return nil, false
	}
	return body, true
}

func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	typ, err := h.svc.HandleStripe(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, map[string]string{"received": typ})
}

func (h *Handler) CalendlyWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	out, err := h.svc.HandleCalendly(r.Context(), body, r.Header.Get(calendly.SignatureHeader))
	if err != nil {
		fail(w, r, err)
		return
	}
	status := http.StatusOK
	if out == service.CalendlyUnhandled {
		status = http.StatusAccepted
	}
	response.Data(w, status, map[string]string{"outcome": string(out)})
}
