// Package response writes the JSON envelopes used by every REST endpoint:
// {"data": ...} on success and {"error": {...}} on failure.
package response

import (
	"encoding/json"
	"net/http"

	"practice-portal/internal/logger"
)

type Envelope struct {
	Data any `json:"data"`
}

type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Data(w http.ResponseWriter, status int, payload any) {
	JSON(w, status, Envelope{Data: payload})
}

func Fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	JSON(w, status, ErrorBody{Error: ErrorPayload{
		Code:      code,
		Message:   message,
		Meta:      meta,
		RequestID: logger.RequestID(r.Context()),
	}})
}

// Internal logs err and answers 500 without leaking it.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	logger.WithCtx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	Fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
}
