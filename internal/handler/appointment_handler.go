package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"practice-portal/internal/middleware"
	"practice-portal/internal/response"
	"practice-portal/internal/service"
)

type bookRequest struct {
	ProviderID  string    `json:"provider_id" validate:"required,uuid"`
	ServiceType string    `json:"service_type" validate:"required"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	Mode        string    `json:"mode" validate:"omitempty,oneof=in_person telehealth"`
	Notes       string    `json:"notes" validate:"max=2000"`
}

func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.svc.Book(r.Context(), middleware.UserID(r.Context()), service.BookInput{
		ProviderID:  req.ProviderID,
		ServiceType: req.ServiceType,
		Start:       req.StartTime,
		End:         req.EndTime,
		Mode:        req.Mode,
		Notes:       req.Notes,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, a)
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	from, err := parseTime(r, "from")
	if err != nil {
		fail(w, r, err)
		return
	}
	to, err := parseTime(r, "to")
	if err != nil {
		fail(w, r, err)
		return
	}
	list, err := h.svc.ListMine(r.Context(), middleware.UserID(r.Context()), from, to)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, list)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetMine(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, a)
}

type rescheduleRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

func (h *Handler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.svc.Reschedule(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), req.StartTime, req.EndTime)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, a)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	// the body is optional
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	a, err := h.svc.Cancel(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, a)
}
