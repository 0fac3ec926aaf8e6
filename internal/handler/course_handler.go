package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"practice-portal/internal/middleware"
	"practice-portal/internal/response"
)

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListCourses(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, list)
}

// GetCourse is public; signed-in enrolled users also get lesson bodies.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCourse(r.Context(), chi.URLParam(r, "slug"), middleware.UserID(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, c)
}

func (h *Handler) CourseProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CourseProgress(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, p)
}

func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CompleteLesson(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "slug"), chi.URLParam(r, "lessonID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, p)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Checkout(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, c)
}

func (h *Handler) GetWorkbook(w http.ResponseWriter, r *http.Request) {
	wb, err := h.svc.GetWorkbook(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, wb)
}

type autoSaveRequest struct {
	Answers         map[string]string `json:"answers" validate:"required"`
	ClientUpdatedAt *time.Time        `json:"client_updated_at"`
}

func (h *Handler) AutoSave(w http.ResponseWriter, r *http.Request) {
	var req autoSaveRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.AutoSave(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "slug"), req.Answers, req.ClientUpdatedAt)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, res)
}

func (h *Handler) SubmitWorkbook(w http.ResponseWriter, r *http.Request) {
	at, err := h.svc.SubmitWorkbook(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, map[string]time.Time{"submitted_at": at})
}
