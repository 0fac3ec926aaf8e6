package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"practice-portal/internal/middleware"
	"practice-portal/internal/response"
)

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.ListPosts(r.Context(), q.Get("tag"), atoi(q.Get("limit")), atoi(q.Get("offset")))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, list)
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPost(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, p)
}

func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListResources(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, list)
}

func (h *Handler) DownloadResource(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.DownloadResource(r.Context(), chi.URLParam(r, "slug"), middleware.UserID(r.Context()), r.URL.Query().Get("subscriber_token"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, d)
}

// atoi treats anything unparsable as zero, which the service reads as
// "use the default".
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
