package handler

import (
	"net/http"
	"time"

	"practice-portal/internal/middleware"
	"practice-portal/internal/response"
	"practice-portal/internal/service"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"omitempty,max=40"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	User        service.UserView `json:"user"`
	AccessToken string           `json:"access_token"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email: req.Email, Password: req.Password, Name: req.Name, Phone: req.Phone,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	h.setSession(w, s)
	response.Data(w, http.StatusCreated, sessionResponse{User: s.User, AccessToken: s.AccessToken, ExpiresAt: s.AccessExpires})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.setSession(w, s)
	response.Data(w, http.StatusOK, sessionResponse{User: s.User, AccessToken: s.AccessToken, ExpiresAt: s.AccessExpires})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookie)
	if err != nil || c.Value == "" {
		fail(w, r, service.ErrSessionExpired)
		return
	}
	s, err := h.svc.Refresh(r.Context(), c.Value)
	if err != nil {
		h.clearSession(w)
		fail(w, r, err)
		return
	}
	h.setSession(w, s)
	response.Data(w, http.StatusOK, sessionResponse{User: s.User, AccessToken: s.AccessToken, ExpiresAt: s.AccessExpires})
}

// Logout revokes every refresh token of the caller. Without an access token
// it falls back to the refresh cookie's owner.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var err error
	if uid := middleware.UserID(r.Context()); uid != "" {
		err = h.svc.Logout(r.Context(), uid)
	} else if c, cerr := r.Cookie(refreshCookie); cerr == nil && c.Value != "" {
		err = h.svc.LogoutToken(r.Context(), c.Value)
	}
	h.clearSession(w)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, u)
}

type updateMeRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.UpdateMe(r.Context(), middleware.UserID(r.Context()), req.Name, req.Phone)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, u)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.ClientDashboard(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, d)
}
