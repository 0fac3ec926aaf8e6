package handler

import (
	"net/http"

	"practice-portal/internal/logger"
	"practice-portal/internal/response"
	"practice-portal/internal/service"
)

type subscribeRequest struct {
	Email  string `json:"email" validate:"required,email,max=254"`
	Name   string `json:"name" validate:"max=120"`
	Source string `json:"source" validate:"max=120"`
}

var subscribeAck = map[string]string{"status": "check your inbox to confirm"}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Subscribe(r.Context(), req.Email, req.Name, req.Source); err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusAccepted, subscribeAck)
}

type tokenRequest struct {
	Token string `json:"token" validate:"required,max=128"`
}

func (h *Handler) ConfirmSubscription(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.svc.ConfirmSubscription(r.Context(), req.Token)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, sub)
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.svc.Unsubscribe(r.Context(), req.Token)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, sub)
}

type contactRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Phone      string `json:"phone" validate:"max=40"`
	Topic      string `json:"topic" validate:"required,oneof=general appointment course media"`
	Message    string `json:"message" validate:"required,min=10,max=5000"`
	SourcePage string `json:"source_page" validate:"max=500"`

	// honeypot, hidden from people
	Website string `json:"website"`
}

func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Website != "" {
		logger.WithCtx(r.Context()).Info().Msg("contact honeypot tripped")
		response.Data(w, http.StatusAccepted, map[string]string{"status": "received"})
		return
	}
	err := h.svc.Contact(r.Context(), service.ContactInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Topic:      req.Topic,
		Message:    req.Message,
		SourcePage: req.SourcePage,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Data(w, http.StatusAccepted, map[string]string{"status": "received"})
}
