package adminrpc

import (
	"time"

	"practice-portal/internal/service"
)

type StatsRequest struct {
	RangeDays int `json:"range_days"`
}

type ListAppointmentsRequest struct {
	From   time.Time `json:"from,omitzero"`
	To     time.Time `json:"to,omitzero"`
	Status string    `json:"status,omitempty"`
}

type ListAppointmentsResponse struct {
	Appointments []service.AppointmentView `json:"appointments"`
}

type SetAppointmentStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type AppointmentResponse struct {
	Appointment *service.AppointmentView `json:"appointment"`
}

type ListLeadsRequest struct {
	IncludeHandled bool `json:"include_handled"`
}

type ListLeadsResponse struct {
	Leads []service.LeadView `json:"leads"`
}

type ResolveLeadRequest struct {
	ID string `json:"id"`
}

type Empty struct{}

type ListSubscribersRequest struct {
	Status string `json:"status,omitempty"`
}

type ListSubscribersResponse struct {
	Subscribers []service.SubscriberView `json:"subscribers"`
}

type PublishPostRequest struct {
	Title        string   `json:"title"`
	Slug         string   `json:"slug,omitempty"`
	Excerpt      string   `json:"excerpt,omitempty"`
	BodyMarkdown string   `json:"body_markdown"`
	Tags         []string `json:"tags,omitempty"`
	Published    bool     `json:"published"`
}

type PostResponse struct {
	Post *service.PostView `json:"post"`
}
