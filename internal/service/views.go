package service

import (
	"time"

	"practice-portal/internal/model"
)

// Views are the JSON shapes returned to the frontend and the admin service.

type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserView(u *model.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name, Phone: u.Phone, Role: u.Role, CreatedAt: u.CreatedAt}
}

type AppointmentView struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	ClientName   string     `json:"client_name,omitempty"`
	ClientEmail  string     `json:"client_email,omitempty"`
	ProviderID   string     `json:"provider_id"`
	ProviderName string     `json:"provider_name,omitempty"`
	ServiceType  string     `json:"service_type"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Status       string     `json:"status"`
	Mode         string     `json:"mode"`
	Location     string     `json:"location,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Source       string     `json:"source"`
	ReminderSent *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func NewAppointmentView(a *model.Appointment) AppointmentView {
	src := "portal"
	if a.CalendlyEventURI != "" {
		src = "calendly"
	}
	return AppointmentView{
		ID:           a.ID,
		ClientID:     a.ClientID,
		ClientName:   a.ClientName,
		ClientEmail:  a.ClientEmail,
		ProviderID:   a.ProviderID,
		ProviderName: a.ProviderName,
		ServiceType:  a.ServiceType,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Status:       a.Status,
		Mode:         a.Mode,
		Location:     a.Location,
		Notes:        a.Notes,
		Source:       src,
		ReminderSent: a.ReminderSentAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func appointmentViews(list []model.Appointment) []AppointmentView {
	out := make([]AppointmentView, 0, len(list))
	for i := range list {
		out = append(out, NewAppointmentView(&list[i]))
	}
	return out
}

type PostView struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt"`
	BodyHTML    string     `json:"body_html,omitempty"`
	Tags        []string   `json:"tags"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func newPostView(p *model.BlogPost, withBody bool) PostView {
	v := PostView{
		ID:          p.ID,
		Slug:        p.Slug,
		Title:       p.Title,
		Excerpt:     p.Excerpt,
		Tags:        p.Tags,
		Published:   p.Published,
		PublishedAt: p.PublishedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if withBody {
		v.BodyHTML = p.BodyHTML
	}
	return v
}

type ResourceView struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Gated       bool   `json:"gated"`
}

type DownloadView struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CourseSummary struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
	Free       bool   `json:"free"`
	Lessons    int    `json:"lesson_count"`
}

type LessonView struct {
	ID              string `json:"id"`
	Position        int    `json:"position"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	BodyHTML        string `json:"body_html,omitempty"`
	Completed       bool   `json:"completed"`
}

type CourseView struct {
	CourseSummary
	DescriptionHTML string                `json:"description_html"`
	Enrolled        bool                  `json:"enrolled"`
	Lessons         []LessonView          `json:"lessons"`
	Progress        *model.CourseProgress `json:"progress,omitempty"`
}

type CheckoutView struct {
	EnrollmentID string `json:"enrollment_id"`
	Status       string `json:"status"`
	URL          string `json:"url,omitempty"`
}

type PromptView struct {
	Key       string     `json:"key"`
	Question  string     `json:"question"`
	Required  bool       `json:"required"`
	Answer    string     `json:"answer"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type WorkbookView struct {
	ID          string                 `json:"id"`
	Slug        string                 `json:"slug"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Prompts     []PromptView           `json:"prompts"`
	Progress    model.WorkbookProgress `json:"progress"`
	SubmittedAt *time.Time             `json:"submitted_at,omitempty"`
}

type AutoSaveResult struct {
	SavedKeys []string               `json:"saved_keys"`
	Conflicts []string               `json:"conflicts"`
	Progress  model.WorkbookProgress `json:"progress"`
	SavedAt   time.Time              `json:"saved_at"`
}

type SubscriberView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

func NewSubscriberView(s *model.Subscriber) SubscriberView {
	return SubscriberView{
		ID: s.ID, Email: s.Email, Name: s.Name, Source: s.Source,
		Status: s.Status, CreatedAt: s.CreatedAt, ConfirmedAt: s.ConfirmedAt,
	}
}

type LeadView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Topic      string    `json:"topic"`
	Message    string    `json:"message"`
	SourcePage string    `json:"source_page,omitempty"`
	Handled    bool      `json:"handled"`
	CreatedAt  time.Time `json:"created_at"`
}

func newLeadView(m *model.ContactMessage) LeadView {
	return LeadView{
		ID: m.ID, Name: m.Name, Email: m.Email, Phone: m.Phone, Topic: m.Topic,
		Message: m.Message, SourcePage: m.SourcePage, Handled: m.Handled, CreatedAt: m.CreatedAt,
	}
}

type CourseProgressView struct {
	Course   CourseSummary        `json:"course"`
	Progress model.CourseProgress `json:"progress"`
}

type WorkbookProgressView struct {
	Slug        string                 `json:"slug"`
	Title       string                 `json:"title"`
	Progress    model.WorkbookProgress `json:"progress"`
	SubmittedAt *time.Time             `json:"submitted_at,omitempty"`
}

type Dashboard struct {
	UpcomingAppointments  []AppointmentView      `json:"upcoming_appointments"`
	PastAppointmentsCount int64                  `json:"past_appointments_count"`
	Courses               []CourseProgressView   `json:"courses"`
	Workbooks             []WorkbookProgressView `json:"workbooks"`
}
