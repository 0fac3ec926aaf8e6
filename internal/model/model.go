package model

import (
	"errors"
	"time"
)

const (
	RoleClient   = "client"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsStaff reports whether the user may use the provider tooling.
func (u *User) IsStaff() bool {
	return u.Role == RoleProvider || u.Role == RoleAdmin
}

type Appointment struct {
	ID               string
	ClientID         string
	ProviderID       string
	ServiceType      string
	StartTime        time.Time
	EndTime          time.Time
	Status           string
	Mode             string
	Location         string
	Notes            string
	CalendlyEventURI string
	ReminderSentAt   *time.Time
	FollowUpSentAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// joined for notifications and listings
	ClientName   string
	ClientEmail  string
	ProviderName string
}

type BlogPost struct {
	ID           string
	Slug         string
	Title        string
	Excerpt      string
	BodyMarkdown string
	BodyHTML     string
	Tags         []string
	Published    bool
	PublishedAt  *time.Time
	UpdatedAt    time.Time
}

type Resource struct {
	ID          string
	Slug        string
	Title       string
	Description string
	Category    string
	ObjectKey   string
	Gated       bool
	CreatedAt   time.Time
}

type Course struct {
	ID                  string
	Slug                string
	Title               string
	Summary             string
	DescriptionMarkdown string
	PriceCents          int64
	Currency            string
	StripePriceID       string
	Published           bool
	Lessons             []Lesson
	CreatedAt           time.Time
}

func (c *Course) Free() bool { return c.PriceCents == 0 }

type Lesson struct {
	ID              string
	CourseID        string
	Position        int
	Title           string
	BodyMarkdown    string
	DurationMinutes int
}

const (
	EnrollmentPending  = "pending"
	EnrollmentActive   = "active"
	EnrollmentRefunded = "refunded"
)

type Enrollment struct {
	ID                string
	UserID            string
	CourseID          string
	Status            string
	CheckoutSessionID string
	EnrolledAt        *time.Time
	CreatedAt         time.Time
}

type Payment struct {
	ID           string
	EnrollmentID string
	UserID       string
	AmountCents  int64
	Currency     string
	Provider     string
	ExternalID   string
	CreatedAt    time.Time
}

type Prompt struct {
	Key      string `json:"key"`
	Question string `json:"question"`
	Required bool   `json:"required"`
}

type Workbook struct {
	ID          string
	Slug        string
	Title       string
	Description string
	CourseID    *string
	Prompts     []Prompt
}

type WorkbookResponse struct {
	UserID     string
	WorkbookID string
	PromptKey  string
	Answer     string
	UpdatedAt  time.Time
}

const (
	SubscriberPending      = "pending"
	SubscriberActive       = "active"
	SubscriberUnsubscribed = "unsubscribed"
)

type Subscriber struct {
	ID          string
	Email       string
	Name        string
	Source      string
	Status      string
	Token       string
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}

type ContactMessage struct {
	ID         string
	Name       string
	Email      string
	Phone      string
	Topic      string
	Message    string
	SourcePage string
	Handled    bool
	CreatedAt  time.Time
}

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotEnrolled       = errors.New("not enrolled")
	ErrAlreadyEnrolled   = errors.New("already enrolled")
)
