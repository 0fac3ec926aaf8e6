// Package notify builds transactional emails and delivers them either
// directly through a Sender or through RabbitMQ.
package notify

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/google/uuid"
)

type Kind string

const (
	KindBookingConfirmed    Kind = "booking_confirmed"
	KindBookingCancelled    Kind = "booking_cancelled"
	KindAppointmentReminder Kind = "appointment_reminder"
	KindNoShowFollowUp      Kind = "no_show_followup"
	KindNewsletterConfirm   Kind = "newsletter_confirm"
	KindContactReceived     Kind = "contact_received"
	KindEnrollmentActive    Kind = "enrollment_active"
	KindBookingConflict     Kind = "booking_conflict"
)

type Message struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

// Data carries the fields templates may use. Unused fields stay empty.
type Data struct {
	Name        string
	When        string
	ServiceType string
	Mode        string
	Location    string
	Link        string
	UnsubLink   string
	CourseTitle string
	Email       string
	Phone       string
	Topic       string
	Body        string
	Reason      string
}

// Dispatcher hands a message off for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, m Message) error
}

type tmpl struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var templates = map[Kind]tmpl{}

func register(k Kind, subject, text, html string) {
	name := string(k)
	templates[k] = tmpl{
		subject: texttemplate.Must(texttemplate.New(name + ".subject").Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + ".txt").Parse(text)),
		html:    htmltemplate.Must(htmltemplate.Must(layout.Clone()).New("content").Parse(html)),
	}
}

// Build renders the templates for kind into a Message addressed to to.
func Build(k Kind, to string, d Data) (Message, error) {
	t, ok := templates[k]
	if !ok {
		return Message{}, fmt.Errorf("notify: unknown kind %q", k)
	}

	var subj, txt, html bytes.Buffer
	if err := t.subject.Execute(&subj, d); err != nil {
		return Message{}, fmt.Errorf("notify: %s subject: %w", k, err)
	}
	if err := t.text.Execute(&txt, d); err != nil {
		return Message{}, fmt.Errorf("notify: %s text: %w", k, err)
	}
	if err := t.html.ExecuteTemplate(&html, "layout", d); err != nil {
		return Message{}, fmt.Errorf("notify: %s html: %w", k, err)
	}

	return Message{
		ID:      uuid.New().String(),
		Kind:    k,
		To:      to,
		Subject: subj.String(),
		Text:    txt.String(),
		HTML:    html.String(),
	}, nil
}
