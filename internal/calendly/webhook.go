// Package calendly verifies and decodes Calendly v2 webhook deliveries.
package calendly

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "Calendly-Webhook-Signature"
	Tolerance       = 3 * time.Minute

	EventInviteeCreated  = "invitee.created"
	EventInviteeCanceled = "invitee.canceled"
)

var (
	ErrBadSignature = errors.New("invalid calendly signature")
	ErrStale        = errors.New("calendly signature timestamp outside tolerance")
)

// Verify checks header (t=<unix>,v1=<hex>) against HMAC-SHA256 of "t.body".
func Verify(body []byte, header, key string, now time.Time) error {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return ErrBadSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if d := now.Sub(time.Unix(unix, 0)); d > Tolerance || d < -Tolerance {
		return ErrStale
	}

	want, err := hex.DecodeString(sig)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal(want, Sign(body, ts, key)) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the raw v1 signature for body at timestamp ts.
func Sign(body []byte, ts, key string) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// Header builds a signature header, as Calendly would send it.
func Header(body []byte, key string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(Sign(body, ts, key)))
}

type Location struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	JoinURL  string `json:"join_url"`
}

type ScheduledEvent struct {
	URI       string    `json:"uri"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Location  Location  `json:"location"`
}

type Cancellation struct {
	Reason     string `json:"reason"`
	CanceledBy string `json:"canceled_by"`
}

type Invitee struct {
	URI            string         `json:"uri"`
	Email          string         `json:"email"`
	Name           string         `json:"name"`
	Event          string         `json:"event"`
	ScheduledEvent ScheduledEvent `json:"scheduled_event"`
	Cancellation   *Cancellation  `json:"cancellation"`
}

type Delivery struct {
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	Payload   Invitee   `json:"payload"`
}

// EventURI is the scheduled event the invitee belongs to.
func (i Invitee) EventURI() string {
	if i.ScheduledEvent.URI != "" {
		return i.ScheduledEvent.URI
	}
	return i.Event
}

func Parse(body []byte) (*Delivery, error) {
	var d Delivery
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode calendly delivery: %w", err)
	}
	if d.Event == "" {
		return nil, errors.New("calendly delivery without event")
	}
	return &d, nil
}

var remote = []string{"zoom", "google", "teams", "phone", "call", "webex", "gotomeeting"}

// IsRemote reports whether a Calendly location type is a video or phone call.
func IsRemote(locationType string) bool {
	lt := strings.ToLower(locationType)
	for _, r := range remote {
		if strings.Contains(lt, r) {
			return true
		}
	}
	return false
}
