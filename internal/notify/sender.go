package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// TemporaryError marks a failure worth retrying (network, SMTP 4xx).
type TemporaryError struct{ msg string }

func (e TemporaryError) Error() string { return e.msg }

// PermanentError marks a failure retrying cannot fix (bad address, auth).
type PermanentError struct{ msg string }

func (e PermanentError) Error() string { return e.msg }

func IsPermanent(err error) bool {
	var p PermanentError
	return errors.As(err, &p)
}

// failureReason is the metrics label for err.
func failureReason(err error) string {
	if IsPermanent(err) {
		return "permanent"
	}
	return "temporary"
}

type LogSender struct {
	lg zerolog.Logger
}

func NewLogSender(lg zerolog.Logger) *LogSender {
	return &LogSender{lg: lg.With().Str("component", "log_sender").Logger()}
}

func (s *LogSender) Send(_ context.Context, m Message) error {
	s.lg.Info().
		Str("id", m.ID).
		Str("kind", string(m.Kind)).
		Str("to", m.To).
		Str("subject", m.Subject).
		Msg(m.Text)
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	Insecure bool
}

type SMTPSender struct {
	cfg SMTPConfig
	lg  zerolog.Logger
}

func NewSMTPSender(cfg SMTPConfig, lg zerolog.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, lg: lg.With().Str("component", "smtp_sender").Logger()}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return PermanentError{msg: "invalid from address: " + err.Error()}
	}
	if err := msg.To(m.To); err != nil {
		return PermanentError{msg: "invalid to address: " + err.Error()}
	}
	msg.Subject(m.Subject)
	msg.SetMessageIDWithValue(m.ID + "@practice-portal")
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	}

	policy := mail.TLSMandatory
	if s.cfg.Insecure {
		policy = mail.TLSOpportunistic
	}
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(policy),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password))
	}

	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return PermanentError{msg: "smtp client init failed: " + err.Error()}
	}

	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		s.lg.Error().Err(err).Str("kind", string(m.Kind)).Str("to", m.To).Msg("smtp send failed")
		return classifySMTP(err)
	}
	s.lg.Debug().Str("kind", string(m.Kind)).Str("to", m.To).Msg("smtp send ok")
	return nil
}

func classifySMTP(err error) error {
	msg := err.Error()
	for _, s := range []string{"535", "5.7.8", "authentication", "550", "553"} {
		if strings.Contains(msg, s) {
			return PermanentError{msg: "smtp rejected: " + msg}
		}
	}
	return TemporaryError{msg: "smtp transient failure: " + msg}
}
