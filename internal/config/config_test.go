package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("SITE_URL", "https://example.org/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "https://example.org", cfg.SiteURL)
	assert.Equal(t, 5*time.Minute, cfg.ReminderInterval)
	assert.Equal(t, 24*time.Hour, cfg.ReminderLead)
	assert.Equal(t, "log", cfg.MailSender)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadCORSList(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Env:              "dev",
			DatabaseURL:      "postgres://x",
			JWTSecret:        "s",
			MailSender:       "log",
			ReminderInterval: time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret in prod", func(c *Config) { c.Env = "prod" }, "at least 32 bytes"},
		{"smtp without host", func(c *Config) { c.MailSender = "smtp" }, "SMTP_HOST"},
		{"unknown sender", func(c *Config) { c.MailSender = "pigeon" }, "unsupported MAIL_SENDER"},
		{"zero interval", func(c *Config) { c.ReminderInterval = 0 }, "REMINDER_INTERVAL"},
		{"unknown zone", func(c *Config) { c.PracticeTZ = "Mars/Olympus" }, "PRACTICE_TZ"},
		{"redis with space", func(c *Config) { c.RedisAddr = "localhost:6379 X=1" }, "REDIS_ADDR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
