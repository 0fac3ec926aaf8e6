// Command practicectl is the operator's tool for the practice portal: schema
// migrations, reports, one-off reminder passes and content imports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"practice-portal/internal/cache"
	"practice-portal/internal/config"
	"practice-portal/internal/logger"
	"practice-portal/internal/notify"
	"practice-portal/internal/service"
	"practice-portal/internal/store"
)

func main() {
	logger.InitWithWriter(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "practicectl",
		Short:        "Operate the practice portal",
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newStatsCmd(),
		newRemindersCmd(),
		newSubscribersCmd(),
		newAppointmentsCmd(),
		newUsersCmd(),
		newContentCmd(),
	)
	return root
}

// env bundles what the commands need from a loaded config.
type env struct {
	cfg   *config.Config
	store *store.Store
	cache *cache.Cache
	mail  notify.Dispatcher
	svc   *service.Service
}

func (e *env) Close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
	e.store.Close()
}

// open connects to postgres (and redis when configured). Emails go to the log
// sender unless MAIL_SENDER says otherwise; the CLI never queues.
func open(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	var c *cache.Cache
	if cfg.RedisAddr != "" {
		c = cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	}
	mail := notify.NewDirect(mailer(cfg))
	return &env{
		cfg:   cfg,
		store: st,
		cache: c,
		mail:  mail,
		svc: service.New(service.Deps{
			Store:              st,
			Cache:              c,
			Notify:             mail,
			JWTSecret:          cfg.JWTSecret,
			SiteURL:            cfg.SiteURL,
			PracticeInbox:      cfg.PracticeInbox,
			PracticeProviderID: cfg.PracticeProviderID,
			Location:           cfg.Location(),
			CacheTTL:           cfg.CacheTTL,
		}),
	}, nil
}

func mailer(cfg *config.Config) notify.Sender {
	if cfg.MailSender == "smtp" {
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.SMTPTimeout,
			Insecure: cfg.SMTPInsecure,
		}, logger.Logger)
	}
	return notify.NewLogSender(logger.Logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
