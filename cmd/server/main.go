package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"practice-portal/internal/adminrpc"
	"practice-portal/internal/cache"
	"practice-portal/internal/config"
	"practice-portal/internal/grpcweb"
	"practice-portal/internal/handler"
	"practice-portal/internal/logger"
	"practice-portal/internal/middleware"
	"practice-portal/internal/model"
	"practice-portal/internal/notify"
	"practice-portal/internal/payment"
	"practice-portal/internal/reminder"
	"practice-portal/internal/service"
	"practice-portal/internal/storage"
	"practice-portal/internal/store"
	"practice-portal/internal/telemetry"
)

func main() {
	logger.Init()
	lg := logger.Component("main")

	cfg, err := config.Load()
	if err != nil {
		lg.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg zerolog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, "practice-portal", cfg.OTelEndpoint)
	if err != nil {
		lg.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// database
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	applied, err := st.Migrate(ctx)
	if err != nil {
		return err
	}
	lg.Info().Strs("migrations", applied).Msg("connected to postgres")

	var c *cache.Cache
	if cfg.RedisAddr != "" {
		c = cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		defer c.Close()
		if err := c.Ping(ctx); err != nil {
			lg.Warn().Err(err).Msg("redis unreachable, continuing uncached")
		}
	}

	// email
	var sender notify.Sender = notify.NewLogSender(logger.Logger)
	if cfg.MailSender == "smtp" {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.SMTPTimeout,
			Insecure: cfg.SMTPInsecure,
		}, logger.Logger)
	}
	var blocking notify.Dispatcher = notify.NewDirect(sender)
	requests := notify.Dispatcher(notify.NewAsync(blocking))
	if cfg.RabbitURL != "" {
		q, err := notify.NewQueue(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return err
		}
		defer q.Close()
		blocking, requests = q, q
	}

	var files service.Presigner
	if cfg.S3Endpoint != "" || cfg.S3AccessKeyID != "" {
		s3, err := storage.NewS3(ctx, storage.Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKeyID:  cfg.S3AccessKeyID,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
			PresignTTL:   cfg.S3PresignTTL,
		})
		if err != nil {
			return err
		}
		files = s3
	}

	svc := service.New(service.Deps{
		Store:              st,
		Cache:              c,
		Notify:             requests,
		Payments:           payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		Files:              files,
		JWTSecret:          cfg.JWTSecret,
		SiteURL:            cfg.SiteURL,
		PracticeInbox:      cfg.PracticeInbox,
		PracticeProviderID: cfg.PracticeProviderID,
		CalendlySigningKey: cfg.CalendlySigningKey,
		Location:           cfg.Location(),
		CacheTTL:           cfg.CacheTTL,
	})

	// grpc server
	rl := middleware.NewRateLimiter(5, 10)
	grpcSrv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.RateLimit(rl, adminrpc.Methods()...),
			middleware.Auth(cfg.JWTSecret, model.RoleProvider, model.RoleAdmin),
		),
	)
	adminrpc.RegisterAdminServer(grpcSrv, adminrpc.NewServer(svc))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	bridge, err := grpcweb.New(dialAddr(cfg.GRPCAddr), cfg.CORSOrigins, logger.Logger)
	if err != nil {
		return err
	}
	defer bridge.Close()

	apiSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handler.New(svc, handler.Options{
			JWTSecret:    cfg.JWTSecret,
			CORSOrigins:  cfg.CORSOrigins,
			CookieSecure: cfg.CookieSecure,
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	webSrv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           bridge.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	worker := reminder.New(st, c, blocking, reminder.Config{
		Interval: cfg.ReminderInterval,
		Lead:     cfg.ReminderLead,
		SiteURL:  cfg.SiteURL,
		Location: cfg.Location(),
	}, logger.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info().Str("addr", cfg.GRPCAddr).Msg("grpc listening")
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error { return listen(apiSrv, "rest", lg) })
	g.Go(func() error { return listen(webSrv, "grpc-web", lg) })
	g.Go(func() error { return worker.Run(gctx) })
	if cfg.RabbitURL != "" {
		consumer := notify.NewConsumer(notify.ConsumerConfig{
			URL:      cfg.RabbitURL,
			Exchange: cfg.RabbitExchange,
			Queue:    cfg.RabbitQueue,
		}, sender, logger.Logger)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		lg.Info().Msg("shutting down")
		hs.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
		defer cancel()
		errs := []error{apiSrv.Shutdown(sctx), webSrv.Shutdown(sctx)}

		done := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-sctx.Done():
			grpcSrv.Stop()
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	lg.Info().Msg("bye")
	return nil
}

func listen(srv *http.Server, name string, lg zerolog.Logger) error {
	lg.Info().Str("addr", srv.Addr).Msg(name + " listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// dialAddr turns a listen address like ":50051" into one the bridge can dial.
func dialAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "localhost" + listen
	}
	return listen
}
