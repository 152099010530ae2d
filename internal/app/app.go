package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/db"
	"github.com/fintrack-dev/fintrack/internal/http/api"
	"github.com/fintrack-dev/fintrack/internal/payments"
	"github.com/fintrack-dev/fintrack/internal/ratelimit"
	"github.com/fintrack-dev/fintrack/internal/recurring"
	"github.com/fintrack-dev/fintrack/internal/reminders"
	"github.com/fintrack-dev/fintrack/internal/reports"
)

// shutdownTimeout bounds graceful HTTP shutdown on context cancellation.
const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations without starting the server.
func Migrate(configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the API server together with the scheduled background
// jobs: the recurring transaction materializer and the reminder scanner.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}

	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	stripeCfg := payments.Config{
		SecretKey:      cfg.Stripe.SecretKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		PremiumPriceID: cfg.Stripe.PremiumPriceID,
		SuccessURL:     cfg.Stripe.SuccessURL,
		CancelURL:      cfg.Stripe.CancelURL,
	}
	payments.Init(stripeCfg)

	billingSvc := billing.NewService(conn)
	paymentsSvc := payments.NewService(conn, stripeCfg, billingSvc)
	reportsSvc := reports.NewService(conn)

	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, conn, cfg, billingSvc, paymentsSvc, reportsSvc, buildLimiter(cfg))

	scheduler := cron.New()
	materializer := recurring.NewMaterializer(conn, billingSvc)
	if _, errJob := scheduler.AddFunc(cfg.Scheduler.RecurringSpec, func() {
		if errRun := materializer.Run(ctx); errRun != nil {
			log.WithError(errRun).Error("recurring materializer run failed")
		}
	}); errJob != nil {
		return fmt.Errorf("schedule recurring job: %w", errJob)
	}
	scanner := reminders.NewScanner(conn)
	if _, errJob := scheduler.AddFunc(cfg.Scheduler.ReminderSpec, func() {
		if errRun := scanner.Run(ctx); errRun != nil {
			log.WithError(errRun).Error("reminder scan failed")
		}
	}); errJob != nil {
		return fmt.Errorf("schedule reminder job: %w", errJob)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			log.WithError(errShutdown).Warn("server shutdown failed")
		}
	}()

	log.WithField("port", cfg.Port).Info("starting server")
	if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return errServe
	}
	return nil
}

// buildLimiter selects the rate limiter backend. A configured Redis address
// shares windows across instances; otherwise limiting is process-local.
func buildLimiter(cfg *config.Config) ratelimit.Limiter {
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		log.WithField("addr", addr).Info("using redis rate limiter")
		return ratelimit.NewRedisLimiter(client, "rl")
	}
	return ratelimit.NewMemoryLimiter()
}
