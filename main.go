package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"outreachd/config"
	"outreachd/middleware"
	"outreachd/routes"
	"outreachd/utils"
	"outreachd/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Fatalf("Failed to initialize Sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	cfg := config.AppConfig
	encryptionKey := []byte(cfg.EncryptionKey)

	// Collaborator adapters
	sender := utils.NewSMTPSender(encryptionKey)
	reader := utils.NewIMAPReader(encryptionKey)
	builder := utils.NewTemplateBuilder()
	alertChannel := utils.NewAlertMailer(utils.AlertMailerConfig{
		Host:       cfg.AlertSMTPHost,
		Port:       cfg.AlertSMTPPort,
		Username:   cfg.AlertSMTPUsername,
		Password:   cfg.AlertSMTPPassword,
		FromEmail:  cfg.AlertFromEmail,
		FromName:   "Outreach Worker",
		Recipients: cfg.AlertRecipients,
	})

	// Worker components
	dispatcher := worker.NewDispatcher(config.DB, sender, builder, logger, worker.DispatcherOptions{
		Location:          config.Location(),
		BaseDelay:         time.Duration(cfg.BaseDelayHours) * time.Hour,
		FollowUpCutoff:    time.Duration(cfg.FollowUpCutoffDays) * 24 * time.Hour,
		SendTimeout:       time.Duration(cfg.SendTimeoutSeconds) * time.Second,
		DefaultDailyLimit: cfg.DefaultDailyLimit,
		DryRun:            cfg.DryRun,
	})
	intake := worker.NewReplyIntake(config.DB, reader, logger, time.Duration(cfg.PollTimeoutSeconds)*time.Second)
	decisions := worker.NewDecisionEngine(config.DB, logger, time.Duration(cfg.FollowUpCutoffDays)*24*time.Hour)
	alerts := worker.NewAlertDispatcher(config.DB, alertChannel, logger, cfg.AlertsEnabled, cfg.AlertRecipients)

	w := worker.New(config.DB, logger, worker.Options{
		WorkerID: cfg.WorkerID,
		Interval: time.Duration(cfg.WorkerIntervalSeconds) * time.Second,
		LockTTL:  time.Duration(cfg.WorkerLockTTLMinutes) * time.Minute,
	}, dispatcher, intake, decisions, alerts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Start(ctx)
	}()
	utils.LogEvent("worker_started", map[string]interface{}{
		"worker_id": cfg.WorkerID,
		"dry_run":   cfg.DryRun,
	})

	// Read-only status API for the operator dashboard
	app := fiber.New()
	app.Use(middleware.CORS())
	routes.SetupRoutes(app, config.DB, logger)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	go func() {
		logger.Printf("Status server starting on port %s", cfg.ServerPort)
		if err := app.Listen(":" + cfg.ServerPort); err != nil {
			logger.Errorf("Status server stopped: %v", err)
			stop()
		}
	}()

	// Graceful shutdown: finish the in-flight step, release the lock,
	// then take the HTTP surface down.
	select {
	case <-ctx.Done():
		logger.Println("Shutdown signal received")
		if err := <-workerDone; err != nil {
			utils.LogError("worker_exit", err, map[string]interface{}{"worker_id": cfg.WorkerID})
		}
	case err := <-workerDone:
		if err != nil {
			utils.LogError("worker_exit", err, map[string]interface{}{"worker_id": cfg.WorkerID})
		}
		stop()
	}

	if err := app.Shutdown(); err != nil {
		logger.Errorf("Failed to shut down status server: %v", err)
	}
}
