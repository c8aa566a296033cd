// Package main is the entrypoint for reminderd, the self-hosted reminder
// daemon. It is the deployment alternative to the Lambda worker: one
// long-running process with an in-process cron engine that fires a reminder
// cycle on the configured schedule (REMINDERS_CRON, default every 15
// minutes).
//
// Cycles never overlap: a tick that arrives while the previous cycle is
// still running is skipped, and the watermark ledger makes the next tick
// sweep the missed range anyway.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/robfig/cron/v3"

	"github.com/warwicklearningsystems/local-reminders/internal/config"
	"github.com/warwicklearningsystems/local-reminders/internal/db"
	"github.com/warwicklearningsystems/local-reminders/internal/queue"
	"github.com/warwicklearningsystems/local-reminders/internal/reminders"
	"github.com/warwicklearningsystems/local-reminders/internal/scheduler"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// cycleTimeout bounds one scheduled cycle. Well above the expected runtime
// even for a first-run window, but a hung database read must not wedge the
// cron slot forever.
const cycleTimeout = 10 * time.Minute

func main() {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	logger := types.NewSlogLogger(slogger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to create database pool", "error", err.Error())
		os.Exit(1)
	}
	defer pool.Close()

	var transport reminders.Transport
	if cfg.Queue.MessageQueueURL == "" {
		logger.Warn("no reminder queue configured, logging messages instead")
		transport = queue.NewLogTransport(logger)
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS SDK config", "error", err.Error())
			os.Exit(1)
		}
		publisher, err := queue.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.Queue, logger)
		if err != nil {
			logger.Error("failed to create queue publisher", "error", err.Error())
			os.Exit(1)
		}
		transport = publisher
	}

	service := reminders.NewService(reminders.ServiceConfig{
		Reminders:  cfg.Reminders,
		Directory:  db.NewDirectoryRepository(pool),
		Settings:   db.NewSettingsRepository(pool),
		Activities: db.NewActivityRepository(pool),
		Transport:  transport,
		Logger:     logger,
	})

	cycle := scheduler.NewCycle(scheduler.CycleConfig{
		Reminders: cfg.Reminders,
		Events:    db.NewEventRepository(pool),
		Ledger:    db.NewLedgerRepository(pool),
		Processor: service,
		Metrics:   scheduler.NoopCycleMetrics{},
		Logger:    logger,
	})

	runCycle := func() {
		// Detached from the signal context so an in-flight cycle finishes
		// during graceful shutdown; engine.Stop waits for it.
		runCtx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
		defer cancel()

		report, err := cycle.Run(runCtx)
		if err != nil {
			logger.Error("reminder cycle failed", "error", err.Error())
			return
		}
		if report.Disabled {
			return
		}
		logger.Info("scheduled cycle finished",
			"events_seen", report.EventsSeen,
			"reminders_sent", report.RemindersSent,
			"send_failures", report.SendFailures,
		)
	}

	engine := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	if _, err := engine.AddFunc(cfg.Reminders.CronSpec, runCycle); err != nil {
		logger.Error("invalid cron spec",
			"spec", cfg.Reminders.CronSpec,
			"error", err.Error(),
		)
		os.Exit(1)
	}

	engine.Start()
	logger.Info("reminderd started",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"cron", cfg.Reminders.CronSpec,
	)

	<-ctx.Done()

	logger.Info("shutdown signal received, stopping scheduler")
	<-engine.Stop().Done()
	logger.Info("reminderd stopped")
}

// logLevel maps the LOG_LEVEL environment variable onto a slog level,
// defaulting to info for unknown values.
func logLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
