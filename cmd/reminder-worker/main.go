// Package main is the entrypoint for the Reminder Worker Lambda function.
//
// The worker runs every 15 minutes via an EventBridge rule. Each invocation
// executes one reminder cycle: it computes the scan window from the
// watermark ledger, classifies candidate calendar events against the
// configured lead times, resolves recipients, and publishes rendered
// reminders to the messaging queue.
//
// This file handles dependency wiring (cold start) and delegates all
// business logic to the internal/scheduler and internal/reminders packages.
// With APP_ENV=local the process runs a single cycle directly and exits,
// which is the development and backfill-debugging path.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/warwicklearningsystems/local-reminders/internal/config"
	"github.com/warwicklearningsystems/local-reminders/internal/db"
	"github.com/warwicklearningsystems/local-reminders/internal/queue"
	"github.com/warwicklearningsystems/local-reminders/internal/reminders"
	"github.com/warwicklearningsystems/local-reminders/internal/scheduler"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// WorkerInput is the Lambda invocation payload. All fields are optional;
// the EventBridge schedule sends an empty object.
type WorkerInput struct {
	// ReferenceTime overrides "now" for the cycle. Used for backfills and
	// incident replays: the window still starts after the last watermark,
	// but ends at the given instant instead of the wall clock.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// fixedClock pins the cycle clock to one instant for reference-time runs.
type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

func main() {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	logger := types.NewSlogLogger(slogger)

	logger.Info("reminder worker initializing (cold start)")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to create database pool", "error", err.Error())
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err.Error())
		os.Exit(1)
	}

	directory := db.NewDirectoryRepository(pool)
	settings := db.NewSettingsRepository(pool)
	activities := db.NewActivityRepository(pool)

	var transport reminders.Transport
	if cfg.Queue.MessageQueueURL == "" {
		if cfg.Environment != "local" {
			logger.Error("SQS_REMINDERS is required outside local runs")
			os.Exit(1)
		}
		logger.Warn("no reminder queue configured, logging messages instead")
		transport = queue.NewLogTransport(logger)
	} else {
		publisher, err := queue.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.Queue, logger)
		if err != nil {
			logger.Error("failed to create queue publisher", "error", err.Error())
			os.Exit(1)
		}
		transport = publisher
	}

	service := reminders.NewService(reminders.ServiceConfig{
		Reminders:  cfg.Reminders,
		Directory:  directory,
		Settings:   settings,
		Activities: activities,
		Transport:  transport,
		Logger:     logger,
	})

	var metrics scheduler.CycleMetrics = scheduler.NoopCycleMetrics{}
	if cfg.Environment != "local" {
		metrics = scheduler.NewCloudWatchCycleMetrics(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Queue.MetricNamespace,
			logger,
		)
	}

	// One cycle value per clock: reference-time invocations need their own
	// pinned clock, everything else shares the wall-clock cycle.
	newCycle := func(clock types.Clock) *scheduler.Cycle {
		return scheduler.NewCycle(scheduler.CycleConfig{
			Reminders: cfg.Reminders,
			Events:    db.NewEventRepository(pool),
			Ledger:    db.NewLedgerRepository(pool),
			Processor: service,
			Metrics:   metrics,
			Clock:     clock,
			Logger:    logger,
		})
	}

	logger.Info("reminder worker initialized",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"queue_url", cfg.Queue.MessageQueueURL,
	)

	handler := newHandler(newCycle, logger)

	if cfg.Environment == "local" {
		result, err := handler(ctx, WorkerInput{})
		pool.Close()
		if err != nil {
			logger.Error("local cycle failed", "error", err.Error())
			os.Exit(1)
		}
		logger.Info(result)
		return
	}

	lambda.Start(handler)
}

// newHandler creates the Lambda handler. It maps the optional payload onto
// the cycle clock and folds the cycle report into the invocation result.
func newHandler(newCycle func(types.Clock) *scheduler.Cycle, logger types.Logger) func(ctx context.Context, input WorkerInput) (string, error) {
	return func(ctx context.Context, input WorkerInput) (string, error) {
		var clock types.Clock = types.RealClock{}
		if input.ReferenceTime != nil {
			clock = fixedClock{at: input.ReferenceTime.UTC()}
			logger.Info("running with reference time override",
				"reference_time", input.ReferenceTime.UTC().Format(time.RFC3339),
			)
		}

		report, err := newCycle(clock).Run(ctx)
		if err != nil {
			return "", fmt.Errorf("reminder cycle failed: %w", err)
		}
		if report.Disabled {
			return "cycle skipped: reminders disabled", nil
		}

		return fmt.Sprintf("cycle complete: %d events seen, %d reminders sent, %d send failures",
			report.EventsSeen, report.RemindersSent, report.SendFailures), nil
	}
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
