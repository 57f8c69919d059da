package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bilancio/internal/cli"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting bilancio-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	app, err := cli.Bootstrap(context.Background(), cfg, logger, cli.Options{Messaging: true})
	if err != nil {
		logger.Error("Failed to start budget service", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	processor := services.NewReminderProcessor(app.Budget, cli.NewNotifier(cfg, logger), cfg.ReminderHorizonDays,
		logger.WithComponent(applog.ComponentReminder).Logger)
	reminders := worker.NewReminderWorker(processor, cfg.ReminderSchedule, cfg.Location(), logger.Logger)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := reminders.Stop(shutdownCtx); err != nil {
			logger.Warn("Reminder sweep still running at shutdown", applog.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", applog.FieldError, err)
		}
	})

	if cfg.ReminderOnStartup {
		logger.Info("Performing startup reminder sweep")
		if err := reminders.RunNow(ctx); err != nil {
			logger.Error("Startup reminder sweep failed", applog.FieldError, err)
		}
	}

	if err := reminders.Start(ctx); err != nil {
		logger.Error("Failed to schedule reminders", applog.FieldError, err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("Next reminder sweep", "at", reminders.Next())

	if app.AMQP != nil {
		go func() {
			err := app.AMQP.ConsumeBudgetChanged(ctx, reminders.HandleBudgetChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Budget change consumption stopped", applog.FieldError, err)
			}
		}()
	} else {
		logger.Info("AMQP_URL not set, reminders follow the schedule only")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
