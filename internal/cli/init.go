// Package cli holds the start-up plumbing shared by the bilancio binaries:
// environment loading, logging, backend selection and service assembly.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/backend"
	"bilancio/internal/cache"
	"bilancio/internal/config"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/notify"
	"bilancio/internal/services"
	"bilancio/internal/sheets"
	gsheet "bilancio/internal/sheets/google"
	memsheet "bilancio/internal/sheets/memory"

	"github.com/joho/godotenv"
)

const cacheCleanupInterval = time.Minute

// SetupLogger builds the process logger at the given LOG_LEVEL and makes it
// the slog default.
func SetupLogger(level, component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits the process when it is invalid.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// Options selects the optional collaborators Bootstrap connects.
type Options struct {
	// Messaging connects to the broker when AMQP_URL is set.
	Messaging bool
	// Export connects to Google Sheets when GOOGLE_SPREADSHEET_ID is set and
	// falls back to an in-memory exporter otherwise.
	Export bool
}

// App is an assembled budget service and the resources behind it.
type App struct {
	Config *config.Config
	Logger *applog.Logger
	Store  backend.Backend
	Budget *services.BudgetService
	// AMQP is nil unless messaging was requested and configured.
	AMQP *amqp.Client

	cleanup []func() error
}

// Bootstrap opens the configured backend and builds the budget service on top
// of it with the snapshot cache and the requested collaborators.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts Options) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}
	app.Store = result.Backend
	if result.Cleanup != nil {
		app.cleanup = append(app.cleanup, result.Cleanup)
	}

	snapshots := cache.NewLRUCache[services.SnapshotKey, core.Snapshot](cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL)
	manager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	manager.Register(snapshots)
	manager.StartCleanup(cacheCleanupInterval)
	app.cleanup = append(app.cleanup, func() error { manager.Stop(); return nil })

	svcOpts := []services.Option{
		services.WithCache(snapshots),
		services.WithClock(time.Now, cfg.Location()),
		services.WithLogger(logger.WithComponent(applog.ComponentBudget).Logger),
	}

	if opts.Messaging && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
		app.AMQP = client
		app.cleanup = append(app.cleanup, client.Close)
		svcOpts = append(svcOpts, services.WithPublisher(client))
		logger.Info("Budget change events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	if opts.Export {
		exporter, err := newExporter(ctx, cfg, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		svcOpts = append(svcOpts, services.WithExporter(exporter))
	}

	app.Budget = services.NewBudgetService(app.Store, svcOpts...)
	return app, nil
}

func newExporter(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.SnapshotExporter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled, snapshots are exported in memory")
		return memsheet.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets exporter: %w", err)
	}
	return client, nil
}

// NewNotifier sends reminders by e-mail when SMTP is configured and logs them otherwise.
func NewNotifier(cfg *config.Config, logger *applog.Logger) notify.Notifier {
	l := logger.WithComponent(applog.ComponentNotify).Logger
	if !cfg.SMTPEnabled() {
		logger.Info("SMTP disabled, reminders are logged only")
		return notify.NewLogNotifier(l)
	}
	return notify.NewEmailNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SenderEmail,
	}, l)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	return errors.Join(errs...)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. Once the
// signal arrives cleanup runs with a context bounded by timeout, and done is
// closed when it returns.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the shutdown sequence has finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
