package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

var _ apphttp.Budget = (*services.BudgetService)(nil)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	app, err := cli.Bootstrap(context.Background(), cfg, logger, cli.Options{Messaging: true, Export: true})
	if err != nil {
		logger.Error("Failed to start budget service", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		JWTSecret:          cfg.JWTSecret,
		JWTIssuer:          cfg.JWTIssuer,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		BlockSuspicious:    cfg.BlockSuspicious,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
	}, app.Budget)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", applog.FieldError, err)
		}
	})

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set, owners are taken from the X-Owner-ID header")
	}
	logger.Info("Starting bilancio server", "port", cfg.Port, "backend", cfg.DataBackend, "timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		app.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
