package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/core"
	applog "bilancio/internal/log"

	"github.com/spf13/cobra"
)

var (
	flagOwner string
	flagJSON  bool
)

var rootCmd = &cobra.Command{
	Use:           "bilancioctl",
	Short:         "Inspect and maintain bilancio budgets",
	Long:          "Render budget snapshots, export them, send reminders and run database maintenance from the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	cli.LoadEnvFile()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOwner, "owner", "o", os.Getenv("BILANCIO_OWNER"), "Owner the command acts on")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of tables")
}

// loadConfig reads the environment the same way the server does. Logs go to
// stderr so stdout stays clean for output.
func loadConfig() (*config.Config, *applog.Logger, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Component: applog.ComponentCLI,
		Output:    os.Stderr,
	})
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openApp(ctx context.Context, opts cli.Options) (*cli.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cli.Bootstrap(ctx, cfg, logger, opts)
}

func requireOwner() (string, error) {
	if flagOwner == "" {
		return "", errors.New("an owner is required: pass --owner or set BILANCIO_OWNER")
	}
	return flagOwner, nil
}

func parseDateFlag(name, value string) (core.Date, error) {
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
