package main

import (
	"fmt"

	"bilancio/internal/config"
	"bilancio/internal/storage"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the configured database",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var dialect storage.Dialect
	var dsn string
	switch cfg.DataBackend {
	case config.BackendSQLite:
		dialect, dsn = storage.DialectSQLite, cfg.SQLiteDBPath
	case config.BackendPostgres:
		dialect, dsn = storage.DialectPostgres, cfg.PostgresDSN
	default:
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "The %s backend has no schema to migrate\n", cfg.DataBackend)
		return err
	}

	logger.Info("Applying migrations", "dialect", dialect)
	if err := storage.RunMigrations(dialect, dsn); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied to the %s database\n", dialect)
	return err
}
