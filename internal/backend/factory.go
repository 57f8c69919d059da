package backend

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/storage"
	"bilancio/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return &BackendResult{Backend: memory.NewStore()}, nil
	case SQLiteBackend:
		return f.createSQLBackend(ctx, storage.DialectSQLite, config.SQLiteDBPath)
	case PostgresBackend:
		return f.createSQLBackend(ctx, storage.DialectPostgres, config.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, dialect storage.Dialect, dsn string) (*BackendResult, error) {
	repo, err := storage.NewRepository(ctx, dialect, dsn, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", dialect, err)
	}

	f.logger.Info("Initialized SQL backend", "dialect", dialect)
	return &BackendResult{
		Backend: repo,
		Cleanup: repo.Close,
	}, nil
}
