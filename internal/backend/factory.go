// Package backend builds the configured storage backend.
package backend

import (
	"context"
	"fmt"

	applog "rashody/internal/log"
	"rashody/internal/storage"
	"rashody/internal/storage/memory"
)

// Factory creates stores based on configuration.
type Factory interface {
	CreateStore(ctx context.Context, config Config) (storage.Store, error)
}

type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateStore opens the store for config.Type. SQL backends are migrated
// before they are returned.
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (storage.Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(ctx, config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil

	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL repository: %w", err)
		}
		f.logger.Info("Initialized PostgreSQL backend")
		return repo, nil

	case MemoryBackend:
		f.logger.Warn("Initialized memory backend, data is lost on exit")
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// MigrationTarget returns the dialect and DSN used by the migrate command.
func MigrationTarget(config Config) (storage.Dialect, string, error) {
	switch config.Type {
	case SQLiteBackend:
		return storage.DialectSQLite, storage.SQLiteDSN(config.SQLiteDBPath), nil
	case PostgresBackend:
		return storage.DialectPostgres, config.DatabaseURL, nil
	default:
		return "", "", fmt.Errorf("backend %s has no schema to migrate", config.Type)
	}
}
