package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	apierrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage/postgres"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage/sqlite"
)

// OpenStore opens the snapshot store selected by cfg.Storage.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (storage.SnapshotStore, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := sqlite.Open(paths.SQLiteFile)
		if err != nil {
			return nil, apierrors.NewStorageError("open sqlite store", err).
				WithContext("path", paths.SQLiteFile)
		}
		logger.Info("snapshot store opened",
			slog.String("driver", "sqlite"),
			slog.String("path", store.Path()))
		return store, nil

	case "postgres":
		store, err := postgres.Connect(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, apierrors.NewStorageError("connect postgres store", err).
				WithContext("host", cfg.Storage.Postgres.Host).
				WithContext("database", cfg.Storage.Postgres.Database)
		}
		logger.Info("snapshot store opened",
			slog.String("driver", "postgres"),
			slog.String("host", cfg.Storage.Postgres.Host),
			slog.String("database", cfg.Storage.Postgres.Database))
		return store, nil

	case "memory":
		logger.Warn("using in-memory snapshot store, history is lost on exit")
		return storage.NewMemoryStore(), nil

	default:
		return nil, apierrors.NewConfigError(fmt.Sprintf("unknown storage driver %q", cfg.Storage.Driver), nil)
	}
}
