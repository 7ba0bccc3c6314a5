// Package backend opens the repository selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alextreichler/qrmenu/internal/config"
	"github.com/alextreichler/qrmenu/internal/store"
	"github.com/alextreichler/qrmenu/internal/store/mongostore"
	"github.com/alextreichler/qrmenu/internal/store/pgstore"
)

// Open connects to the configured store and brings its schema up to date.
func Open(ctx context.Context, cfg config.StoreConfig) (store.Repository, error) {
	slog.Info("Opening store", "driver", cfg.Driver)

	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := store.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return s, nil

	case config.DriverPostgres:
		s, err := pgstore.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return s, nil

	case config.DriverMongo:
		s, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
