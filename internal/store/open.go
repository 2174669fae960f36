package store

import (
	"fmt"
	"log/slog"

	"cryptorecs/internal/config"
)

// Open builds the store selected by cfg.Driver wrapped in a Guarded store
func Open(cfg config.StorageConfig, logger *slog.Logger, opts ...GuardOption) (*Guarded, error) {
	var base Store
	switch cfg.Driver {
	case "", "memory":
		base = NewMemoryStore()
	case "sqlite", "postgres":
		s, err := OpenSQL(SQLOptions{
			Driver:     cfg.Driver,
			DSN:        cfg.DSN,
			LogQueries: cfg.LogQueries,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		base = s
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	logger.Info("price store opened", slog.String("driver", cfg.Driver), slog.Duration("query_timeout", cfg.QueryTimeout))
	return NewGuarded(base, cfg.QueryTimeout, opts...), nil
}
