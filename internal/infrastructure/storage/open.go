package storage

import (
	"context"
	"fmt"

	"github.com/juju/clock"

	"StoryStream/internal/config"
	"StoryStream/internal/domain"
	"StoryStream/internal/ports"
)

// Open builds the record store selected by cfg.Database.Backend.
func Open(ctx context.Context, cfg config.Config, clk clock.Clock) (ports.RecordStore, error) {
	switch cfg.Database.Backend {
	case config.BackendPostgres, "":
		db, err := OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		return NewPostgresRepository(db, clk), nil
	case config.BackendRedis:
		return NewRedisRepository(ctx, cfg.Redis, clk)
	case config.BackendMemory:
		return NewMemoryRepository(clk), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", domain.ErrStorage, cfg.Database.Backend)
	}
}
