package snapshot

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/database"
	"github.com/sanjio/sanjio/internal/session"
)

// Open builds the persistence backend named in cfg. The returned close
// function releases any connection it opened.
func Open(ctx context.Context, cfg config.SnapshotConfig, log zerolog.Logger) (session.Persistence, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.SnapshotMemory:
		return NewMemoryStore(), noop, nil
	case config.SnapshotFile:
		log.Info().Str("path", cfg.Path).Msg("Using file session snapshot")
		return NewFileStore(cfg.Path), noop, nil
	case config.SnapshotRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, "sanjio-take", log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect snapshot redis: %w", err)
		}
		store := NewRedisStore(rdb, cfg.Key)
		log.Info().Str("key", store.Key()).Msg("Using redis session snapshot")
		return store, rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}
