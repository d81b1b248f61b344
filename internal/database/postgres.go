package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PoolOptions tunes a pgx pool. Zero values keep the pgx defaults.
type PoolOptions struct {
	// AppName shows up as application_name in pg_stat_activity.
	AppName  string
	MaxConns int32
}

// NewPostgresPool opens a pgx pool and pings it.
func NewPostgresPool(ctx context.Context, databaseURL string, opts PoolOptions, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	if opts.AppName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = opts.AppName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("PostgreSQL connected")

	return pool, nil
}
