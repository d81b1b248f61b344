package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisClient connects to redisURL, names the connection clientName
// (visible in CLIENT LIST) and pings it. The server and the candidate
// client's redis snapshot backend both use it.
func NewRedisClient(ctx context.Context, redisURL, clientName string, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if clientName != "" {
		opt.ClientName = clientName
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Str("client_name", opt.ClientName).
		Msg("Redis connected")

	return rdb, nil
}
