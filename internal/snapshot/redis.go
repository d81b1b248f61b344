package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/session"
)

// RedisStore keeps the snapshot under one string key per client profile.
// The key has no TTL.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client, profile string) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		key: config.CacheKey.SessionSnapshotKey(profile),
	}
}

func (r *RedisStore) Key() string { return r.key }

func (r *RedisStore) Load(ctx context.Context) (*session.Snapshot, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", r.key, err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", r.key, err)
	}
	return &snap, nil
}

func (r *RedisStore) Save(ctx context.Context, snap session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot %s: %w", r.key, err)
	}
	return nil
}
