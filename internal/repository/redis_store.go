package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
	errpkg "github.com/veranemoloko/bulk-downloader/internal/errors"
)

// RedisProgressStore keeps completed keys in a Redis set and the checkpoint
// document under a string key.
type RedisProgressStore struct {
	*completedSet
	client *redis.Client
	prefix string
}

func (r *RedisProgressStore) completedKey() string  { return r.prefix + ":completed" }
func (r *RedisProgressStore) checkpointKey() string { return r.prefix + ":checkpoint" }

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisProgressStore creates a store using keys under prefix.
func NewRedisProgressStore(client *redis.Client, prefix string) *RedisProgressStore {
	if prefix == "" {
		prefix = "bulk-downloader"
	}
	return &RedisProgressStore{
		completedSet: newCompletedSet(),
		client:       client,
		prefix:       prefix,
	}
}

// Load seeds the completed set from Redis. The set is authoritative for
// membership; the checkpoint document supplies the statistics.
func (r *RedisProgressStore) Load(ctx context.Context) (*domain.Checkpoint, error) {
	members, err := r.client.SMembers(ctx, r.completedKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read completed set: %w", err)
	}

	data, err := r.client.Get(ctx, r.checkpointKey()).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis read checkpoint: %w", err)
	}

	if len(members) == 0 && len(data) == 0 {
		slog.Info("no checkpoint in redis, starting with empty progress", "prefix", r.prefix)
		return nil, nil
	}

	var cp domain.Checkpoint
	if len(data) > 0 {
		if err := json.Unmarshal(data, &cp); err != nil {
			return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
		}
	}

	r.addAll(cp.CompletedKeys)
	r.addAll(members)
	cp.CompletedKeys = r.CompletedKeys()

	slog.Info("checkpoint loaded from redis", "completed", len(cp.CompletedKeys), "prefix", r.prefix)
	return &cp, nil
}

// Save adds the completed keys and replaces the checkpoint document in one
// MULTI/EXEC transaction. Keys are never removed from the set.
func (r *RedisProgressStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	r.mergeKeys(cp)
	if cp.LastSaved.IsZero() {
		cp.LastSaved = time.Now().UTC()
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("%w: marshal checkpoint: %v", errpkg.ErrCheckpointPersistence, err)
	}

	members := make([]any, len(cp.CompletedKeys))
	for i, k := range cp.CompletedKeys {
		members[i] = k
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(members) > 0 {
			pipe.SAdd(ctx, r.completedKey(), members...)
		}
		pipe.Set(ctx, r.checkpointKey(), data, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis save: %v", errpkg.ErrCheckpointPersistence, err)
	}

	slog.Debug("checkpoint saved to redis", "completed", len(cp.CompletedKeys), "prefix", r.prefix)
	return nil
}
