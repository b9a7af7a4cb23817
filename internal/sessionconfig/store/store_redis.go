package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/sentinel"
)

// RedisStore keeps the session config as one JSON string under a single key.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

func NewRedisStore(client redis.Cmdable, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Read returns the stored config, creating the default record on first use.
// SETNX keeps two first readers from clobbering a concurrent Write.
func (s *RedisStore) Read(ctx context.Context) (models.SessionConfig, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		def := models.Default()
		raw, err := json.Marshal(def)
		if err != nil {
			return models.SessionConfig{}, fmt.Errorf("marshal config: %w", err)
		}
		created, err := s.client.SetNX(ctx, s.key, raw, 0).Result()
		if err != nil {
			return models.SessionConfig{}, fmt.Errorf("%w: create default config: %v", sentinel.ErrUnavailable, err)
		}
		if created {
			return def, nil
		}
		return s.Read(ctx)
	}
	if err != nil {
		return models.SessionConfig{}, fmt.Errorf("%w: read config: %v", sentinel.ErrUnavailable, err)
	}

	var cfg models.SessionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return models.SessionConfig{}, fmt.Errorf("%w: key %s: %v", sentinel.ErrCorrupt, s.key, err)
	}
	return cfg.Normalize(), nil
}

// Write replaces the stored config.
func (s *RedisStore) Write(ctx context.Context, cfg models.SessionConfig) error {
	raw, err := json.Marshal(cfg.Normalize())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("%w: write config: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}
