package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

// CachedConfigStore keeps configs in Redis for ttl in front of a slower
// store. Redis problems are logged and the backing store answers instead.
type CachedConfigStore struct {
	next   ConfigStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedConfigStore(next ConfigStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedConfigStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedConfigStore{next: next, client: client, ttl: ttl, logger: logger}
}

func configCacheKey(code string) string {
	return "config:" + code
}

func (s *CachedConfigStore) GetConfig(ctx context.Context, code string) (*domain.Config, error) {
	key := configCacheKey(code)

	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cfg domain.Config
		if err := json.Unmarshal(data, &cfg); err == nil {
			return &cfg, nil
		}
		s.logger.Warn("discarding unreadable cached config", "code", code)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("config cache read failed", "code", code, "error", err)
	}

	cfg, err := s.next.GetConfig(ctx, code)
	if err != nil || cfg == nil {
		return cfg, err
	}

	if data, err := json.Marshal(cfg); err == nil {
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("config cache write failed", "code", code, "error", err)
		}
	}
	return cfg, nil
}

// SetConfig writes through and drops the cached copy.
func (s *CachedConfigStore) SetConfig(ctx context.Context, code string, value any) error {
	if err := s.next.SetConfig(ctx, code, value); err != nil {
		return err
	}
	if err := s.client.Del(ctx, configCacheKey(code)).Err(); err != nil {
		return fmt.Errorf("invalidating cached config %s: %w", code, err)
	}
	return nil
}
