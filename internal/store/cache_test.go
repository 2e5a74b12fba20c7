package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

type memoryStore struct {
	mu      sync.Mutex
	values  map[string]any
	lookups int
	err     error
}

func (m *memoryStore) GetConfig(ctx context.Context, code string) (*domain.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.values[code]
	if !ok {
		return nil, nil
	}
	return &domain.Config{Code: code, Value: v}, nil
}

func (m *memoryStore) SetConfig(ctx context.Context, code string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]any{}
	}
	m.values[code] = value
	return nil
}

func setupCachedStore(t *testing.T, backing *memoryStore) (*CachedConfigStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewCachedConfigStore(backing, client, time.Minute, logger), mr
}

func TestCachedConfigStore_CachesHits(t *testing.T) {
	backing := &memoryStore{values: map[string]any{
		domain.ConfigAPITokens: map[string]any{"n8n": "t1"},
	}}
	s, mr := setupCachedStore(t, backing)
	ctx := context.Background()

	first, err := s.GetConfig(ctx, domain.ConfigAPITokens)
	require.NoError(t, err)
	second, err := s.GetConfig(ctx, domain.ConfigAPITokens)
	require.NoError(t, err)

	assert.Equal(t, 1, backing.lookups)
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]any{"n8n": "t1"}, second.Value)
	assert.True(t, mr.Exists("config:API_TOKENS"))
	assert.Equal(t, time.Minute, mr.TTL("config:API_TOKENS"))
}

func TestCachedConfigStore_MissIsNotCached(t *testing.T) {
	backing := &memoryStore{}
	s, mr := setupCachedStore(t, backing)
	ctx := context.Background()

	cfg, err := s.GetConfig(ctx, domain.ConfigAPIKey)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	s.GetConfig(ctx, domain.ConfigAPIKey)
	assert.Equal(t, 2, backing.lookups)
	assert.False(t, mr.Exists("config:API_KEY"))
}

func TestCachedConfigStore_SetInvalidates(t *testing.T) {
	backing := &memoryStore{values: map[string]any{domain.ConfigAPIKey: "old"}}
	s, _ := setupCachedStore(t, backing)
	ctx := context.Background()

	_, err := s.GetConfig(ctx, domain.ConfigAPIKey)
	require.NoError(t, err)

	require.NoError(t, s.SetConfig(ctx, domain.ConfigAPIKey, "new"))

	cfg, err := s.GetConfig(ctx, domain.ConfigAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.Value)
	assert.Equal(t, 2, backing.lookups)
}

func TestCachedConfigStore_RedisDownFallsBack(t *testing.T) {
	backing := &memoryStore{values: map[string]any{domain.ConfigAPIKey: "k"}}
	s, mr := setupCachedStore(t, backing)
	mr.Close()

	cfg, err := s.GetConfig(context.Background(), domain.ConfigAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Value)
}

func TestCachedConfigStore_BackingErrorPropagates(t *testing.T) {
	boom := errors.New("mongo unavailable")
	s, _ := setupCachedStore(t, &memoryStore{err: boom})

	_, err := s.GetConfig(context.Background(), domain.ConfigAPIKey)
	assert.ErrorIs(t, err, boom)
}
