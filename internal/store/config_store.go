package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) GetConfig(ctx context.Context, code string) (*domain.Config, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM configs WHERE code = $1`, code).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying config %s: %w", code, err)
	}

	cfg := &domain.Config{Code: code}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg.Value); err != nil {
			return nil, fmt.Errorf("decoding config %s: %w", code, err)
		}
	}
	return cfg, nil
}

func (s *PostgresStore) SetConfig(ctx context.Context, code string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding config %s: %w", code, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO configs (code, value) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, code, raw)
	if err != nil {
		return fmt.Errorf("upserting config %s: %w", code, err)
	}
	return nil
}

func (s *PostgresStore) CountConfigs(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM configs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting configs: %w", err)
	}
	return count, nil
}

// InsertConfigs inserts all records in one transaction.
func (s *PostgresStore) InsertConfigs(ctx context.Context, configs []domain.Config) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range configs {
		raw, err := json.Marshal(c.Value)
		if err != nil {
			return fmt.Errorf("encoding config %s: %w", c.Code, err)
		}
		batch.Queue(`INSERT INTO configs (code, value) VALUES ($1, $2)`, c.Code, raw)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting configs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing configs: %w", err)
	}
	return nil
}
