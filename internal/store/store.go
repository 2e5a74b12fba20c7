package store

import (
	"context"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

// ConfigStore reads and writes configs records. A missing record is
// reported as nil with no error.
type ConfigStore interface {
	GetConfig(ctx context.Context, code string) (*domain.Config, error)
	SetConfig(ctx context.Context, code string, value any) error
}

// ConfigSeeder is used by the env migration.
type ConfigSeeder interface {
	CountConfigs(ctx context.Context) (int64, error)
	InsertConfigs(ctx context.Context, configs []domain.Config) error
}

// Backend is a full configs backend.
type Backend interface {
	ConfigStore
	ConfigSeeder
	Ping(ctx context.Context) error
}
