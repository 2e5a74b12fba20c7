package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Priya8975/crm-automation-dispatch/internal/config"
	"github.com/Priya8975/crm-automation-dispatch/internal/store"
)

// openBackend connects to the configured configs backend. For postgres the
// schema migrations are applied first.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pg, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to PostgreSQL")

		applied, err := pg.RunMigrations(ctx)
		if err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("database migrations applied", "count", applied)
		return pg, pg.Close, nil

	case config.BackendMongo:
		m, err := store.NewMongo(ctx, cfg.Store.MongoURL, cfg.Store.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to MongoDB", "database", cfg.Store.MongoDatabase)
		return m, func() {
			if err := m.Close(context.Background()); err != nil {
				logger.Warn("mongo disconnect failed", "error", err)
			}
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown config backend %q", cfg.Store.Backend)
}

// amqpCheck reports a closed RabbitMQ connection to the health endpoint.
type amqpCheck struct {
	conn *amqp.Connection
}

func (c amqpCheck) Ping(ctx context.Context) error {
	if c.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}
