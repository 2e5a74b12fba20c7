package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Priya8975/crm-automation-dispatch/internal/api"
	"github.com/Priya8975/crm-automation-dispatch/internal/automation"
	"github.com/Priya8975/crm-automation-dispatch/internal/broker"
	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
	"github.com/Priya8975/crm-automation-dispatch/internal/guard"
	"github.com/Priya8975/crm-automation-dispatch/internal/notifier"
	"github.com/Priya8975/crm-automation-dispatch/internal/pubsub"
	"github.com/Priya8975/crm-automation-dispatch/internal/store"
	ws "github.com/Priya8975/crm-automation-dispatch/internal/websocket"
	"github.com/Priya8975/crm-automation-dispatch/internal/worker"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and automation workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(parent context.Context, cmdCtx *commandContext) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger := cmdCtx.logger()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	redisStore, err := store.NewRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")
	rdb := redisStore.Client()

	conn, err := broker.DialWithRetry(ctx, broker.ConnectionOptions{
		URL:           cfg.Broker.URL,
		RetryAttempts: cfg.Broker.RetryAttempts,
		Delay:         time.Second,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	rpc, err := broker.NewRPCClient(conn, broker.RPCOptions{Timeout: cfg.Broker.RPCTimeout.Duration}, logger)
	if err != nil {
		return err
	}
	defer rpc.Close()
	logger.Info("connected to RabbitMQ", "queue", cfg.Broker.Queue)

	// Live delivery: publish through Redis, every instance relays to its hub
	var publisher pubsub.Publisher = pubsub.Unconfigured{}
	var realtime http.HandlerFunc
	if cfg.Realtime.Enabled {
		hub := ws.NewHub(logger, domain.TopicAutomationResponded)
		go hub.Run(ctx)

		relay := pubsub.NewRelay(rdb, hub, logger, domain.TopicAutomationResponded)
		go func() {
			if err := relay.Run(ctx, nil); err != nil {
				logger.Error("realtime relay stopped", "error", err)
			}
		}()

		publisher = pubsub.NewRedisPublisher(rdb, domain.TopicAutomationResponded)
		realtime = hub.HandleWebSocket
	}

	configs := store.NewCachedConfigStore(backend, rdb, cfg.Store.CacheTTL.Duration, logger)
	breaker := guard.NewBreaker(rdb, guard.BreakerOptions{
		FailureThreshold: cfg.Webhook.BreakerThreshold,
		Cooldown:         cfg.Webhook.BreakerCooldown.Duration,
	}, logger)

	dispatcher := automation.NewDispatcher(map[string]automation.Notifier{
		domain.IntegrationExa: notifier.NewRPCNotifier(rpc, publisher, cfg.Broker.Queue, logger),
		domain.IntegrationN8N: notifier.NewWebhookNotifier(notifier.WebhookOptions{
			BaseURL: cfg.Webhook.BaseURL,
			Path:    cfg.Webhook.Path,
			Timeout: cfg.Webhook.Timeout.Duration,
			Breaker: breaker,
		}, logger),
	}, logger)

	gate := automation.NewGate(configs, automation.GateOptions{TestMode: cfg.Automation.TestMode})
	helper := automation.NewHelper(gate, dispatcher, logger)

	pool := worker.NewPool(worker.PoolOptions{
		NumWorkers: cfg.Automation.NumWorkers,
		JobTimeout: cfg.Automation.JobTimeout.Duration,
	}, helper, logger)
	pool.Start()

	router := api.NewRouter(api.Deps{
		Configs:  configs,
		Jobs:     pool,
		Limiter:  guard.NewRateLimiter(rdb, cfg.Automation.RateLimit, time.Second, logger),
		Circuits: breaker,
		Checks: map[string]api.Pinger{
			"store":    backend,
			"redis":    redisStore,
			"rabbitmq": amqpCheck{conn: conn},
		},
		Realtime: realtime,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "test_mode", cfg.Automation.TestMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		pool.Stop()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	pool.Stop()

	logger.Info("server stopped")
	return nil
}
