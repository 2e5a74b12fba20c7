package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ConnectionOptions struct {
	URL           string
	RetryAttempts int
	Delay         time.Duration
	Logger        *slog.Logger

	// Dial defaults to amqp.Dial.
	Dial func(url string) (*amqp.Connection, error)
}

const MaxDelay = 60 * time.Second

// DialWithRetry connects to RabbitMQ with capped exponential backoff and
// gives up early when ctx is cancelled.
func DialWithRetry(ctx context.Context, opts ConnectionOptions) (*amqp.Connection, error) {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	dial := opts.Dial
	if dial == nil {
		dial = amqp.Dial
	}

	var lastErr error
	for attempt := 1; attempt <= opts.RetryAttempts; attempt++ {
		conn, err := dial(opts.URL)
		if err == nil {
			if attempt > 1 {
				opts.Logger.Info("rabbitmq connected", slog.Int("attempt", attempt))
			}
			return conn, nil
		}
		lastErr = err

		if attempt == opts.RetryAttempts {
			break
		}

		sleep := backoff(opts.Delay, attempt)
		opts.Logger.Warn("rabbitmq dial failed",
			slog.Int("attempt", attempt),
			slog.Duration("sleep", sleep),
			slog.Any("error", err),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("connecting to rabbitmq after %d attempts: %w", opts.RetryAttempts, lastErr)
}

func backoff(base time.Duration, attempt int) time.Duration {
	sleep := base << (attempt - 1)
	if sleep <= 0 || sleep > MaxDelay {
		return MaxDelay
	}
	return sleep
}
