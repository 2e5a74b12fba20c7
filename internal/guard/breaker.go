package guard

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// BreakerOptions tunes when an integration's circuit opens and how long it
// stays open.
type BreakerOptions struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// Breaker is a Redis-backed circuit breaker shared by every instance,
// keyed by integration name (cb:n8n, cb:exa).
//
// closed: calls go through, failures are counted.
// open: calls are skipped until the cooldown elapses.
// half-open: a trial call decides between closed and open.
type Breaker struct {
	client    *redis.Client
	logger    *slog.Logger
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// Circuit is the snapshot reported by the health endpoint.
type Circuit struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewBreaker(client *redis.Client, opts BreakerOptions, logger *slog.Logger) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	return &Breaker{
		client:    client,
		logger:    logger,
		threshold: opts.FailureThreshold,
		cooldown:  opts.Cooldown,
		now:       time.Now,
	}
}

func breakerKey(integration string) string {
	return "cb:" + integration
}

type circuitRecord struct {
	state        string
	failures     int
	lastFailedAt int64
}

func (b *Breaker) load(ctx context.Context, integration string) (circuitRecord, error) {
	data, err := b.client.HGetAll(ctx, breakerKey(integration)).Result()
	if err != nil {
		return circuitRecord{}, err
	}

	rec := circuitRecord{state: data["state"]}
	if rec.state == "" {
		rec.state = StateClosed
	}
	rec.failures, _ = strconv.Atoi(data["failures"])
	rec.lastFailedAt, _ = strconv.ParseInt(data["last_failed_at"], 10, 64)
	return rec, nil
}

func (b *Breaker) cooledDown(rec circuitRecord) bool {
	return b.now().Unix()-rec.lastFailedAt >= int64(b.cooldown.Seconds())
}

// AllowRequest reports the circuit state and whether a call may proceed.
// Redis errors fail open.
func (b *Breaker) AllowRequest(ctx context.Context, integration string) (string, bool) {
	rec, err := b.load(ctx, integration)
	if err != nil {
		b.logger.Error("circuit breaker lookup failed", "integration", integration, "error", err)
		return StateClosed, true
	}

	if rec.state != StateOpen {
		return rec.state, true
	}
	if !b.cooledDown(rec) {
		return StateOpen, false
	}

	b.client.HSet(ctx, breakerKey(integration), "state", StateHalfOpen)
	b.logger.Info("circuit breaker half-open", "integration", integration)
	return StateHalfOpen, true
}

// RecordSuccess closes the circuit and clears the failure count.
func (b *Breaker) RecordSuccess(ctx context.Context, integration string) {
	key := breakerKey(integration)
	prev, _ := b.client.HGet(ctx, key, "state").Result()

	if err := b.client.HSet(ctx, key, "state", StateClosed, "failures", 0).Err(); err != nil {
		b.logger.Error("failed to record circuit breaker success", "integration", integration, "error", err)
		return
	}
	if prev == StateHalfOpen {
		b.logger.Info("circuit breaker closed", "integration", integration)
	}
}

// RecordFailure counts a failure and opens the circuit at the threshold or
// when a half-open trial fails.
func (b *Breaker) RecordFailure(ctx context.Context, integration string) {
	key := breakerKey(integration)

	failures, err := b.client.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		b.logger.Error("failed to record circuit breaker failure", "integration", integration, "error", err)
		return
	}
	b.client.HSet(ctx, key, "last_failed_at", b.now().Unix())

	prev, _ := b.client.HGet(ctx, key, "state").Result()
	switch {
	case prev == StateHalfOpen:
		b.client.HSet(ctx, key, "state", StateOpen)
		b.logger.Warn("circuit breaker re-opened", "integration", integration)
	case failures >= int64(b.threshold):
		b.client.HSet(ctx, key, "state", StateOpen)
		b.logger.Warn("circuit breaker opened",
			"integration", integration,
			"failures", failures,
			"threshold", b.threshold,
		)
	case prev == "":
		b.client.HSet(ctx, key, "state", StateClosed)
	}
}

// State returns the circuit snapshot without changing it.
func (b *Breaker) State(ctx context.Context, integration string) Circuit {
	rec, err := b.load(ctx, integration)
	if err != nil {
		return Circuit{State: StateClosed}
	}

	c := Circuit{State: rec.state, Failures: rec.failures}
	if c.State == StateOpen && b.cooledDown(rec) {
		c.State = StateHalfOpen
	}
	if rec.lastFailedAt > 0 {
		c.LastFailedAt = time.Unix(rec.lastFailedAt, 0).UTC().Format(time.RFC3339)
	}
	return c
}
