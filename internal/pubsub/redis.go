package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "realtime:"

func channelName(topic string) string {
	return channelPrefix + topic
}

// RedisPublisher publishes to a Redis channel so that every instance can
// forward the message to its own WebSocket clients.
type RedisPublisher struct {
	client *redis.Client
	topics map[string]struct{}
}

func NewRedisPublisher(client *redis.Client, topics ...string) *RedisPublisher {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return &RedisPublisher{client: client, topics: set}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload any) error {
	if _, ok := p.topics[topic]; !ok {
		return ErrConfigurationMissing
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	data, err := json.Marshal(Message{Topic: topic, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	if err := p.client.Publish(ctx, channelName(topic), data).Err(); err != nil {
		return fmt.Errorf("publishing to redis: %w", err)
	}
	return nil
}

// Relay subscribes to the Redis channels of the given topics and forwards
// every message to a local publisher (usually the WebSocket hub).
type Relay struct {
	client *redis.Client
	local  Publisher
	topics []string
	logger *slog.Logger
}

func NewRelay(client *redis.Client, local Publisher, logger *slog.Logger, topics ...string) *Relay {
	return &Relay{client: client, local: local, topics: topics, logger: logger}
}

// Run blocks until ctx is cancelled. ready, when non-nil, is closed once the
// subscription is confirmed.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	channels := make([]string, len(r.topics))
	for i, t := range r.topics {
		channels[i] = channelName(t)
	}

	sub := r.client.Subscribe(ctx, channels...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %v: %w", channels, err)
	}
	if ready != nil {
		close(ready)
	}
	r.logger.Info("realtime relay started", "channels", channels)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("realtime relay stopping")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.forward(ctx, msg)
		}
	}
}

func (r *Relay) forward(ctx context.Context, msg *redis.Message) {
	var m Message
	if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
		r.logger.Error("failed to decode relay message", "channel", msg.Channel, "error", err)
		return
	}
	if err := r.local.Publish(ctx, m.Topic, m.Payload); err != nil {
		r.logger.Warn("relay publish failed", "topic", m.Topic, "error", err)
	}
}
