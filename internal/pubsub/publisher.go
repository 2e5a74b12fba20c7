package pubsub

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrConfigurationMissing is returned when live delivery has not been set up
// for a topic. Callers treat it as "nobody is listening".
var ErrConfigurationMissing = errors.New("Configuration does not exist")

// Publisher fans a payload out to live subscribers of a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Message is the wire envelope shared between instances.
type Message struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Unconfigured is the publisher used when live delivery is disabled.
type Unconfigured struct{}

func (Unconfigured) Publish(ctx context.Context, topic string, payload any) error {
	return ErrConfigurationMissing
}
