package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
	"github.com/Priya8975/crm-automation-dispatch/internal/pubsub"
)

const (
	DefaultAutomationQueue = "rpc_queue:erxes-api_erxes-automations"
	CheckAutomationAction  = "get-response-check-automation"
)

// RPCRequest is the message sent over the automation queue.
type RPCRequest struct {
	Action string                     `json:"action"`
	Data   domain.NotificationPayload `json:"data"`
}

// RPCClient sends one request over a queue and decodes the single reply.
type RPCClient interface {
	Call(ctx context.Context, queue string, request any, reply any) error
}

// RPCNotifier asks the automation service for a response and republishes a
// non-empty one to live subscribers.
type RPCNotifier struct {
	client    RPCClient
	publisher pubsub.Publisher
	queue     string
	newID     func() string
	logger    *slog.Logger
}

func NewRPCNotifier(client RPCClient, publisher pubsub.Publisher, queue string, logger *slog.Logger) *RPCNotifier {
	if queue == "" {
		queue = DefaultAutomationQueue
	}
	return &RPCNotifier{
		client:    client,
		publisher: publisher,
		queue:     queue,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// Notify only returns publish errors; a failed or timed out RPC round-trip is
// logged and dropped.
func (n *RPCNotifier) Notify(ctx context.Context, payload domain.NotificationPayload, user *domain.User) error {
	var reply domain.AutomationResponse
	err := n.client.Call(ctx, n.queue, RPCRequest{Action: CheckAutomationAction, Data: payload}, &reply)
	if err != nil {
		n.logger.Warn("automation rpc failed",
			"queue", n.queue,
			"kind", payload["kind"],
			"error", err,
		)
		return nil
	}

	if len(reply.Response) == 0 {
		return nil
	}

	event := domain.AutomationResponded{
		UserID:      user.ID,
		ResponseID:  n.newID(),
		SessionCode: user.SessionCode,
		Content:     reply.Response,
	}

	err = n.publisher.Publish(ctx, domain.TopicAutomationResponded, map[string]any{
		domain.TopicAutomationResponded: event,
	})
	if err != nil {
		if isMissingConfiguration(err) {
			n.logger.Debug("no live subscribers configured", "topic", domain.TopicAutomationResponded)
			return nil
		}
		return fmt.Errorf("publishing %s: %w", domain.TopicAutomationResponded, err)
	}

	n.logger.Info("automation response published",
		"user_id", user.ID,
		"response_id", event.ResponseID,
		"entries", len(reply.Response),
	)
	return nil
}

func isMissingConfiguration(err error) bool {
	return errors.Is(err, pubsub.ErrConfigurationMissing) || err.Error() == pubsub.ErrConfigurationMissing.Error()
}
