package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DirectReplyTo is RabbitMQ's pseudo-queue for RPC replies.
const DirectReplyTo = "amq.rabbitmq.reply-to"

var (
	ErrRPCTimeout   = errors.New("rpc timed out")
	ErrClientClosed = errors.New("rpc client closed")
)

// Channel is the subset of *amqp.Channel the RPC client needs.
type Channel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RPCOptions struct {
	Timeout time.Duration
}

// RPCClient sends request/reply messages over RabbitMQ using direct
// reply-to. One client owns one channel; calls may run concurrently.
type RPCClient struct {
	ch      Channel
	timeout time.Duration
	newID   func() string
	logger  *slog.Logger

	publishMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan amqp.Delivery
	closed  bool
	done    chan struct{}
}

// NewRPCClient opens a channel on conn and starts consuming replies.
func NewRPCClient(conn *amqp.Connection, opts RPCOptions, logger *slog.Logger) (*RPCClient, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	client, err := newRPCClient(ch, opts, logger)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return client, nil
}

func newRPCClient(ch Channel, opts RPCOptions, logger *slog.Logger) (*RPCClient, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	replies, err := ch.Consume(DirectReplyTo, "", true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consuming %s: %w", DirectReplyTo, err)
	}

	c := &RPCClient{
		ch:      ch,
		timeout: opts.Timeout,
		newID:   uuid.NewString,
		logger:  logger,
		pending: make(map[string]chan amqp.Delivery),
		done:    make(chan struct{}),
	}
	go c.consume(replies)
	return c, nil
}

func (c *RPCClient) consume(replies <-chan amqp.Delivery) {
	for d := range replies {
		c.mu.Lock()
		waiter, ok := c.pending[d.CorrelationId]
		if ok {
			delete(c.pending, d.CorrelationId)
		}
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("dropping rpc reply with unknown correlation id", "correlation_id", d.CorrelationId)
			continue
		}
		waiter <- d
	}
	c.shutdown()
}

// Call publishes request as JSON to queue and decodes the matching reply
// into reply. It waits at most the configured timeout.
func (c *RPCClient) Call(ctx context.Context, queue string, request any, reply any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshaling rpc request: %w", err)
	}

	id := c.newID()
	waiter := make(chan amqp.Delivery, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.pending[id] = waiter
	c.mu.Unlock()
	defer c.forget(id)

	c.publishMu.Lock()
	err = c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: id,
		ReplyTo:       DirectReplyTo,
		Timestamp:     time.Now(),
		Body:          body,
	})
	c.publishMu.Unlock()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", queue, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case d := <-waiter:
		if reply == nil {
			return nil
		}
		if err := json.Unmarshal(d.Body, reply); err != nil {
			return fmt.Errorf("decoding rpc reply from %s: %w", queue, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s after %s: %w", queue, c.timeout, ErrRPCTimeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClientClosed
	}
}

func (c *RPCClient) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Pending returns the number of calls waiting for a reply.
func (c *RPCClient) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *RPCClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Close fails every pending call with ErrClientClosed and closes the channel.
func (c *RPCClient) Close() error {
	c.shutdown()
	return c.ch.Close()
}
