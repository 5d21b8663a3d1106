// Package queue drives the coordinator from durable message queues
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/viant/tripmanager/service/messaging"
	"github.com/viant/tripmanager/service/trigger"
)

// Config controls consumer pacing
type Config struct {
	// BackoffBase is the first wait after a failed Consume
	BackoffBase time.Duration `json:"backoffBase" yaml:"backoffBase"`

	// BackoffMax caps the wait between failed Consume calls
	BackoffMax time.Duration `json:"backoffMax" yaml:"backoffMax"`

	// PollInterval is the idle wait when the queue has nothing ready
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
}

// DefaultConfig returns the default consumer configuration
func DefaultConfig() Config {
	return Config{
		BackoffBase:  100 * time.Millisecond,
		BackoffMax:   10 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// Handler processes a single payload
type Handler[T any] func(ctx context.Context, payload *T) error

// Consumer reads messages and applies a handler. Handler success acks,
// invalid input is acked and dropped, any other failure nacks so the
// queue redelivers or dead-letters the message.
type Consumer[T any] struct {
	name    string
	queue   messaging.Queue[T]
	handler Handler[T]
	config  Config
	logger  *slog.Logger
}

// Option configures a consumer
type Option func(*options)

type options struct {
	config Config
	logger *slog.Logger
}

// WithConfig sets consumer pacing
func WithConfig(config Config) Option {
	return func(o *options) {
		o.config = config
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewConsumer creates a consumer named name
func NewConsumer[T any](name string, queue messaging.Queue[T], handler Handler[T], opts ...Option) *Consumer[T] {
	o := &options{config: DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return &Consumer[T]{
		name:    name,
		queue:   queue,
		handler: handler,
		config:  o.config,
		logger:  o.logger.With("consumer", name),
	}
}

// Run consumes until ctx is cancelled
func (c *Consumer[T]) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")
	for {
		msg, err := c.next(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("consumer %s: %w", c.name, err)
		}
		if msg == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.config.PollInterval):
			}
			continue
		}
		c.dispatch(ctx, msg)
	}
}

// next consumes one message, retrying failed Consume calls with capped
// exponential backoff
func (c *Consumer[T]) next(ctx context.Context) (messaging.Message[T], error) {
	var msg messaging.Message[T]
	backoff := retry.WithCappedDuration(c.config.BackoffMax, retry.NewExponential(c.config.BackoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		m, err := c.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			c.logger.Warn("consume failed", "error", err)
			return retry.RetryableError(err)
		}
		msg = m
		return nil
	})
	return msg, err
}

func (c *Consumer[T]) dispatch(ctx context.Context, msg messaging.Message[T]) {
	err := c.handler(ctx, msg.T())
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Warn("ack failed", "error", ackErr)
		}
	case errors.Is(err, trigger.ErrInvalidInput):
		c.logger.Error("message dropped", "error", err)
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Warn("ack failed", "error", ackErr)
		}
	default:
		c.logger.Error("message failed", "error", err)
		if nackErr := msg.Nack(err); nackErr != nil {
			c.logger.Warn("nack failed", "error", nackErr)
		}
	}
}
