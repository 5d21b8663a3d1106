package messaging

import (
	"context"
)

// Vendor represents the name of a messaging vendor
type Vendor string

// Supported vendors
const (
	VendorMemory Vendor = "memory"
	VendorFs     Vendor = "fs"
)

// Queue represents an abstract message queue for any payload type
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue. Implementations
	// that cannot block may return a nil message when the queue is empty.
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message; the queue redelivers
	// it until the retry budget is spent and then dead-letters it.
	Nack(err error) error
}

// DeadLetters exposes payloads that exhausted their retries
type DeadLetters[T any] interface {
	DeadLetters(ctx context.Context) ([]*T, error)
}
