// Package registry defines the contract of the durable orchestration host
// that owns workflow instances keyed by trip code.
package registry

import (
	"context"
	"errors"

	"github.com/viant/tripmanager/model/instance"
)

var (
	// ErrNotFound is returned when no instance exists for a key
	ErrNotFound = errors.New("instance not found")

	// ErrAlreadyExists is returned when create races with an active instance
	ErrAlreadyExists = errors.New("instance already exists")

	// ErrNotActive is returned when an instance cannot accept the request
	ErrNotActive = errors.New("instance not active")
)

// Registry creates, inspects, signals and terminates instances by key
type Registry interface {
	// Create starts a new instance. It fails with ErrAlreadyExists while an
	// active instance holds the key.
	Create(ctx context.Context, request *instance.StartRequest) (*instance.Instance, error)

	// Status returns a snapshot of the instance or ErrNotFound
	Status(ctx context.Context, key instance.Key) (*instance.Instance, error)

	// Signal delivers event to a running instance
	Signal(ctx context.Context, key instance.Key, event *instance.Event) error

	// Terminate moves an active instance to terminated with reason
	Terminate(ctx context.Context, key instance.Key, reason string) error
}

// Lister enumerates instances, optionally filtered by status
type Lister interface {
	List(ctx context.Context, statuses ...instance.Status) ([]*instance.Instance, error)
}
