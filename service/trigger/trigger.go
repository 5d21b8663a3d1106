// Package trigger adapts queue messages and HTTP requests to coordinator
// operations.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/coordinator"
)

// ErrInvalidInput is returned for payloads rejected before the coordinator
var ErrInvalidInput = errors.New("invalid input")

// DefaultTerminateReason is recorded when a terminate request names none
const DefaultTerminateReason = "api request"

// Coordinator is the set of operations the triggers drive
type Coordinator interface {
	EnsureStarted(ctx context.Context, key instance.Key, payload json.RawMessage) (coordinator.StartOutcome, error)
	GetStatus(ctx context.Context, key instance.Key) (*instance.Instance, error)
	SendEvent(ctx context.Context, key instance.Key, name, payload string) (coordinator.Delivery, error)
	Terminate(ctx context.Context, key instance.Key, reason string) (coordinator.TerminateOutcome, error)
}

// Lister is the optional listing capability of a coordinator
type Lister interface {
	List(ctx context.Context, statuses ...instance.Status) ([]*instance.Instance, error)
}

// StartMessage asks for a trip manager to be started
type StartMessage struct {
	Code string          `json:"code"`
	Trip json.RawMessage `json:"trip,omitempty"`
}

// Validate checks the message
func (m *StartMessage) Validate() error {
	if m == nil || strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if len(m.Trip) > 0 && !json.Valid(m.Trip) {
		return fmt.Errorf("%w: trip is not valid JSON", ErrInvalidInput)
	}
	return nil
}

// AcknowledgeMessage reports that a driver accepted a trip
type AcknowledgeMessage struct {
	TripKey   string `json:"tripKey"`
	DriverKey string `json:"driverKey"`
}

// Validate checks the message
func (m *AcknowledgeMessage) Validate() error {
	if m == nil || strings.TrimSpace(m.TripKey) == "" {
		return fmt.Errorf("%w: tripKey is required", ErrInvalidInput)
	}
	if strings.TrimSpace(m.DriverKey) == "" {
		return fmt.Errorf("%w: driverKey is required", ErrInvalidInput)
	}
	return nil
}

// Start validates message and calls EnsureStarted
func Start(ctx context.Context, c Coordinator, message *StartMessage) (coordinator.StartOutcome, error) {
	if err := message.Validate(); err != nil {
		return "", err
	}
	return c.EnsureStarted(ctx, instance.Key(message.Code), message.Trip)
}

// Acknowledge validates message and routes a driver acceptance event
func Acknowledge(ctx context.Context, c Coordinator, message *AcknowledgeMessage) (coordinator.Delivery, error) {
	if err := message.Validate(); err != nil {
		return "", err
	}
	return c.SendEvent(ctx, instance.Key(message.TripKey), instance.EventDriverAccepted, message.DriverKey)
}
