package event

import (
	"time"

	"github.com/viant/tripmanager/internal/clock"
)

// Context identifies the source of an event
type Context struct {
	Key       string `json:"key"`
	RunID     string `json:"runID,omitempty"`
	EventType string `json:"eventType"`
	Service   string `json:"service,omitempty"`
}

// Event wraps a typed payload with its origin and metadata
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

// NewEvent creates an event stamped with the current time
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
