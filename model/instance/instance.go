package instance

import (
	"encoding/json"
	"time"
)

// Key identifies a trip; at most one active instance exists per key.
type Key string

// String returns the key as plain string
func (k Key) String() string { return string(k) }

// Status represents the run state of a workflow instance
type Status string

// Instance status constants
const (
	StatusAbsent     Status = "absent"
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTerminated Status = "terminated"
)

// IsActive returns true for statuses that hold the key
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// IsTerminal returns true once the instance can no longer progress
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTerminated:
		return true
	}
	return false
}

// ParseStatus converts a string into a known Status
func ParseStatus(value string) (Status, bool) {
	status := Status(value)
	switch status {
	case StatusAbsent, StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusTerminated:
		return status, true
	}
	return "", false
}

// EventDriverAccepted is raised when a driver acknowledges a trip
const EventDriverAccepted = "DriverAccepted"

// StartRequest carries the trip details handed to a new instance
type StartRequest struct {
	Key   Key             `json:"key"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Event is an external signal correlated to an instance by key
type Event struct {
	Name    string    `json:"name"`
	Key     Key       `json:"key"`
	Payload string    `json:"payload"`
	SentAt  time.Time `json:"sentAt"`
}

// TerminationRequest asks for a terminal transition with an audit reason
type TerminationRequest struct {
	Key    Key    `json:"key"`
	Reason string `json:"reason"`
}

// Instance is the host-side record of a single workflow run
type Instance struct {
	Key        Key             `json:"key"`
	RunID      string          `json:"runId"`
	Status     Status          `json:"status"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	EventCount int             `json:"eventCount"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	StartedAt  *time.Time      `json:"startedAt,omitempty"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// Clone returns a deep copy so that callers never share host state
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	ret := *i
	if i.Input != nil {
		ret.Input = append(json.RawMessage(nil), i.Input...)
	}
	if i.Output != nil {
		ret.Output = append(json.RawMessage(nil), i.Output...)
	}
	if i.StartedAt != nil {
		ts := *i.StartedAt
		ret.StartedAt = &ts
	}
	if i.FinishedAt != nil {
		ts := *i.FinishedAt
		ret.FinishedAt = &ts
	}
	return &ret
}

// Run is the host queue message scheduling an instance for execution
type Run struct {
	Key    Key    `json:"key"`
	RunID  string `json:"runId"`
	Resume bool   `json:"resume,omitempty"`
}

// Transition records a status change of a run
type Transition struct {
	Key   Key       `json:"key"`
	RunID string    `json:"runId"`
	From  Status    `json:"from"`
	To    Status    `json:"to"`
	At    time.Time `json:"at"`
}
