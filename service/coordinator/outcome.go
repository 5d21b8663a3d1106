package coordinator

import "errors"

// ErrNotFound is returned by GetStatus when no instance exists for a key
var ErrNotFound = errors.New("trip manager not found")

// StartOutcome is the result of EnsureStarted
type StartOutcome string

// Delivery is the result of SendEvent
type Delivery string

// TerminateOutcome is the result of Terminate
type TerminateOutcome string

const (
	Started        StartOutcome = "Started"
	AlreadyRunning StartOutcome = "AlreadyRunning"

	Delivered Delivery = "Delivered"
	Dropped   Delivery = "Dropped"

	Terminated TerminateOutcome = "Terminated"
	NotFound   TerminateOutcome = "NotFound"
)
