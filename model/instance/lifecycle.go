package instance

import (
	"fmt"

	"github.com/qmuntal/stateless"
)

// Trigger drives a status transition
type Trigger string

// Lifecycle triggers
const (
	TriggerCreate    Trigger = "create"
	TriggerRun       Trigger = "run"
	TriggerComplete  Trigger = "complete"
	TriggerFail      Trigger = "fail"
	TriggerTerminate Trigger = "terminate"
)

// Next returns the status reached by firing trigger from the supplied status.
// Terminal statuses accept TriggerCreate so that keys can be reused.
func Next(from Status, trigger Trigger) (Status, error) {
	if from == "" {
		from = StatusAbsent
	}
	machine := newMachine(from)
	if err := machine.Fire(trigger); err != nil {
		return from, fmt.Errorf("invalid transition %v from %v: %w", trigger, from, err)
	}
	return machine.MustState().(Status), nil
}

// CanFire reports whether trigger is permitted from the supplied status
func CanFire(from Status, trigger Trigger) bool {
	_, err := Next(from, trigger)
	return err == nil
}

func newMachine(from Status) *stateless.StateMachine {
	machine := stateless.NewStateMachine(from)
	machine.Configure(StatusAbsent).
		Permit(TriggerCreate, StatusPending)
	machine.Configure(StatusPending).
		Permit(TriggerRun, StatusRunning).
		Permit(TriggerFail, StatusFailed).
		Permit(TriggerTerminate, StatusTerminated)
	machine.Configure(StatusRunning).
		Permit(TriggerComplete, StatusCompleted).
		Permit(TriggerFail, StatusFailed).
		Permit(TriggerTerminate, StatusTerminated)
	for _, terminal := range []Status{StatusCompleted, StatusFailed, StatusTerminated} {
		machine.Configure(terminal).
			Permit(TriggerCreate, StatusPending)
	}
	return machine
}
