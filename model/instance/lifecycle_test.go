package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	testCases := []struct {
		name      string
		from      Status
		trigger   Trigger
		expect    Status
		expectErr bool
	}{
		{name: "create from absent", from: StatusAbsent, trigger: TriggerCreate, expect: StatusPending},
		{name: "create from empty", from: "", trigger: TriggerCreate, expect: StatusPending},
		{name: "run pending", from: StatusPending, trigger: TriggerRun, expect: StatusRunning},
		{name: "complete running", from: StatusRunning, trigger: TriggerComplete, expect: StatusCompleted},
		{name: "fail running", from: StatusRunning, trigger: TriggerFail, expect: StatusFailed},
		{name: "terminate running", from: StatusRunning, trigger: TriggerTerminate, expect: StatusTerminated},
		{name: "terminate pending", from: StatusPending, trigger: TriggerTerminate, expect: StatusTerminated},
		{name: "reuse completed", from: StatusCompleted, trigger: TriggerCreate, expect: StatusPending},
		{name: "reuse failed", from: StatusFailed, trigger: TriggerCreate, expect: StatusPending},
		{name: "reuse terminated", from: StatusTerminated, trigger: TriggerCreate, expect: StatusPending},
		{name: "create while running", from: StatusRunning, trigger: TriggerCreate, expectErr: true},
		{name: "create while pending", from: StatusPending, trigger: TriggerCreate, expectErr: true},
		{name: "terminate terminated", from: StatusTerminated, trigger: TriggerTerminate, expectErr: true},
		{name: "complete pending", from: StatusPending, trigger: TriggerComplete, expectErr: true},
		{name: "run absent", from: StatusAbsent, trigger: TriggerRun, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := Next(tc.from, tc.trigger)
			if tc.expectErr {
				assert.Error(t, err)
				assert.False(t, CanFire(tc.from, tc.trigger))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expect, actual)
		})
	}
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusPending.IsActive())
	assert.True(t, StatusRunning.IsActive())
	assert.False(t, StatusCompleted.IsActive())
	assert.True(t, StatusTerminated.IsTerminal())
	assert.False(t, StatusAbsent.IsTerminal())

	status, ok := ParseStatus("running")
	assert.True(t, ok)
	assert.Equal(t, StatusRunning, status)
	_, ok = ParseStatus("bogus")
	assert.False(t, ok)
}

func TestInstance_Clone(t *testing.T) {
	original := &Instance{Key: "TRIP-001", Input: []byte(`{"pickup":"A"}`)}
	clone := original.Clone()
	clone.Input[2] = 'X'
	clone.Status = StatusRunning
	assert.Equal(t, `{"pickup":"A"}`, string(original.Input))
	assert.Equal(t, Status(""), original.Status)
	assert.Nil(t, (*Instance)(nil).Clone())
}
