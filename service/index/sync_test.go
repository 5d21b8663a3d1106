package index_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/event"
	"github.com/viant/tripmanager/service/index"
	"github.com/viant/tripmanager/service/index/memory"
)

func TestSync_Apply(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	testCases := []struct {
		description string
		transitions []instance.Transition
		expect      []*index.Entry
	}{
		{
			description: "pending then running keeps latest status",
			transitions: []instance.Transition{
				{Key: "TRIP-001", RunID: "r1", From: instance.StatusAbsent, To: instance.StatusPending, At: at},
				{Key: "TRIP-001", RunID: "r1", From: instance.StatusPending, To: instance.StatusRunning, At: at.Add(time.Second)},
			},
			expect: []*index.Entry{{Key: "TRIP-001", RunID: "r1", Status: instance.StatusRunning, UpdatedAt: at.Add(time.Second)}},
		},
		{
			description: "terminal removes entry",
			transitions: []instance.Transition{
				{Key: "TRIP-001", RunID: "r1", To: instance.StatusRunning, At: at},
				{Key: "TRIP-002", RunID: "r2", To: instance.StatusRunning, At: at},
				{Key: "TRIP-001", RunID: "r1", From: instance.StatusRunning, To: instance.StatusTerminated, At: at},
			},
			expect: []*index.Entry{{Key: "TRIP-002", RunID: "r2", Status: instance.StatusRunning, UpdatedAt: at}},
		},
		{
			description: "terminal of unknown key is ignored",
			transitions: []instance.Transition{
				{Key: "TRIP-999", RunID: "r9", To: instance.StatusFailed, At: at},
			},
			expect: []*index.Entry{},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			idx := memory.New()
			sync := index.NewSync(idx, nil)
			for i := range testCase.transitions {
				require.NoError(t, sync.Apply(ctx, &testCase.transitions[i]))
			}
			entries, err := idx.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, entries)
		})
	}
}

func TestSync_Handle(t *testing.T) {
	idx := memory.New()
	sync := index.NewSync(idx, nil)
	sync.Handle(nil)
	sync.Handle(event.NewEvent(&event.Context{Key: "DRV-42"}, instance.Transition{Key: "DRV-42", RunID: "r", To: instance.StatusPending}))
	entries, err := idx.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, instance.Key("DRV-42"), entries[0].Key)
}
