package fs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/dao"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	srv, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	trip := &instance.Instance{
		Key:       "TRIP/001",
		RunID:     "run-1",
		Status:    instance.StatusRunning,
		Input:     json.RawMessage(`{"pickup":"A","dropoff":"B"}`),
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, srv.Save(ctx, trip))
	require.NoError(t, srv.Save(ctx, &instance.Instance{Key: "TRIP-002", RunID: "run-2", Status: instance.StatusCompleted}))

	loaded, err := srv.Load(ctx, "TRIP/001")
	require.NoError(t, err)
	assert.Equal(t, trip.RunID, loaded.RunID)
	assert.Equal(t, trip.Status, loaded.Status)
	assert.JSONEq(t, string(trip.Input), string(loaded.Input))
	assert.True(t, created.Equal(loaded.CreatedAt))

	all, err := srv.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	running, err := srv.List(ctx, dao.StatusIn(string(instance.StatusRunning)))
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, instance.Key("TRIP/001"), running[0].Key)

	require.NoError(t, srv.Delete(ctx, "TRIP/001"))
	_, err = srv.Load(ctx, "TRIP/001")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	assert.ErrorIs(t, srv.Delete(ctx, "TRIP/001"), dao.ErrNotFound)
}

func TestNew_EmptyBase(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}
