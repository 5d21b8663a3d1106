package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/coordinator"
	"github.com/viant/tripmanager/service/messaging"
	"github.com/viant/tripmanager/service/messaging/memory"
	"github.com/viant/tripmanager/service/registry/registrytest"
	"github.com/viant/tripmanager/service/trigger"
)

func testConfig() Config {
	return Config{BackoffBase: time.Millisecond, BackoffMax: 5 * time.Millisecond, PollInterval: time.Millisecond}
}

func runConsumer[T any](t *testing.T, consumer *Consumer[T]) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
}

func TestStartConsumer(t *testing.T) {
	ctx := context.Background()
	fake := registrytest.New()
	queue := memory.NewQueue[trigger.StartMessage](memory.Config{MaxRetries: 1, RetryDelay: time.Millisecond, DeadLetter: true, QueueBuffer: 10})
	runConsumer(t, NewStartConsumer(queue, coordinator.New(fake), WithConfig(testConfig())))

	require.NoError(t, queue.Publish(ctx, &trigger.StartMessage{Code: "TRIP-001", Trip: json.RawMessage(`{"pickup":"A"}`)}))
	require.NoError(t, queue.Publish(ctx, &trigger.StartMessage{Code: "TRIP-001"}))
	require.NoError(t, queue.Publish(ctx, &trigger.StartMessage{}))

	require.Eventually(t, func() bool { return fake.Calls().Status == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, fake.Calls().Create)
	anInstance, err := fake.Status(ctx, "TRIP-001")
	require.NoError(t, err)
	assert.JSONEq(t, `{"pickup":"A"}`, string(anInstance.Input))
	assert.Equal(t, 0, queue.DLQSize())
}

func TestStartConsumer_FailureDeadLetters(t *testing.T) {
	ctx := context.Background()
	fake := registrytest.New()
	fake.Err["Status"] = errors.New("registry unavailable")
	queue := memory.NewQueue[trigger.StartMessage](memory.Config{MaxRetries: 2, RetryDelay: time.Millisecond, DeadLetter: true, QueueBuffer: 10})
	runConsumer(t, NewStartConsumer(queue, coordinator.New(fake), WithConfig(testConfig())))

	require.NoError(t, queue.Publish(ctx, &trigger.StartMessage{Code: "TRIP-002"}))
	require.Eventually(t, func() bool { return queue.DLQSize() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 3, fake.Calls().Status)

	dead, err := queue.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "TRIP-002", dead[0].Code)
}

func TestAcknowledgeConsumer(t *testing.T) {
	ctx := context.Background()
	fake := registrytest.New()
	fake.SetStatus("TRIP-001", instance.StatusRunning)
	queue := memory.NewQueue[trigger.AcknowledgeMessage](memory.DefaultConfig())
	runConsumer(t, NewAcknowledgeConsumer(queue, coordinator.New(fake), WithConfig(testConfig())))

	require.NoError(t, queue.Publish(ctx, &trigger.AcknowledgeMessage{TripKey: "TRIP-001", DriverKey: "DRV-42"}))
	require.NoError(t, queue.Publish(ctx, &trigger.AcknowledgeMessage{TripKey: "TRIP-404", DriverKey: "DRV-42"}))
	require.NoError(t, queue.Publish(ctx, &trigger.AcknowledgeMessage{TripKey: "TRIP-001"}))

	require.Eventually(t, func() bool { return fake.Calls().Status == 2 }, time.Second, time.Millisecond)
	events := fake.Events("TRIP-001")
	require.Len(t, events, 1)
	assert.Equal(t, instance.EventDriverAccepted, events[0].Name)
	assert.Equal(t, "DRV-42", events[0].Payload)
	assert.Equal(t, 0, queue.DLQSize())
}

type flakyQueue struct {
	failures atomic.Int32
	inner    messaging.Queue[trigger.StartMessage]
}

func (q *flakyQueue) Publish(ctx context.Context, t *trigger.StartMessage) error {
	return q.inner.Publish(ctx, t)
}

func (q *flakyQueue) Consume(ctx context.Context) (messaging.Message[trigger.StartMessage], error) {
	if q.failures.Add(-1) >= 0 {
		return nil, errors.New("broker unavailable")
	}
	return q.inner.Consume(ctx)
}

func TestConsumer_RetriesConsumeErrors(t *testing.T) {
	ctx := context.Background()
	fake := registrytest.New()
	queue := &flakyQueue{inner: memory.NewQueue[trigger.StartMessage](memory.DefaultConfig())}
	queue.failures.Store(3)
	runConsumer(t, NewStartConsumer(queue, coordinator.New(fake), WithConfig(testConfig())))

	require.NoError(t, queue.Publish(ctx, &trigger.StartMessage{Code: "TRIP-003"}))
	require.Eventually(t, func() bool { return fake.Calls().Create == 1 }, time.Second, time.Millisecond)
}
