package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/dao"
	daomemory "github.com/viant/tripmanager/service/dao/instance/memory"
	"github.com/viant/tripmanager/service/event"
	"github.com/viant/tripmanager/service/messaging"
	"github.com/viant/tripmanager/service/messaging/memory"
	"github.com/viant/tripmanager/service/registry"
)

type fixture struct {
	host  *Service
	store dao.Service[instance.Key, instance.Instance]
	queue *memory.Queue[instance.Run]
}

func newFixture(t *testing.T, store dao.Service[instance.Key, instance.Instance], options ...Option) *fixture {
	t.Helper()
	if store == nil {
		store = daomemory.New()
	}
	queue := memory.NewQueue[instance.Run](memory.DefaultConfig())
	options = append([]Option{WithInstanceDAO(store), WithRunQueue(queue), WithWorkers(2)}, options...)
	srv, err := New(options...)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return &fixture{host: srv, store: store, queue: queue}
}

func (f *fixture) awaitStatus(t *testing.T, key instance.Key, expect instance.Status) *instance.Instance {
	t.Helper()
	var last *instance.Instance
	require.Eventually(t, func() bool {
		anInstance, err := f.host.Status(context.Background(), key)
		if err != nil {
			return false
		}
		last = anInstance
		return anInstance.Status == expect
	}, 2*time.Second, 5*time.Millisecond, "expected %v to reach %v", key, expect)
	return last
}

func TestService_CreateRunsWorkflowToCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	created, err := f.host.Create(ctx, &instance.StartRequest{Key: "TRIP-001", Input: json.RawMessage(`{"from":"A"}`)})
	require.NoError(t, err)
	assert.Equal(t, instance.StatusPending, created.Status)
	assert.NotEmpty(t, created.RunID)

	f.awaitStatus(t, "TRIP-001", instance.StatusRunning)
	require.Eventually(t, func() bool { return f.host.Live() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.host.Signal(ctx, "TRIP-001", &instance.Event{Name: "Ping", Key: "TRIP-001"}))
	require.NoError(t, f.host.Signal(ctx, "TRIP-001", &instance.Event{Name: instance.EventDriverAccepted, Key: "TRIP-001", Payload: "DRV-42"}))

	done := f.awaitStatus(t, "TRIP-001", instance.StatusCompleted)
	assert.Equal(t, created.RunID, done.RunID)
	assert.Equal(t, 2, done.EventCount)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)
	acceptance := &Acceptance{}
	require.NoError(t, json.Unmarshal(done.Output, acceptance))
	assert.Equal(t, &Acceptance{Trip: "TRIP-001", Driver: "DRV-42", Events: 2}, acceptance)
}

func TestService_CreateWhileActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, rejected := 0, 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.host.Create(ctx, &instance.StartRequest{Key: "TRIP-002"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, registry.ErrAlreadyExists):
				rejected++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, callers-1, rejected)
}

func TestService_CreateBurstOnSmallRunQueue(t *testing.T) {
	ctx := context.Background()
	immediate := WorkflowFunc(func(ctx context.Context, anInstance *instance.Instance, events <-chan instance.Event) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})
	queue := memory.NewQueue[instance.Run](memory.Config{QueueBuffer: 1})
	f := newFixture(t, nil, WithRunQueue(queue), WithWorkers(1), WithWorkflow(immediate))

	const trips = 300
	var wg sync.WaitGroup
	errs := make(chan error, trips)
	for i := 0; i < trips; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.host.Create(ctx, &instance.StartRequest{Key: instance.Key(fmt.Sprintf("TRIP-%03d", i))})
			errs <- err
		}(i)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("creates did not return")
	}
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		completed, err := f.host.List(ctx, instance.StatusCompleted)
		return err == nil && len(completed) == trips
	}, 10*time.Second, 10*time.Millisecond)
}

func TestService_KeyReuseAfterTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	first, err := f.host.Create(ctx, &instance.StartRequest{Key: "TRIP-003"})
	require.NoError(t, err)
	f.awaitStatus(t, "TRIP-003", instance.StatusRunning)
	require.NoError(t, f.host.Terminate(ctx, "TRIP-003", "test"))

	second, err := f.host.Create(ctx, &instance.StartRequest{Key: "TRIP-003"})
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	running := f.awaitStatus(t, "TRIP-003", instance.StatusRunning)
	assert.Equal(t, second.RunID, running.RunID)
}

func TestService_Terminate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	assert.ErrorIs(t, f.host.Terminate(ctx, "TRIP-999", "none"), registry.ErrNotFound)

	_, err := f.host.Create(ctx, &instance.StartRequest{Key: "TRIP-004"})
	require.NoError(t, err)
	f.awaitStatus(t, "TRIP-004", instance.StatusRunning)

	require.NoError(t, f.host.Terminate(ctx, "TRIP-004", "api request"))
	terminated, err := f.host.Status(ctx, "TRIP-004")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusTerminated, terminated.Status)
	assert.Equal(t, "api request", terminated.Reason)
	require.Eventually(t, func() bool { return f.host.Live() == 0 }, time.Second, 5*time.Millisecond)

	again, err := f.host.Status(ctx, "TRIP-004")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusTerminated, again.Status)
	assert.ErrorIs(t, f.host.Terminate(ctx, "TRIP-004", "again"), registry.ErrNotActive)
	assert.ErrorIs(t, f.host.Signal(ctx, "TRIP-004", &instance.Event{Name: "Ping"}), registry.ErrNotActive)
}

func TestService_SignalAbsent(t *testing.T) {
	f := newFixture(t, nil)
	err := f.host.Signal(context.Background(), "DRV-0", &instance.Event{Name: instance.EventDriverAccepted})
	assert.ErrorIs(t, err, registry.ErrNotFound)
	_, err = f.host.Status(context.Background(), "DRV-0")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

type countingFailureDAO struct {
	dao.Service[instance.Key, instance.Instance]
}

func (d *countingFailureDAO) Save(ctx context.Context, anInstance *instance.Instance) error {
	if anInstance != nil && anInstance.EventCount > 0 {
		return errors.New("store unavailable")
	}
	return d.Service.Save(ctx, anInstance)
}

func TestService_SignalDeliveredDespiteCountFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &countingFailureDAO{Service: daomemory.New()})
	_, err := f.host.Create(ctx, &instance.StartRequest{Key: "TRIP-010"})
	require.NoError(t, err)
	f.awaitStatus(t, "TRIP-010", instance.StatusRunning)
	require.Eventually(t, func() bool { return f.host.Live() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.host.Signal(ctx, "TRIP-010", &instance.Event{Name: "Ping", Key: "TRIP-010"}))
	running, err := f.host.Status(ctx, "TRIP-010")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusRunning, running.Status)
	assert.Equal(t, 0, running.EventCount)
}

func TestService_WorkflowFailure(t *testing.T) {
	failing := WorkflowFunc(func(ctx context.Context, anInstance *instance.Instance, events <-chan instance.Event) (json.RawMessage, error) {
		return nil, errors.New("dispatch unavailable")
	})
	f := newFixture(t, nil, WithWorkflow(failing))
	_, err := f.host.Create(context.Background(), &instance.StartRequest{Key: "TRIP-005"})
	require.NoError(t, err)
	failed := f.awaitStatus(t, "TRIP-005", instance.StatusFailed)
	assert.Equal(t, "dispatch unavailable", failed.Error)
}

func TestService_ResumeAfterRestart(t *testing.T) {
	ctx := context.Background()
	store := daomemory.New()
	first := newFixture(t, store)
	created, err := first.host.Create(ctx, &instance.StartRequest{Key: "TRIP-006"})
	require.NoError(t, err)
	first.awaitStatus(t, "TRIP-006", instance.StatusRunning)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, first.host.Shutdown(shutdownCtx))
	persisted, err := store.Load(ctx, "TRIP-006")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusRunning, persisted.Status)

	second := newFixture(t, store)
	require.Eventually(t, func() bool { return second.host.Live() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, second.host.Signal(ctx, "TRIP-006", &instance.Event{Name: instance.EventDriverAccepted, Payload: "DRV-7"}))
	done := second.awaitStatus(t, "TRIP-006", instance.StatusCompleted)
	assert.Equal(t, created.RunID, done.RunID)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	for _, key := range []instance.Key{"TRIP-B", "TRIP-A", "TRIP-C"} {
		_, err := f.host.Create(ctx, &instance.StartRequest{Key: key})
		require.NoError(t, err)
		f.awaitStatus(t, key, instance.StatusRunning)
	}
	require.NoError(t, f.host.Terminate(ctx, "TRIP-C", "test"))

	running, err := f.host.List(ctx, instance.StatusRunning)
	require.NoError(t, err)
	require.Len(t, running, 2)
	assert.Equal(t, instance.Key("TRIP-A"), running[0].Key)
	assert.Equal(t, instance.Key("TRIP-B"), running[1].Key)

	all, err := f.host.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestService_PublishesTransitions(t *testing.T) {
	ctx := context.Background()
	events, err := event.New(messaging.VendorMemory)
	require.NoError(t, err)
	publisher, err := event.PublisherOf[instance.Transition](events)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []instance.Status
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, event.SetListenerOf[instance.Transition](listenCtx, events, func(e *event.Event[instance.Transition]) {
		mu.Lock()
		seen = append(seen, e.Data.To)
		mu.Unlock()
	}))
	defer events.Close()

	f := newFixture(t, nil, WithTransitionPublisher(publisher))
	_, err = f.host.Create(ctx, &instance.StartRequest{Key: "TRIP-007"})
	require.NoError(t, err)
	f.awaitStatus(t, "TRIP-007", instance.StatusRunning)
	require.NoError(t, f.host.Terminate(ctx, "TRIP-007", "test"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []instance.Status{instance.StatusPending, instance.StatusRunning, instance.StatusTerminated}, seen)
}

func TestNew_Validation(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
	_, err = New(WithInstanceDAO(daomemory.New()))
	assert.Error(t, err)
	_, err = New(WithInstanceDAO(daomemory.New()), WithRunQueue(memory.NewQueue[instance.Run](memory.DefaultConfig())), WithWorkers(0))
	assert.Error(t, err)
}
