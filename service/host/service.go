package host

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/tripmanager/internal/clock"
	"github.com/viant/tripmanager/internal/idgen"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/dao"
	"github.com/viant/tripmanager/service/event"
	"github.com/viant/tripmanager/service/messaging"
	"github.com/viant/tripmanager/service/registry"
	"github.com/viant/tripmanager/tracing"
)

const lockStripes = 64

// run is a live workflow execution
type run struct {
	runID   string
	mailbox chan instance.Event
	cancel  context.CancelFunc
	done    chan struct{}
}

// Service is the orchestration host. Mutations of a key are serialized
// with a striped mutex; at most one live run exists per key.
type Service struct {
	config      Config
	instanceDAO dao.Service[instance.Key, instance.Instance]
	queue       messaging.Queue[instance.Run]
	workflow    Workflow
	publisher   *event.Publisher[instance.Transition]
	logger      *slog.Logger

	locks [lockStripes]sync.Mutex
	mux   sync.RWMutex
	runs  map[instance.Key]*run

	baseCtx  context.Context
	cancel   context.CancelFunc
	started  atomic.Bool
	workerWg sync.WaitGroup
	runWg    sync.WaitGroup
}

var _ registry.Registry = (*Service)(nil)
var _ registry.Lister = (*Service)(nil)

// New creates a host service
func New(options ...Option) (*Service, error) {
	s := &Service{
		config: DefaultConfig(),
		runs:   make(map[instance.Key]*run),
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.instanceDAO == nil {
		return nil, fmt.Errorf("instanceDAO is required")
	}
	if s.queue == nil {
		return nil, fmt.Errorf("run queue is required")
	}
	if s.workflow == nil {
		s.workflow = AwaitDriverWorkflow
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches the workers and reschedules runs left active by a previous
// process: pending runs are queued again, running ones are resumed.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("host already started")
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.config.Workers; i++ {
		s.workerWg.Add(1)
		go s.work(s.baseCtx, i)
	}
	return s.recover(s.baseCtx)
}

// Shutdown stops workers and live runs. Their instances stay active so the
// next Start resumes them.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.workerWg.Wait()
		s.runWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create implements registry.Registry
func (s *Service) Create(ctx context.Context, request *instance.StartRequest) (ret *instance.Instance, err error) {
	if request == nil || request.Key == "" {
		return nil, dao.ErrInvalidID
	}
	ctx, span := tracing.StartSpan(ctx, "host.Create", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"trip.key": request.Key.String()})

	anInstance, err := s.schedule(ctx, request)
	if err != nil {
		return nil, err
	}
	created := anInstance.Clone()
	if err = s.queue.Publish(ctx, &instance.Run{Key: anInstance.Key, RunID: anInstance.RunID}); err != nil {
		s.abandon(context.WithoutCancel(ctx), anInstance, err)
		return nil, fmt.Errorf("failed to schedule %v: %w", request.Key, err)
	}
	return created, nil
}

// schedule saves a new Pending instance for request under the key lock.
// The run message is published by the caller after the lock is released,
// since a full run queue blocks until a worker, which takes the same lock,
// drains it.
func (s *Service) schedule(ctx context.Context, request *instance.StartRequest) (*instance.Instance, error) {
	unlock := s.lock(request.Key)
	defer unlock()
	current, err := s.load(ctx, request.Key)
	if err != nil {
		return nil, err
	}
	from := instance.StatusAbsent
	if current != nil {
		from = current.Status
	}
	if from.IsActive() {
		return nil, registry.ErrAlreadyExists
	}
	anInstance := &instance.Instance{
		Key:       request.Key,
		RunID:     idgen.RunID(),
		Status:    from,
		Input:     request.Input,
		CreatedAt: clock.Now(),
	}
	if err = s.transition(ctx, anInstance, instance.TriggerCreate, nil); err != nil {
		return nil, err
	}
	return anInstance, nil
}

// abandon fails a run whose message could not be published, unless the
// instance has moved on meanwhile
func (s *Service) abandon(ctx context.Context, scheduled *instance.Instance, cause error) {
	unlock := s.lock(scheduled.Key)
	defer unlock()
	anInstance, err := s.load(ctx, scheduled.Key)
	if err != nil || anInstance == nil || anInstance.RunID != scheduled.RunID || anInstance.Status != instance.StatusPending {
		return
	}
	if err = s.transition(ctx, anInstance, instance.TriggerFail, func(i *instance.Instance) {
		i.Error = cause.Error()
	}); err != nil {
		s.logger.Error("failed to record unscheduled run", "key", scheduled.Key, "error", err)
	}
}

// Status implements registry.Registry
func (s *Service) Status(ctx context.Context, key instance.Key) (*instance.Instance, error) {
	anInstance, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if anInstance == nil {
		return nil, registry.ErrNotFound
	}
	return anInstance, nil
}

// Signal implements registry.Registry. The send waits for mailbox capacity
// until ctx is done.
func (s *Service) Signal(ctx context.Context, key instance.Key, evt *instance.Event) (err error) {
	if evt == nil {
		return dao.ErrNilEntity
	}
	ctx, span := tracing.StartSpan(ctx, "host.Signal", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"trip.key": key.String(), "event.name": evt.Name})

	r, err := s.liveRun(ctx, key)
	if err != nil {
		return err
	}
	select {
	case r.mailbox <- *evt:
	case <-r.done:
		return registry.ErrNotActive
	case <-ctx.Done():
		return ctx.Err()
	}

	unlock := s.lock(key)
	defer unlock()
	anInstance, err := s.load(ctx, key)
	if err == nil && anInstance != nil && anInstance.RunID == r.runID {
		anInstance.EventCount++
		anInstance.UpdatedAt = clock.Now()
		err = s.instanceDAO.Save(ctx, anInstance)
	}
	if err != nil {
		s.logger.Warn("failed to count delivered event", "key", key, "event", evt.Name, "error", err)
	}
	return nil
}

// Terminate implements registry.Registry
func (s *Service) Terminate(ctx context.Context, key instance.Key, reason string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "host.Terminate", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"trip.key": key.String(), "reason": reason})

	unlock := s.lock(key)
	defer unlock()
	anInstance, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if anInstance == nil {
		return registry.ErrNotFound
	}
	if !anInstance.Status.IsActive() {
		return registry.ErrNotActive
	}
	if err = s.transition(ctx, anInstance, instance.TriggerTerminate, func(i *instance.Instance) {
		i.Reason = reason
	}); err != nil {
		return err
	}
	s.mux.RLock()
	r := s.runs[key]
	s.mux.RUnlock()
	if r != nil && r.runID == anInstance.RunID {
		r.cancel()
	}
	return nil
}

// List implements registry.Lister; results are ordered by key
func (s *Service) List(ctx context.Context, statuses ...instance.Status) ([]*instance.Instance, error) {
	var parameters []*dao.Parameter
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, status := range statuses {
			values = append(values, string(status))
		}
		parameters = append(parameters, dao.StatusIn(values...))
	}
	instances, err := s.instanceDAO.List(ctx, parameters...)
	if err != nil {
		return nil, err
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].Key < instances[j].Key })
	return instances, nil
}

// Live returns the number of workflows currently executing
func (s *Service) Live() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.runs)
}

func (s *Service) recover(ctx context.Context) error {
	instances, err := s.List(ctx, instance.StatusPending, instance.StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to list active instances: %w", err)
	}
	for _, anInstance := range instances {
		aRun := &instance.Run{Key: anInstance.Key, RunID: anInstance.RunID, Resume: anInstance.Status == instance.StatusRunning}
		if err = s.queue.Publish(ctx, aRun); err != nil {
			return fmt.Errorf("failed to reschedule %v: %w", anInstance.Key, err)
		}
	}
	if len(instances) > 0 {
		s.logger.Info("rescheduled active instances", "count", len(instances))
	}
	return nil
}

func (s *Service) liveRun(ctx context.Context, key instance.Key) (*run, error) {
	unlock := s.lock(key)
	defer unlock()
	anInstance, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if anInstance == nil {
		return nil, registry.ErrNotFound
	}
	if anInstance.Status != instance.StatusRunning {
		return nil, registry.ErrNotActive
	}
	s.mux.RLock()
	r := s.runs[key]
	s.mux.RUnlock()
	if r == nil || r.runID != anInstance.RunID {
		return nil, registry.ErrNotActive
	}
	return r, nil
}

// transition fires trigger on anInstance, saves it and publishes the change
func (s *Service) transition(ctx context.Context, anInstance *instance.Instance, trigger instance.Trigger, mutate func(*instance.Instance)) error {
	from := anInstance.Status
	to, err := instance.Next(from, trigger)
	if err != nil {
		return err
	}
	now := clock.Now()
	anInstance.Status = to
	anInstance.UpdatedAt = now
	switch {
	case to == instance.StatusRunning:
		anInstance.StartedAt = &now
	case to.IsTerminal():
		anInstance.FinishedAt = &now
	}
	if mutate != nil {
		mutate(anInstance)
	}
	if err = s.instanceDAO.Save(ctx, anInstance); err != nil {
		return fmt.Errorf("failed to save instance %v: %w", anInstance.Key, err)
	}
	s.notify(ctx, anInstance, from)
	return nil
}

func (s *Service) notify(ctx context.Context, anInstance *instance.Instance, from instance.Status) {
	s.logger.Debug("instance transition", "key", anInstance.Key, "from", from, "to", anInstance.Status)
	if s.publisher == nil {
		return
	}
	evt := event.NewEvent(&event.Context{
		Key:       anInstance.Key.String(),
		RunID:     anInstance.RunID,
		EventType: "transition",
		Service:   "host",
	}, instance.Transition{
		Key:   anInstance.Key,
		RunID: anInstance.RunID,
		From:  from,
		To:    anInstance.Status,
		At:    anInstance.UpdatedAt,
	})
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish transition", "key", anInstance.Key, "error", err)
	}
}

func (s *Service) load(ctx context.Context, key instance.Key) (*instance.Instance, error) {
	anInstance, err := s.instanceDAO.Load(ctx, key)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load instance %v: %w", key, err)
	}
	return anInstance, nil
}

func (s *Service) lock(key instance.Key) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &s.locks[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

func (s *Service) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.config.PollInterval):
	}
}
