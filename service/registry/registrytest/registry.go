// Package registrytest provides an in-memory Registry for tests
package registrytest

import (
	"context"
	"sort"
	"sync"

	"github.com/viant/tripmanager/internal/clock"
	"github.com/viant/tripmanager/internal/idgen"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/registry"
)

// Calls counts invocations per operation
type Calls struct {
	Create    int
	Status    int
	Signal    int
	Terminate int
}

// Registry is a fake registry whose instance status is set by tests.
// Create leaves the instance Running unless CreateStatus says otherwise.
type Registry struct {
	mu           sync.Mutex
	instances    map[instance.Key]*instance.Instance
	events       map[instance.Key][]*instance.Event
	calls        Calls
	CreateStatus instance.Status

	// Err, when set for an operation name, is returned instead of running it
	Err map[string]error
}

// New creates an empty fake registry
func New() *Registry {
	return &Registry{
		instances:    map[instance.Key]*instance.Instance{},
		events:       map[instance.Key][]*instance.Event{},
		CreateStatus: instance.StatusRunning,
		Err:          map[string]error{},
	}
}

// SetStatus creates or updates the instance held under key
func (r *Registry) SetStatus(key instance.Key, status instance.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := clock.Now()
	anInstance, ok := r.instances[key]
	if !ok {
		anInstance = &instance.Instance{Key: key, RunID: idgen.RunID(), CreatedAt: now}
		r.instances[key] = anInstance
	}
	anInstance.Status = status
	anInstance.UpdatedAt = now
}

// Calls returns a snapshot of the call counters
func (r *Registry) Calls() Calls {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Events returns the events delivered to key
func (r *Registry) Events(key instance.Key) []*instance.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*instance.Event(nil), r.events[key]...)
}

// Create implements registry.Registry
func (r *Registry) Create(_ context.Context, request *instance.StartRequest) (*instance.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Create++
	if err := r.Err["Create"]; err != nil {
		return nil, err
	}
	if existing, ok := r.instances[request.Key]; ok && existing.Status.IsActive() {
		return nil, registry.ErrAlreadyExists
	}
	now := clock.Now()
	anInstance := &instance.Instance{
		Key:       request.Key,
		RunID:     idgen.RunID(),
		Status:    r.CreateStatus,
		Input:     request.Input,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.instances[request.Key] = anInstance
	return anInstance.Clone(), nil
}

// Status implements registry.Registry
func (r *Registry) Status(_ context.Context, key instance.Key) (*instance.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Status++
	if err := r.Err["Status"]; err != nil {
		return nil, err
	}
	anInstance, ok := r.instances[key]
	if !ok {
		return nil, registry.ErrNotFound
	}
	return anInstance.Clone(), nil
}

// Signal implements registry.Registry
func (r *Registry) Signal(_ context.Context, key instance.Key, event *instance.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Signal++
	if err := r.Err["Signal"]; err != nil {
		return err
	}
	anInstance, ok := r.instances[key]
	if !ok {
		return registry.ErrNotFound
	}
	if anInstance.Status != instance.StatusRunning {
		return registry.ErrNotActive
	}
	anInstance.EventCount++
	r.events[key] = append(r.events[key], event)
	return nil
}

// Terminate implements registry.Registry
func (r *Registry) Terminate(_ context.Context, key instance.Key, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Terminate++
	if err := r.Err["Terminate"]; err != nil {
		return err
	}
	anInstance, ok := r.instances[key]
	if !ok {
		return registry.ErrNotFound
	}
	if !anInstance.Status.IsActive() {
		return registry.ErrNotActive
	}
	anInstance.Status = instance.StatusTerminated
	anInstance.Reason = reason
	anInstance.UpdatedAt = clock.Now()
	return nil
}

// List implements registry.Lister
func (r *Registry) List(_ context.Context, statuses ...instance.Status) ([]*instance.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*instance.Instance
	for _, anInstance := range r.instances {
		if len(statuses) > 0 && !contains(statuses, anInstance.Status) {
			continue
		}
		result = append(result, anInstance.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func contains(statuses []instance.Status, status instance.Status) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

var _ registry.Registry = (*Registry)(nil)
var _ registry.Lister = (*Registry)(nil)
