package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/viant/tripmanager/internal/clock"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/registry"
	"github.com/viant/tripmanager/tracing"
)

const outcomeError = "error"

// Service is the trip manager coordinator
type Service struct {
	registry registry.Registry
	logger   *slog.Logger
	metrics  *Metrics
}

// New creates a coordinator over registry
func New(reg registry.Registry, options ...Option) *Service {
	s := &Service{registry: reg, logger: slog.Default()}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// EnsureStarted starts an instance for key unless one is already running.
// A create rejected with registry.ErrAlreadyExists means a concurrent start
// won and is reported as AlreadyRunning.
func (s *Service) EnsureStarted(ctx context.Context, key instance.Key, payload json.RawMessage) (outcome StartOutcome, err error) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "coordinator.EnsureStarted", tracing.KindInternal)
	defer func() {
		span.WithAttributes(map[string]string{"outcome": string(outcome)})
		tracing.EndSpan(span, err)
		s.metrics.observe("start", outcomeLabel(string(outcome), err), started)
	}()
	span.WithAttributes(map[string]string{"trip.key": key.String()})

	prior, err := s.priorStatus(ctx, key)
	if err != nil {
		return "", err
	}
	if prior == instance.StatusRunning {
		s.logger.Info("start skipped", "key", key, "status", prior, "decision", AlreadyRunning)
		return AlreadyRunning, nil
	}
	_, err = s.registry.Create(ctx, &instance.StartRequest{Key: key, Input: payload})
	switch {
	case errors.Is(err, registry.ErrAlreadyExists):
		s.logger.Info("start lost race", "key", key, "status", prior, "decision", AlreadyRunning)
		return AlreadyRunning, nil
	case err != nil:
		s.logger.Error("start failed", "key", key, "status", prior, "error", err)
		return "", fmt.Errorf("failed to create trip manager %v: %w", key, err)
	}
	s.logger.Info("start issued", "key", key, "status", prior, "decision", Started)
	return Started, nil
}

// GetStatus returns the instance for key or ErrNotFound
func (s *Service) GetStatus(ctx context.Context, key instance.Key) (ret *instance.Instance, err error) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "coordinator.GetStatus", tracing.KindInternal)
	defer func() {
		tracing.EndSpan(span, err)
		s.metrics.observe("status", outcomeLabel("found", err), started)
	}()
	span.WithAttributes(map[string]string{"trip.key": key.String()})

	ret, err = s.registry.Status(ctx, key)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v: %w", ErrNotFound, key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip manager %v status: %w", key, err)
	}
	return ret, nil
}

// SendEvent delivers a named event to the running instance for key.
// Absent or non-running instances yield Dropped.
func (s *Service) SendEvent(ctx context.Context, key instance.Key, name, payload string) (delivery Delivery, err error) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "coordinator.SendEvent", tracing.KindInternal)
	defer func() {
		span.WithAttributes(map[string]string{"delivery": string(delivery)})
		tracing.EndSpan(span, err)
		s.metrics.observe("event", outcomeLabel(string(delivery), err), started)
	}()
	span.WithAttributes(map[string]string{"trip.key": key.String(), "event.name": name})

	prior, err := s.priorStatus(ctx, key)
	if err != nil {
		return "", err
	}
	if prior != instance.StatusRunning {
		s.logger.Info("event dropped", "key", key, "status", prior, "event", name)
		return Dropped, nil
	}
	err = s.registry.Signal(ctx, key, &instance.Event{Name: name, Key: key, Payload: payload, SentAt: clock.Now()})
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, registry.ErrNotActive):
		s.logger.Info("event dropped", "key", key, "status", prior, "event", name, "error", err)
		return Dropped, nil
	case err != nil:
		s.logger.Error("event failed", "key", key, "event", name, "error", err)
		return "", fmt.Errorf("failed to signal trip manager %v: %w", key, err)
	}
	return Delivered, nil
}

// Terminate requests a terminal transition for key. Absent or already
// terminal instances yield NotFound with a nil error.
func (s *Service) Terminate(ctx context.Context, key instance.Key, reason string) (outcome TerminateOutcome, err error) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "coordinator.Terminate", tracing.KindInternal)
	defer func() {
		span.WithAttributes(map[string]string{"outcome": string(outcome)})
		tracing.EndSpan(span, err)
		s.metrics.observe("terminate", outcomeLabel(string(outcome), err), started)
	}()
	span.WithAttributes(map[string]string{"trip.key": key.String(), "reason": reason})

	prior, err := s.priorStatus(ctx, key)
	if err != nil {
		return "", err
	}
	if !prior.IsActive() {
		s.logger.Info("terminate ignored", "key", key, "status", prior, "reason", reason)
		return NotFound, nil
	}
	err = s.registry.Terminate(ctx, key, reason)
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, registry.ErrNotActive):
		s.logger.Info("terminate ignored", "key", key, "status", prior, "reason", reason, "error", err)
		return NotFound, nil
	case err != nil:
		s.logger.Error("terminate failed", "key", key, "reason", reason, "error", err)
		return "", fmt.Errorf("failed to terminate trip manager %v: %w", key, err)
	}
	s.logger.Info("terminated", "key", key, "status", prior, "reason", reason)
	return Terminated, nil
}

// List returns instances filtered by status when the registry supports listing
func (s *Service) List(ctx context.Context, statuses ...instance.Status) ([]*instance.Instance, error) {
	lister, ok := s.registry.(registry.Lister)
	if !ok {
		return nil, fmt.Errorf("registry %T does not support listing", s.registry)
	}
	return lister.List(ctx, statuses...)
}

// priorStatus reads the current status, mapping absence to StatusAbsent
func (s *Service) priorStatus(ctx context.Context, key instance.Key) (instance.Status, error) {
	anInstance, err := s.registry.Status(ctx, key)
	if errors.Is(err, registry.ErrNotFound) {
		return instance.StatusAbsent, nil
	}
	if err != nil {
		s.logger.Error("status read failed", "key", key, "error", err)
		return "", fmt.Errorf("failed to read trip manager %v status: %w", key, err)
	}
	return anInstance.Status, nil
}

func outcomeLabel(outcome string, err error) string {
	if err != nil || outcome == "" {
		return outcomeError
	}
	return outcome
}
