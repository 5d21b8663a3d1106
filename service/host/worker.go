package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/tripmanager/model/instance"
)

// work consumes scheduled runs until ctx is cancelled
func (s *Service) work(ctx context.Context, id int) {
	defer s.workerWg.Done()
	for {
		msg, err := s.queue.Consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("run queue consume failed", "worker", id, "error", err)
			s.sleep(ctx)
			continue
		}
		if msg == nil {
			s.sleep(ctx)
			continue
		}
		aRun := *msg.T()
		if err = s.process(ctx, aRun); err != nil {
			s.logger.Error("failed to start run", "worker", id, "key", aRun.Key, "error", err)
			_ = msg.Nack(err)
			continue
		}
		_ = msg.Ack()
	}
}

// process moves a scheduled run to Running and launches its workflow.
// Stale runs and runs terminated before start are skipped.
func (s *Service) process(ctx context.Context, aRun instance.Run) error {
	unlock := s.lock(aRun.Key)
	defer unlock()
	anInstance, err := s.load(ctx, aRun.Key)
	if err != nil {
		return err
	}
	if anInstance == nil || anInstance.RunID != aRun.RunID {
		s.logger.Debug("stale run skipped", "key", aRun.Key, "runId", aRun.RunID)
		return nil
	}
	switch anInstance.Status {
	case instance.StatusPending:
		if err = s.transition(ctx, anInstance, instance.TriggerRun, nil); err != nil {
			return err
		}
	case instance.StatusRunning:
		if !aRun.Resume || s.isLive(anInstance) {
			return nil
		}
		s.logger.Info("resuming run", "key", anInstance.Key, "runId", anInstance.RunID)
	default:
		return nil
	}
	s.launch(anInstance)
	return nil
}

func (s *Service) isLive(anInstance *instance.Instance) bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	r, ok := s.runs[anInstance.Key]
	return ok && r.runID == anInstance.RunID
}

func (s *Service) launch(anInstance *instance.Instance) {
	runCtx, cancel := context.WithCancel(s.baseCtx)
	r := &run{
		runID:   anInstance.RunID,
		mailbox: make(chan instance.Event, s.config.Mailbox),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.mux.Lock()
	s.runs[anInstance.Key] = r
	s.mux.Unlock()

	snapshot := anInstance.Clone()
	s.runWg.Add(1)
	go func() {
		defer s.runWg.Done()
		defer cancel()
		output, err := s.execute(runCtx, snapshot, r.mailbox)
		close(r.done)
		s.finish(snapshot.Key, r, output, err)
	}()
}

func (s *Service) execute(ctx context.Context, anInstance *instance.Instance, events <-chan instance.Event) (output []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workflow panic: %v", r)
		}
	}()
	return s.workflow.Run(ctx, anInstance, events)
}

// finish records the workflow outcome unless the instance was terminated
// meanwhile or the host is shutting down
func (s *Service) finish(key instance.Key, r *run, output []byte, runErr error) {
	ctx := context.Background()
	unlock := s.lock(key)
	defer unlock()
	s.mux.Lock()
	if s.runs[key] == r {
		delete(s.runs, key)
	}
	s.mux.Unlock()

	if runErr != nil && s.baseCtx.Err() != nil && errors.Is(runErr, context.Canceled) {
		return
	}
	anInstance, err := s.load(ctx, key)
	if err != nil {
		s.logger.Error("failed to record run outcome", "key", key, "error", err)
		return
	}
	if anInstance == nil || anInstance.RunID != r.runID || anInstance.Status != instance.StatusRunning {
		return
	}
	trigger := instance.TriggerComplete
	if runErr != nil {
		trigger = instance.TriggerFail
	}
	if err = s.transition(ctx, anInstance, trigger, func(i *instance.Instance) {
		i.Output = output
		if runErr != nil {
			i.Error = runErr.Error()
		}
	}); err != nil {
		s.logger.Error("failed to record run outcome", "key", key, "error", err)
	}
}
