package index

import (
	"context"
	"log/slog"

	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/event"
)

// Sync applies host transitions to an Index
type Sync struct {
	index  Index
	logger *slog.Logger
}

// NewSync creates a transition synchronizer
func NewSync(index Index, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{index: index, logger: logger}
}

// Apply puts active transitions and removes terminal ones
func (s *Sync) Apply(ctx context.Context, transition *instance.Transition) error {
	if transition.To.IsActive() {
		return s.index.Put(ctx, &Entry{
			Key:       transition.Key,
			RunID:     transition.RunID,
			Status:    transition.To,
			UpdatedAt: transition.At,
		})
	}
	return s.index.Remove(ctx, transition.Key)
}

// Handle adapts Apply to an event listener
func (s *Sync) Handle(evt *event.Event[instance.Transition]) {
	if evt == nil {
		return
	}
	if err := s.Apply(context.Background(), &evt.Data); err != nil {
		s.logger.Error("failed to sync index", "key", evt.Data.Key, "status", evt.Data.To, "error", err)
	}
}
