package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultPollInterval = 50 * time.Millisecond

// Listener dispatches consumed events to a handler until stopped
type Listener[T any] struct {
	publisher    *Publisher[T]
	handler      func(*Event[T])
	logger       *slog.Logger
	pollInterval time.Duration
	cancel       context.CancelFunc
	done         chan struct{}
	once         sync.Once
}

// NewListener creates a listener
func NewListener[T any](publisher *Publisher[T], handler func(*Event[T]), logger *slog.Logger) *Listener[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener[T]{
		publisher:    publisher,
		handler:      handler,
		logger:       logger,
		pollInterval: defaultPollInterval,
		done:         make(chan struct{}),
	}
}

// Stop cancels the consume loop and waits for it to exit
func (l *Listener[T]) Stop() {
	l.once.Do(func() {
		if l.cancel != nil {
			l.cancel()
			<-l.done
		}
	})
}

// Start runs the consume loop in the background
func (l *Listener[T]) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go func() {
		defer close(l.done)
		for {
			event, err := l.publisher.Consume(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				l.logger.Warn("event consume failed", "error", err)
			}
			if event == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(l.pollInterval):
				}
				continue
			}
			l.handler(event)
		}
	}()
}
