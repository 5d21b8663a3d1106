package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/tripmanager/service/messaging"
)

// ErrAlreadyProcessed is returned when a message is acked or nacked twice
var ErrAlreadyProcessed = errors.New("message already processed")

// Config for memory queue implementation
type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	DeadLetter  bool
	QueueBuffer int
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		DeadLetter:  true,
		QueueBuffer: 100,
	}
}

// Message implements messaging.Message for the in-memory queue
type Message[T any] struct {
	id        string
	payload   T
	queue     *Queue[T]
	attempts  int
	lastError string
	mu        sync.Mutex
	processed bool
}

// ID returns the message id; it is preserved across redeliveries
func (m *Message[T]) ID() string { return m.id }

// Attempts returns how many times the message has been nacked
func (m *Message[T]) Attempts() int { return m.attempts }

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return ErrAlreadyProcessed
	}
	m.processed = true
	return nil
}

// Nack schedules a redelivery or moves the message to the dead letter list
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return ErrAlreadyProcessed
	}
	m.processed = true
	next := &Message[T]{id: m.id, payload: m.payload, queue: m.queue, attempts: m.attempts + 1}
	if err != nil {
		next.lastError = err.Error()
	}
	if next.attempts <= m.queue.config.MaxRetries {
		m.queue.redeliver(next)
		return nil
	}
	if m.queue.config.DeadLetter {
		m.queue.deadLetter(next)
	}
	return nil
}

// Queue implements an in-memory messaging.Queue
type Queue[T any] struct {
	messages chan *Message[T]
	config   Config
	dlq      []*Message[T]
	dlqMu    sync.Mutex
	inFlight sync.WaitGroup
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.QueueBuffer),
		config:   config,
	}
}

// Publish adds a new item to the queue, blocking while the buffer is full
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &Message[T]{id: uuid.New().String(), payload: *t, queue: q}
	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume blocks until a message is available or ctx is done
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the current number of messages waiting in the queue
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// DLQSize returns the number of messages in the dead letter queue
func (q *Queue[T]) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}

// DeadLetters returns copies of the dead-lettered payloads
func (q *Queue[T]) DeadLetters(_ context.Context) ([]*T, error) {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	result := make([]*T, 0, len(q.dlq))
	for _, msg := range q.dlq {
		payload := msg.payload
		result = append(result, &payload)
	}
	return result, nil
}

// Drain waits for scheduled redeliveries to land in the queue
func (q *Queue[T]) Drain() {
	q.inFlight.Wait()
}

func (q *Queue[T]) redeliver(msg *Message[T]) {
	q.inFlight.Add(1)
	time.AfterFunc(q.config.RetryDelay, func() {
		defer q.inFlight.Done()
		q.messages <- msg
	})
}

func (q *Queue[T]) deadLetter(msg *Message[T]) {
	q.dlqMu.Lock()
	q.dlq = append(q.dlq, msg)
	q.dlqMu.Unlock()
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
var _ messaging.DeadLetters[any] = (*Queue[any])(nil)
