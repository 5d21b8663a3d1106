package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/tripmanager/internal/clock"
	"github.com/viant/tripmanager/service/messaging"
)

// ErrAlreadyProcessed is returned when a message is acked or nacked twice
var ErrAlreadyProcessed = errors.New("message already processed")

// MessageState represents the state of a message in the filesystem queue
type MessageState string

const (
	// MessageStatePending indicates a message is waiting to be processed
	MessageStatePending MessageState = "pending"

	// MessageStateProcessing indicates a message is being processed
	MessageStateProcessing MessageState = "processing"

	// MessageStateDead indicates a message exhausted its retries
	MessageStateDead MessageState = "dead"
)

// Message implements messaging.Message for the filesystem queue
type Message[T any] struct {
	ID          string       `json:"id"`
	Data        T            `json:"data"`
	State       MessageState `json:"state"`
	Error       string       `json:"error,omitempty"`
	Retries     int          `json:"retries"`
	CreatedAt   time.Time    `json:"createdAt"`
	AvailableAt time.Time    `json:"availableAt"`

	name      string
	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack removes the message from the processing directory
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return ErrAlreadyProcessed
	}
	m.processed = true
	return m.queue.complete(context.Background(), m)
}

// Nack returns the message to pending after RetryDelay, or dead-letters it
// once Retries exceeds MaxRetries
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return ErrAlreadyProcessed
	}
	m.processed = true
	m.Retries++
	if err != nil {
		m.Error = err.Error()
	}
	return m.queue.fail(context.Background(), m)
}

// Config holds configuration for filesystem queue
type Config struct {
	BaseURL    string        // Base directory for queue files
	MaxRetries int           // Maximum number of redeliveries
	RetryDelay time.Duration // Delay before a nacked message becomes visible again
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    "/tmp/tripmanager/queue",
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Queue implements a durable, filesystem-based messaging.Queue. Consume does
// not block: it returns a nil message when nothing is ready.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue creates a new filesystem-based queue
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	baseURL := url.Normalize(config.BaseURL, file.Scheme)
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    url.Join(baseURL, "pending"),
		processingDir: url.Join(baseURL, "processing"),
		dlqDir:        url.Join(baseURL, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish writes a new message to the pending directory
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{
		ID:          uuid.New().String(),
		Data:        *t,
		State:       MessageStatePending,
		CreatedAt:   now,
		AvailableAt: now,
	}
	message.name = fmt.Sprintf("%020d-%s.json", now.UnixNano(), message.ID)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.write(ctx, url.Join(q.pendingDir, message.name), message)
}

// Consume moves the oldest available pending message to processing
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.list(ctx, q.pendingDir)
	if err != nil {
		return nil, err
	}
	now := clock.Now()
	for _, object := range objects {
		message, err := q.read(ctx, object.URL())
		if err != nil {
			_ = q.fs.Move(ctx, object.URL(), url.Join(q.dlqDir, "invalid-"+object.Name()))
			return nil, err
		}
		if message.AvailableAt.After(now) {
			continue
		}
		message.name = object.Name()
		message.queue = q
		message.State = MessageStateProcessing
		if err = q.write(ctx, url.Join(q.processingDir, message.name), message); err != nil {
			return nil, fmt.Errorf("failed to move message to processing: %w", err)
		}
		if err = q.fs.Delete(ctx, object.URL()); err != nil {
			return nil, fmt.Errorf("failed to delete pending message: %w", err)
		}
		return message, nil
	}
	return nil, nil
}

// Recover returns messages left in processing by a crashed consumer to pending
func (q *Queue[T]) Recover(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.list(ctx, q.processingDir)
	if err != nil {
		return 0, err
	}
	for _, object := range objects {
		if err = q.fs.Move(ctx, object.URL(), url.Join(q.pendingDir, object.Name())); err != nil {
			return 0, fmt.Errorf("failed to recover message %s: %w", object.Name(), err)
		}
	}
	return len(objects), nil
}

// DeadLetters returns payloads of dead-lettered messages
func (q *Queue[T]) DeadLetters(ctx context.Context) ([]*T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.list(ctx, q.dlqDir)
	if err != nil {
		return nil, err
	}
	var result []*T
	for _, object := range objects {
		message, err := q.read(ctx, object.URL())
		if err != nil {
			continue
		}
		result = append(result, &message.Data)
	}
	return result, nil
}

func (q *Queue[T]) complete(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	processing := url.Join(q.processingDir, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); !exists {
		return nil
	}
	if err := q.fs.Delete(ctx, processing); err != nil {
		return fmt.Errorf("failed to delete processed message: %w", err)
	}
	return nil
}

func (q *Queue[T]) fail(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	destination := url.Join(q.pendingDir, m.name)
	if m.Retries > q.config.MaxRetries {
		m.State = MessageStateDead
		destination = url.Join(q.dlqDir, m.name)
	} else {
		m.State = MessageStatePending
		m.AvailableAt = clock.Now().Add(q.config.RetryDelay)
	}
	if err := q.write(ctx, destination, m); err != nil {
		return fmt.Errorf("failed to reschedule message: %w", err)
	}
	processing := url.Join(q.processingDir, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		if err := q.fs.Delete(ctx, processing); err != nil {
			return fmt.Errorf("failed to delete processing message: %w", err)
		}
	}
	return nil
}

// list returns json files in dir ordered by name, i.e. by publish time
func (q *Queue[T]) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var result []storage.Object
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			result = append(result, object)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result, nil
}

func (q *Queue[T]) write(ctx context.Context, URL string, message *Message[T]) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	message := &Message[T]{}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return message, nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
var _ messaging.DeadLetters[any] = (*Queue[any])(nil)
