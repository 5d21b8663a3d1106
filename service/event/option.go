package event

import (
	"log/slog"

	"github.com/viant/tripmanager/service/messaging/fs"
	"github.com/viant/tripmanager/service/messaging/memory"
)

// Option configures the transition event service
type Option func(s *Service)

// WithNewFsQueueConfig derives the fs queue config of each event type from
// its queue name; it is used when the service vendor is fs
func WithNewFsQueueConfig(fn func(name string) fs.Config) Option {
	return func(s *Service) { s.fsNewQueueConfig = fn }
}

// WithNewMemoryQueueConfig derives the buffered queue config of each event type
func WithNewMemoryQueueConfig(fn func(name string) memory.Config) Option {
	return func(s *Service) { s.memNewQueueConfig = fn }
}

// WithLogger sets the logger listeners report handler failures to
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}
