package host

import (
	"log/slog"

	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/dao"
	"github.com/viant/tripmanager/service/event"
	"github.com/viant/tripmanager/service/messaging"
)

// Option configures the host service
type Option func(*Service)

// WithConfig sets the host configuration
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithWorkers sets the number of worker goroutines
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.Workers = count
	}
}

// WithInstanceDAO sets the instance store
func WithInstanceDAO(instanceDAO dao.Service[instance.Key, instance.Instance]) Option {
	return func(s *Service) {
		s.instanceDAO = instanceDAO
	}
}

// WithRunQueue sets the queue carrying scheduled runs
func WithRunQueue(queue messaging.Queue[instance.Run]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithWorkflow sets the workflow executed for every instance
func WithWorkflow(workflow Workflow) Option {
	return func(s *Service) {
		s.workflow = workflow
	}
}

// WithTransitionPublisher publishes every status change
func WithTransitionPublisher(publisher *event.Publisher[instance.Transition]) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
