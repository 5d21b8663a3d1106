package tripmanager

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/auth"
	"github.com/viant/tripmanager/service/dao"
	"github.com/viant/tripmanager/service/host"
)

// Option configures the Service
type Option func(s *Service)

// WithConfig sets the configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithLogger sets the logger shared by all components
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithWorkflow sets the workflow executed by every instance
func WithWorkflow(workflow host.Workflow) Option {
	return func(s *Service) {
		s.workflow = workflow
	}
}

// WithInstanceDAO overrides the configured instance store
func WithInstanceDAO(instanceDAO dao.Service[instance.Key, instance.Instance]) Option {
	return func(s *Service) {
		s.instanceDAO = instanceDAO
	}
}

// WithValidator overrides the configured request validator
func WithValidator(validator auth.Validator) Option {
	return func(s *Service) {
		s.validator = validator
	}
}

// WithMetricsRegistry sets the Prometheus registry collectors are added to
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(s *Service) {
		s.metricsRegistry = registry
	}
}
