package http

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/tripmanager/service/auth"
	"github.com/viant/tripmanager/service/index"
)

// Option configures the handler
type Option func(*Handler)

// WithAuth enables request authentication with validator
func WithAuth(enabled bool, validator auth.Validator) Option {
	return func(h *Handler) {
		h.authEnabled = enabled
		h.validator = validator
	}
}

// WithIndex exposes the active-key index
func WithIndex(idx index.Index) Option {
	return func(h *Handler) {
		h.index = idx
	}
}

// WithGatherer exposes collected metrics on /metrics
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = gatherer
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}
