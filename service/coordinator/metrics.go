package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records coordinator outcomes and latencies
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates and registers coordinator collectors. A nil registerer
// leaves them unregistered.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripmanager_operations_total",
				Help: "Total number of coordinator operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tripmanager_operation_duration_seconds",
				Help:    "Coordinator operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	if registerer != nil {
		registerer.MustRegister(m.operations, m.duration)
	}
	return m
}

func (m *Metrics) observe(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
