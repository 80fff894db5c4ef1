// Package metrics exposes Prometheus instrumentation for the product
// lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the lifecycle collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Operation results by operation and outcome ("ok" or an error code).
	Operations *prometheus.CounterVec

	// Lifecycle transitions: "listed", "scheduled", "donated", "deleted".
	Transitions *prometheus.CounterVec

	OperationLatency *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "podari_product_operations_total",
			Help: "Total product operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "podari_product_transitions_total",
			Help: "Total product lifecycle transitions",
		}, []string{"transition"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "podari_product_operation_duration_seconds",
			Help:    "Duration of product operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// ObserveOperation records the outcome and duration of one operation.
func (m *Metrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncrementTransition records a lifecycle transition.
func (m *Metrics) IncrementTransition(transition string) {
	if m != nil {
		m.Transitions.WithLabelValues(transition).Inc()
	}
}
