package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the callback resumption protocol.
type Metrics struct {
	// Callback requests by endpoint and outcome
	Callbacks *prometheus.CounterVec

	// Workflow resumptions signalled to the engine
	Resumed prometheus.Counter

	// Workflows transitioned to error by an upload failure
	Errored prometheus.Counter

	// Workflows halted on merge conflicts
	Halted prometheus.Counter
}

// New creates a Metrics instance with all workflow metrics registered.
func New() *Metrics {
	return &Metrics{
		Callbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bibflow_workflow_callbacks_total",
			Help: "Total callback requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		Resumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bibflow_workflows_resumed_total",
			Help: "Total workflows signalled to continue",
		}),

		Errored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bibflow_workflows_errored_total",
			Help: "Total workflows transitioned to error by upload failures",
		}),

		Halted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bibflow_workflows_halted_total",
			Help: "Total workflows halted on merge conflicts",
		}),
	}
}

// IncCallback records one callback request outcome.
func (m *Metrics) IncCallback(endpoint, outcome string) {
	if m != nil {
		m.Callbacks.WithLabelValues(endpoint, outcome).Inc()
	}
}

// IncResumed records a workflow resumption signal.
func (m *Metrics) IncResumed() {
	if m != nil {
		m.Resumed.Inc()
	}
}

// IncErrored records a workflow transitioned to error.
func (m *Metrics) IncErrored() {
	if m != nil {
		m.Errored.Inc()
	}
}

// IncHalted records a workflow halted on conflicts.
func (m *Metrics) IncHalted() {
	if m != nil {
		m.Halted.Inc()
	}
}
