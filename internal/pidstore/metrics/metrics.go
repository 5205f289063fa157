package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for identifier reconciliation.
type Metrics struct {
	// Minted identifiers by type
	Minted *prometheus.CounterVec

	// Retired identifiers by type
	Retired *prometheus.CounterVec

	// Collisions skipped during minting, by type
	Collisions *prometheus.CounterVec
}

// New creates a Metrics instance with all pidstore metrics registered.
func New() *Metrics {
	return &Metrics{
		Minted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bibflow_identifiers_minted_total",
			Help: "Total identifiers minted by type",
		}, []string{"type"}),

		Retired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bibflow_identifiers_retired_total",
			Help: "Total identifiers retired by type",
		}, []string{"type"}),

		Collisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bibflow_identifier_collisions_total",
			Help: "Total identifier mint collisions skipped by type",
		}, []string{"type"}),
	}
}

// IncMinted records a successful mint.
func (m *Metrics) IncMinted(pidType string) {
	if m != nil {
		m.Minted.WithLabelValues(pidType).Inc()
	}
}

// IncRetired records a retired identifier.
func (m *Metrics) IncRetired(pidType string) {
	if m != nil {
		m.Retired.WithLabelValues(pidType).Inc()
	}
}

// IncCollision records a skipped mint collision.
func (m *Metrics) IncCollision(pidType string) {
	if m != nil {
		m.Collisions.WithLabelValues(pidType).Inc()
	}
}
