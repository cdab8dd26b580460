// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeDiscarded = "discarded"
	OutcomeFailed    = "failed"
)

// Metrics groups the state store collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	recomputations  prometheus.Counter
	notifications   prometheus.Counter
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	sessions        prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recomputations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splitbaba",
			Name:      "ledger_recomputations_total",
			Help:      "Number of full balance and activity feed recomputations.",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splitbaba",
			Name:      "store_notifications_total",
			Help:      "Number of snapshot deliveries to subscribers.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitbaba",
			Name:      "store_refreshes_total",
			Help:      "Household data refreshes by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "splitbaba",
			Name:      "store_refresh_duration_seconds",
			Help:      "Time spent fetching household data.",
			Buckets:   prometheus.DefBuckets,
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "splitbaba",
			Name:      "active_sessions",
			Help:      "Number of signed-in sessions holding a state store.",
		}),
	}
	reg.MustRegister(m.recomputations, m.notifications, m.refreshes, m.refreshDuration, m.sessions)
	return m
}

// Recomputed counts one ledger recomputation.
func (m *Metrics) Recomputed() {
	if m == nil {
		return
	}
	m.recomputations.Inc()
}

// Notified counts snapshot deliveries.
func (m *Metrics) Notified(listeners int) {
	if m == nil {
		return
	}
	m.notifications.Add(float64(listeners))
}

// Refreshed records a finished refresh.
func (m *Metrics) Refreshed(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(took.Seconds())
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}
