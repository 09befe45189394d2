// Package metrics holds the prometheus instruments shared by the check
// cycles and the bot. Everything is built on a private registry and
// injected through constructors, so nothing here is global state.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration outcomes used as the label of Registrations.
const (
	RegAdded     = "added"
	RegDuplicate = "duplicate"
	RegFailed    = "failed"
)

// Metrics bundles all collectors used across the application.
type Metrics struct {
	CyclesTotal     prometheus.Counter
	CycleDuration   prometheus.Histogram
	ProductsChecked *prometheus.CounterVec
	AlertsSent      *prometheus.CounterVec
	SendFailures    prometheus.Counter
	Registrations   *prometheus.CounterVec

	// Mirrors of Registrations, readable by the admin statistics view.
	regAdded     atomic.Int64
	regDuplicate atomic.Int64
	regFailed    atomic.Int64
}

// New registers all collectors on reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "warehouse_bot_check_cycles_total",
			Help: "Check cycles started.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "warehouse_bot_check_cycle_duration_seconds",
			Help:    "Duration of a full check cycle.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ProductsChecked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warehouse_bot_products_checked_total",
			Help: "Products inspected, per checker.",
		}, []string{"checker"}),
		AlertsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warehouse_bot_alerts_total",
			Help: "Alerts emitted, per checker and kind.",
		}, []string{"checker", "kind"}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "warehouse_bot_send_failures_total",
			Help: "Alert deliveries that failed.",
		}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warehouse_bot_registrations_total",
			Help: "Counterparty registration attempts, per outcome.",
		}, []string{"result"}),
	}
}

// CountRegistration records one registration attempt outcome.
func (m *Metrics) CountRegistration(result string) {
	m.Registrations.WithLabelValues(result).Inc()
	switch result {
	case RegAdded:
		m.regAdded.Add(1)
	case RegDuplicate:
		m.regDuplicate.Add(1)
	case RegFailed:
		m.regFailed.Add(1)
	}
}

// RegistrationTotals returns the registration counts since startup.
func (m *Metrics) RegistrationTotals() (added, duplicate, failed int64) {
	return m.regAdded.Load(), m.regDuplicate.Load(), m.regFailed.Load()
}
