// Package metrics defines the Prometheus collectors for ledger operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeConflict  = "conflict"
	OutcomeInvariant = "invariant"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// Metrics groups every collector the ledger records to.
type Metrics struct {
	// Mutations counts balance-changing operations by op and outcome.
	Mutations *prometheus.CounterVec

	// Settlements counts settle requests by outcome, including replays.
	Settlements *prometheus.CounterVec

	// InvariantViolations counts mutations rejected for breaking zero sum.
	InvariantViolations prometheus.Counter

	// SimplifyTransfers observes how many transfers a simplification returns.
	SimplifyTransfers prometheus.Histogram

	// LockWait observes how long a mutation waited for its group lock.
	LockWait prometheus.Histogram

	// NotifyFailures counts events a notifier could not deliver.
	NotifyFailures *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupledger",
				Name:      "mutations_total",
				Help:      "Balance mutations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		Settlements: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupledger",
				Name:      "settlements_total",
				Help:      "Settlement requests by outcome",
			},
			[]string{"outcome"},
		),
		InvariantViolations: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "groupledger",
				Name:      "invariant_violations_total",
				Help:      "Mutations rejected because balances would not sum to zero",
			},
		),
		SimplifyTransfers: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "groupledger",
				Name:      "simplify_transfers",
				Help:      "Number of transfers returned by debt simplification",
				Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		LockWait: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "groupledger",
				Name:      "group_lock_wait_seconds",
				Help:      "Time spent waiting for the per-group lock",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
		),
		NotifyFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupledger",
				Name:      "notify_failures_total",
				Help:      "Events a notifier failed to deliver",
			},
			[]string{"notifier"},
		),
	}
}

// Noop returns collectors registered to a private registry, for callers
// that do not export metrics.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}
