// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors the orchestrator reports into.
type Metrics struct {
	OperationsCreated  *prometheus.CounterVec
	OperationsSettled  *prometheus.CounterVec
	TransactionsPosted *prometheus.CounterVec
	StepDuration       *prometheus.HistogramVec
	ConfirmRetries     prometheus.Counter
	ConfirmFailures    prometheus.Counter
}

// New creates the collectors and registers them on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_operations_created_total",
			Help: "Operations created, by operation type.",
		}, []string{"type"}),
		OperationsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_operations_settled_total",
			Help: "Operations reaching a terminal status, by type and status.",
		}, []string{"type", "status"}),
		TransactionsPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_transactions_posted_total",
			Help: "Ledger postings created, by transaction type.",
		}, []string{"type"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backoffice_step_duration_seconds",
			Help:    "Duration of operation step transitions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		ConfirmRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_confirm_retries_total",
			Help: "Confirmation queue retry attempts.",
		}),
		ConfirmFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_confirm_failures_total",
			Help: "Confirmation jobs exhausted and surfaced to operators.",
		}),
	}
	reg.MustRegister(
		m.OperationsCreated,
		m.OperationsSettled,
		m.TransactionsPosted,
		m.StepDuration,
		m.ConfirmRetries,
		m.ConfirmFailures,
	)
	return m
}

// NewNop returns metrics backed by an isolated registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
