package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	OrdersIngested  *prometheus.CounterVec
	WorkflowActions *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Callbacks       *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		OrdersIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarabar_orders_ingested_total",
				Help: "Ingested orders by outcome (created, duplicate, absent, failed)",
			},
			[]string{"outcome"},
		),
		WorkflowActions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarabar_workflow_actions_total",
				Help: "Executed workflow actions by kind and status",
			},
			[]string{"kind", "status"},
		),
		ProviderErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarabar_provider_errors_total",
				Help: "Provider API errors by provider and error kind",
			},
			[]string{"provider", "kind"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tarabar_provider_request_duration_seconds",
				Help:    "Provider request duration in seconds by operation and provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "provider"},
		),
		Callbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarabar_callbacks_total",
				Help: "Receptor status callbacks by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordIngestion records the outcome of one order ingestion.
func (m *Metrics) RecordIngestion(outcome string) {
	m.OrdersIngested.WithLabelValues(outcome).Inc()
}

// RecordWorkflowAction records one executed workflow action.
func (m *Metrics) RecordWorkflowAction(kind, status string) {
	m.WorkflowActions.WithLabelValues(kind, status).Inc()
}

// RecordProviderError records a provider API error.
func (m *Metrics) RecordProviderError(provider, kind string) {
	m.ProviderErrors.WithLabelValues(provider, kind).Inc()
}

// RecordCallback records a receptor callback outcome.
func (m *Metrics) RecordCallback(outcome string) {
	m.Callbacks.WithLabelValues(outcome).Inc()
}
