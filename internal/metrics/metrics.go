// Package metrics holds the Prometheus collectors for reconciliation.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"deposit-reconciler-go/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ReconcileOutcomes *prometheus.CounterVec
	SweepPairs        *prometheus.CounterVec
	SweepDuration     prometheus.Histogram
	UpstreamErrors    *prometheus.CounterVec
	WebhookRequests   *prometheus.CounterVec
	ConflictRetries   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReconcileOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deposit_reconcile_outcomes_total",
			Help: "Observed transfers by asset and reconciliation outcome.",
		}, []string{"asset", "outcome"}),
		SweepPairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deposit_sweep_pairs_total",
			Help: "Address/asset pairs processed by the polling scheduler.",
		}, []string{"result"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deposit_sweep_duration_seconds",
			Help:    "Duration of a full polling sweep.",
			Buckets: prometheus.DefBuckets,
		}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deposit_upstream_errors_total",
			Help: "Chain reader failures by asset.",
		}, []string{"asset"}),
		WebhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deposit_webhook_requests_total",
			Help: "Webhook deliveries by result.",
		}, []string{"result"}),
		ConflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deposit_ledger_conflict_retries_total",
			Help: "Ledger write conflicts that were retried.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ReconcileOutcomes,
			m.SweepPairs,
			m.SweepDuration,
			m.UpstreamErrors,
			m.WebhookRequests,
			m.ConflictRetries,
		)
	}
	return m
}

func (m *Metrics) ObserveOutcome(asset models.Asset, outcome models.Outcome) {
	if m == nil {
		return
	}
	m.ReconcileOutcomes.WithLabelValues(asset.String(), string(outcome)).Inc()
}

func (m *Metrics) ObservePair(result models.PairResult) {
	if m == nil {
		return
	}
	label := "failed"
	switch {
	case result.Skipped:
		label = "skipped"
	case result.Success:
		label = "succeeded"
	}
	m.SweepPairs.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveUpstreamError(asset models.Asset) {
	if m == nil {
		return
	}
	m.UpstreamErrors.WithLabelValues(asset.String()).Inc()
}

func (m *Metrics) ObserveWebhook(result string) {
	if m == nil {
		return
	}
	m.WebhookRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveConflictRetry() {
	if m == nil {
		return
	}
	m.ConflictRetries.Inc()
}
