// Package metrics exposes Prometheus instrumentation for the
// investigation pipeline. All collectors register against an injected
// Registerer so tests can use isolated registries. A nil *Metrics is a
// valid no-op recorder.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	investigationsTotal    *prometheus.CounterVec
	investigationDuration  prometheus.Histogram
	adapterCallsTotal      *prometheus.CounterVec
	evidenceGapsTotal      *prometheus.CounterVec
	candidatesDroppedTotal *prometheus.CounterVec
}

// New registers the pipeline collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		investigationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquest_investigations_total",
			Help: "Completed investigations by outcome (done, exhausted, error).",
		}, []string{"outcome"}),
		investigationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inquest_investigation_duration_seconds",
			Help:    "Wall-clock duration of one investigation.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		adapterCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquest_adapter_calls_total",
			Help: "Evidence adapter calls by capability and result (ok, retried, error).",
		}, []string{"capability", "result"}),
		evidenceGapsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquest_evidence_gaps_total",
			Help: "Evidence gaps recorded during collection, by capability.",
		}, []string{"capability"}),
		candidatesDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquest_candidates_dropped_total",
			Help: "Hypothesis candidates dropped during validation, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.investigationsTotal,
		m.investigationDuration,
		m.adapterCallsTotal,
		m.evidenceGapsTotal,
		m.candidatesDroppedTotal,
	)
	return m
}

// RecordInvestigation counts one finished investigation.
func (m *Metrics) RecordInvestigation(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.investigationsTotal.WithLabelValues(outcome).Inc()
	m.investigationDuration.Observe(duration.Seconds())
}

// RecordAdapterCall counts one adapter call attempt outcome.
func (m *Metrics) RecordAdapterCall(capability, result string) {
	if m == nil {
		return
	}
	m.adapterCallsTotal.WithLabelValues(capability, result).Inc()
}

// RecordEvidenceGap counts one recorded gap.
func (m *Metrics) RecordEvidenceGap(capability string) {
	if m == nil {
		return
	}
	m.evidenceGapsTotal.WithLabelValues(capability).Inc()
}

// RecordDroppedCandidate counts one dropped hypothesis candidate.
func (m *Metrics) RecordDroppedCandidate(reason string) {
	if m == nil {
		return
	}
	m.candidatesDroppedTotal.WithLabelValues(reason).Inc()
}
