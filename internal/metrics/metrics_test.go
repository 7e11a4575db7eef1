package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordInvestigation("done", 3*time.Second)
	m.RecordAdapterCall("log_store", "ok")
	m.RecordAdapterCall("log_store", "ok")
	m.RecordAdapterCall("vcs", "error")
	m.RecordEvidenceGap("trace_store")
	m.RecordDroppedCandidate("unknown_citation")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.investigationsTotal.WithLabelValues("done")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.adapterCallsTotal.WithLabelValues("log_store", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.adapterCallsTotal.WithLabelValues("vcs", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.evidenceGapsTotal.WithLabelValues("trace_store")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.candidatesDroppedTotal.WithLabelValues("unknown_citation")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordInvestigation("done", time.Second)
		m.RecordAdapterCall("log_store", "ok")
		m.RecordEvidenceGap("vcs")
		m.RecordDroppedCandidate("no_citations")
	})
}

func TestRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = New(reg)
	require.Panics(t, func() { _ = New(reg) })
}
