package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inquest/internal/models"
)

func TestCapabilityPriorityIsStable(t *testing.T) {
	first := CapabilityPriority()
	second := CapabilityPriority()
	assert.Equal(t, first, second)
	assert.Equal(t, CapLogStore, first[0], "log_store leads the collection order")

	// Mutating the returned slice must not affect the fixed order.
	first[0] = CapVCS
	assert.Equal(t, CapLogStore, CapabilityPriority()[0])
}

func TestPriorityIndex(t *testing.T) {
	assert.Equal(t, 0, PriorityIndex(CapLogStore))
	assert.Less(t, PriorityIndex(CapDeployTracker), PriorityIndex(CapVCS))
	assert.Equal(t, len(capabilityPriority), PriorityIndex(Capability("bogus")))
	assert.False(t, Capability("bogus").Valid())
	assert.True(t, CapRuntime.Valid())
}

func TestCapabilityKind(t *testing.T) {
	tests := []struct {
		capability Capability
		kind       models.EvidenceKind
	}{
		{CapLogStore, models.KindLog},
		{CapMetricsStore, models.KindMetric},
		{CapTraceStore, models.KindTrace},
		{CapAlerting, models.KindAlert},
		{CapDeployTracker, models.KindDeployment},
		{CapBuildTracker, models.KindBuild},
		{CapVCS, models.KindChange},
		{CapRuntime, models.KindEvent},
		{Capability("bogus"), models.KindOther},
	}

	for _, tt := range tests {
		t.Run(string(tt.capability), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.capability.Kind())
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type connRefusedErr struct{}

func (connRefusedErr) Error() string   { return "connection refused" }
func (connRefusedErr) Timeout() bool   { return false }
func (connRefusedErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  models.AdapterErrorKind
		retryable bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, models.AdapterTimeout, true},
		{"net timeout", timeoutErr{}, models.AdapterTimeout, true},
		{"net refused", connRefusedErr{}, models.AdapterTransient, true},
		{"semantic", errors.New("malformed query"), models.AdapterSemantic, false},
		{"cancelled", context.Canceled, models.AdapterSemantic, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae := Classify(tt.err, "p1", CapLogStore)
			require.NotNil(t, ae)
			assert.Equal(t, tt.wantKind, ae.Kind)
			assert.Equal(t, tt.retryable, ae.Retryable())
			assert.Equal(t, "p1", ae.Provider)
			assert.Equal(t, string(CapLogStore), ae.Capability)
		})
	}
}
