// Package adapter defines the read-only contract between the engine and
// concrete evidence sources. The engine treats every provider behind this
// interface as opaque: it hands over a bounded, time-windowed request and
// receives raw records back. Adapters must never mutate external state.
package adapter

import (
	"context"
	"time"

	"inquest/internal/models"
)

// Capability names a class of evidence source a subject can be bound to.
type Capability string

const (
	CapLogStore      Capability = "log_store"
	CapMetricsStore  Capability = "metrics_store"
	CapTraceStore    Capability = "trace_store"
	CapAlerting      Capability = "alerting"
	CapDeployTracker Capability = "deploy_tracker"
	CapBuildTracker  Capability = "build_tracker"
	CapVCS           Capability = "vcs"
	CapRuntime       Capability = "runtime"
)

// capabilityPriority is the fixed collection order. Evidence ids are
// assigned in this order (then arrival within a capability), which keeps
// scoring and report output reproducible across runs.
var capabilityPriority = []Capability{
	CapLogStore,
	CapMetricsStore,
	CapTraceStore,
	CapAlerting,
	CapDeployTracker,
	CapBuildTracker,
	CapVCS,
	CapRuntime,
}

// CapabilityPriority returns the fixed collection order as a copy.
func CapabilityPriority() []Capability {
	out := make([]Capability, len(capabilityPriority))
	copy(out, capabilityPriority)
	return out
}

// PriorityIndex returns the position of c in the collection order, or
// len(order) for unknown capabilities so they sort last.
func PriorityIndex(c Capability) int {
	for i, cap := range capabilityPriority {
		if cap == c {
			return i
		}
	}
	return len(capabilityPriority)
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	return PriorityIndex(c) < len(capabilityPriority)
}

// Kind returns the canonical evidence kind items of this capability get.
func (c Capability) Kind() models.EvidenceKind {
	switch c {
	case CapLogStore:
		return models.KindLog
	case CapMetricsStore:
		return models.KindMetric
	case CapTraceStore:
		return models.KindTrace
	case CapAlerting:
		return models.KindAlert
	case CapDeployTracker:
		return models.KindDeployment
	case CapBuildTracker:
		return models.KindBuild
	case CapVCS:
		return models.KindChange
	case CapRuntime:
		return models.KindEvent
	default:
		return models.KindOther
	}
}

// Intent selects what an adapter computes over the window.
type Intent string

const (
	// IntentSamples asks for raw sample records.
	IntentSamples Intent = "samples"
	// IntentSignatureCounts asks for an aggregation of distinct
	// error signatures by count.
	IntentSignatureCounts Intent = "signature_counts"
	// IntentList asks for a listing (deployments, builds, changes).
	IntentList Intent = "list"
	// IntentMetadata asks for metadata about one ref from a prior listing.
	IntentMetadata Intent = "metadata"
)

// Request is one bounded, time-windowed, read-only query.
type Request struct {
	Subject     string
	Environment string
	TimeRange   models.TimeRange
	Intent      Intent
	// Ref selects the target of an IntentMetadata request.
	Ref string
	// Params carries capability-specific parameters (stream selectors,
	// metric queries, namespaces).
	Params map[string]string
	// Limit caps the record count the adapter may return.
	Limit int
}

// RawRecord is one record as returned by an adapter, before
// normalization.
type RawRecord struct {
	Timestamp time.Time
	Message   string
	// Signature is the aggregation key for signature counting; adapters
	// leave it empty when Message should be used.
	Signature string
	Attrs     map[string]string
}

// Result is the raw outcome of one adapter call. The normalizer converts
// it into one EvidenceItem; nothing downstream sees raw results.
type Result struct {
	Capability Capability
	Provider   string
	Kind       models.EvidenceKind
	TimeRange  models.TimeRange
	// Query is the provider-native query string, reproducible by a human.
	Query    string
	Summary  string
	Records  []RawRecord
	// Refs exposes follow-up handles (deployment/build refs) for
	// metadata requests.
	Refs     []string
	Pointers []models.Pointer
	Tags     []string
}

// Adapter is a read-only query function over one provider instance.
type Adapter interface {
	// Query executes one bounded request. Implementations must honor
	// ctx cancellation and req.Limit, and must never mutate external
	// state.
	Query(ctx context.Context, req Request) (*Result, error)

	// Provider returns the provider instance id, for evidence sourcing.
	Provider() string
}
