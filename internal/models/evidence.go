package models

// EvidenceKind classifies an evidence item by the class of signal it
// carries, independent of which provider produced it.
type EvidenceKind string

const (
	KindAlert        EvidenceKind = "alert"
	KindLog          EvidenceKind = "log"
	KindMetric       EvidenceKind = "metric"
	KindDeployment   EvidenceKind = "deployment"
	KindChange       EvidenceKind = "change"
	KindTrace        EvidenceKind = "trace"
	KindEvent        EvidenceKind = "event"
	KindBuild        EvidenceKind = "build"
	KindServiceGraph EvidenceKind = "service_graph"
	KindRunbook      EvidenceKind = "runbook"
	KindOther        EvidenceKind = "other"
)

// knownKinds is the closed set of evidence kinds.
var knownKinds = map[EvidenceKind]bool{
	KindAlert:        true,
	KindLog:          true,
	KindMetric:       true,
	KindDeployment:   true,
	KindChange:       true,
	KindTrace:        true,
	KindEvent:        true,
	KindBuild:        true,
	KindServiceGraph: true,
	KindRunbook:      true,
	KindOther:        true,
}

// Valid reports whether k is a known evidence kind.
func (k EvidenceKind) Valid() bool {
	return knownKinds[k]
}

// Pointer is a reproducible reference (query string or link) that lets a
// human re-run the exact query that produced an evidence item.
type Pointer struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// EvidenceItem is one normalized piece of evidence. Created by the
// normalizer, unique per investigation, never mutated after creation.
// Samples are capped and TopSignals aggregated so the item never carries
// an unbounded raw payload.
type EvidenceItem struct {
	ID         string                 `json:"id"`
	Kind       EvidenceKind           `json:"kind"`
	Source     string                 `json:"source"`
	TimeRange  TimeRange              `json:"time_range"`
	Query      string                 `json:"query"`
	Summary    string                 `json:"summary"`
	Samples    []string               `json:"samples"`
	TopSignals map[string]interface{} `json:"top_signals"`
	Pointers   []Pointer              `json:"pointers"`
	Tags       []string               `json:"tags"`
}

// HasTag reports whether the item carries the given tag.
func (e EvidenceItem) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// EvidenceGap records the intentional absence of evidence for a
// capability. A gap is investigation metadata, not a failure.
type EvidenceGap struct {
	Capability string `json:"capability"`
	Provider   string `json:"provider,omitempty"`
	Reason     string `json:"reason"`
}
