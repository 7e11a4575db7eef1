// Package normalize converts raw adapter results into the canonical
// evidence items everything downstream consumes. A Normalizer is stateful
// per investigation: evidence ids are sequence numbers per kind and must
// stay unique across collection passes.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"inquest/internal/adapter"
	"inquest/internal/kb"
	"inquest/internal/logging"
	"inquest/internal/models"
)

// Normalizer assigns evidence ids and bounds per-item payloads. Not safe
// for concurrent use; one investigation owns one Normalizer.
type Normalizer struct {
	sampleCap     int
	topSignalsCap int
	seq           map[models.EvidenceKind]int
	logger        *logging.Logger
}

// New builds a Normalizer. sampleCap bounds Samples per item;
// topSignalsCap bounds TopSignals entries per item.
func New(sampleCap, topSignalsCap int) *Normalizer {
	return &Normalizer{
		sampleCap:     sampleCap,
		topSignalsCap: topSignalsCap,
		seq:           make(map[models.EvidenceKind]int),
		logger:        logging.GetLogger("normalize"),
	}
}

func (n *Normalizer) nextID(kind models.EvidenceKind) string {
	id := fmt.Sprintf("%s_%d", kind, n.seq[kind])
	n.seq[kind]++
	return id
}

// SeedAlert converts the triggering incident into the first evidence
// item. Call before any collection pass so it takes the first alert id.
func (n *Normalizer) SeedAlert(incident models.IncidentInput) models.EvidenceItem {
	tags := make([]string, 0, len(incident.Labels))
	signals := make(map[string]interface{}, len(incident.Labels)+len(incident.Annotations))
	for k, v := range incident.Labels {
		tags = append(tags, k+"="+v)
		signals[k] = v
	}
	for k, v := range incident.Annotations {
		signals[k] = v
	}
	sort.Strings(tags)
	if len(signals) == 0 {
		signals = nil
	}

	return models.EvidenceItem{
		ID:         n.nextID(models.KindAlert),
		Kind:       models.KindAlert,
		Source:     "incident",
		TimeRange:  incident.TimeRange,
		Summary:    incident.Summary(),
		TopSignals: signals,
		Tags:       tags,
	}
}

// KBItems materializes the subject's static knowledge as evidence: one
// service_graph item over its dependencies and one runbook item per
// runbook reference.
func (n *Normalizer) KBItems(sub kb.Subject) []models.EvidenceItem {
	var items []models.EvidenceItem

	if len(sub.Dependencies) > 0 {
		deps := append([]string(nil), sub.Dependencies...)
		sort.Strings(deps)
		items = append(items, models.EvidenceItem{
			ID:      n.nextID(models.KindServiceGraph),
			Kind:    models.KindServiceGraph,
			Source:  "kb",
			Summary: fmt.Sprintf("%s depends on: %s", sub.Name, strings.Join(deps, ", ")),
			Samples: deps,
			Tags:    []string{"dependencies"},
		})
	}

	for _, rb := range sub.Runbooks {
		items = append(items, models.EvidenceItem{
			ID:       n.nextID(models.KindRunbook),
			Kind:     models.KindRunbook,
			Source:   "kb",
			Summary:  fmt.Sprintf("Runbook for %s", sub.Name),
			Pointers: []models.Pointer{{Title: "runbook", URL: rb}},
			Tags:     []string{"runbook"},
		})
	}

	return items
}

// Items converts one batch of raw results, in order. The caller passes
// results already sorted by capability priority; ids follow that order.
func (n *Normalizer) Items(results []*adapter.Result) []models.EvidenceItem {
	items := make([]models.EvidenceItem, 0, len(results))
	for _, res := range results {
		items = append(items, n.item(res))
	}
	return items
}

func (n *Normalizer) item(res *adapter.Result) models.EvidenceItem {
	item := models.EvidenceItem{
		ID:         n.nextID(res.Kind),
		Kind:       res.Kind,
		Source:     res.Provider,
		TimeRange:  recordSpan(res),
		Query:      res.Query,
		Summary:    res.Summary,
		Samples:    samples(res.Records, n.sampleCap),
		TopSignals: n.topSignals(res.Records),
		Pointers:   res.Pointers,
		Tags:       res.Tags,
	}
	if len(res.Records) > n.sampleCap {
		n.logger.Debug("item %s: capped %d records to %d samples", item.ID, len(res.Records), n.sampleCap)
	}
	return item
}

// recordSpan narrows the item's window to the actual record span when
// records carry timestamps. The scorer aligns on item start times, so a
// deployment item must start at the deploy time, not the query window.
func recordSpan(res *adapter.Result) models.TimeRange {
	span := models.TimeRange{}
	for _, rec := range res.Records {
		if rec.Timestamp.IsZero() {
			continue
		}
		if span.Start.IsZero() || rec.Timestamp.Before(span.Start) {
			span.Start = rec.Timestamp
		}
		if span.End.IsZero() || rec.Timestamp.After(span.End) {
			span.End = rec.Timestamp
		}
	}
	if span.Start.IsZero() {
		return res.TimeRange
	}
	return span
}

func samples(records []adapter.RawRecord, limit int) []string {
	out := make([]string, 0, min(len(records), limit))
	for _, rec := range records {
		if len(out) >= limit {
			break
		}
		if rec.Message == "" {
			continue
		}
		out = append(out, rec.Message)
	}
	return out
}

// topSignals aggregates record signatures by frequency and keeps the top
// K. Ties break toward the signature seen first, which keeps output
// stable for identical inputs.
func (n *Normalizer) topSignals(records []adapter.RawRecord) map[string]interface{} {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, rec := range records {
		sig := rec.Signature
		if sig == "" {
			sig = rec.Message
		}
		if sig == "" {
			continue
		}
		if _, ok := counts[sig]; !ok {
			firstSeen[sig] = i
		}
		counts[sig]++
	}
	if len(counts) == 0 {
		return nil
	}

	sigs := make([]string, 0, len(counts))
	for sig := range counts {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool {
		if counts[sigs[i]] != counts[sigs[j]] {
			return counts[sigs[i]] > counts[sigs[j]]
		}
		return firstSeen[sigs[i]] < firstSeen[sigs[j]]
	})

	if len(sigs) > n.topSignalsCap {
		sigs = sigs[:n.topSignalsCap]
	}
	out := make(map[string]interface{}, len(sigs))
	for _, sig := range sigs {
		out[sig] = counts[sig]
	}
	return out
}
