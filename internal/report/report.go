// Package report assembles the terminal RCAReport from ranked hypotheses
// and the evidence set. Assembly is deterministic; everything is derived
// from inputs already computed upstream.
package report

import (
	"fmt"
	"sort"
	"strings"

	"inquest/internal/logging"
	"inquest/internal/models"
)

// Assembler builds reports with fixed confidence bounds.
type Assembler struct {
	// confidenceFloor separates ranked hypotheses from fallbacks.
	confidenceFloor float64
	// maxFallbacks bounds the fallback list.
	maxFallbacks int
	logger       *logging.Logger
}

// New builds an Assembler.
func New(confidenceFloor float64, maxFallbacks int) *Assembler {
	return &Assembler{
		confidenceFloor: confidenceFloor,
		maxFallbacks:    maxFallbacks,
		logger:          logging.GetLogger("report"),
	}
}

// Input carries everything one report needs.
type Input struct {
	Incident   models.IncidentInput
	Hypotheses []models.Hypothesis
	Evidence   []models.EvidenceItem
	Gaps       []models.EvidenceGap
	// Caveats are investigation-level warnings (iteration budget
	// exhausted, reasoning fallback used).
	Caveats []string
}

// Assemble builds the report. Hypotheses must arrive ranked best first;
// those below the confidence floor move to the fallback list. The top
// hypothesis is always the best available one, even below the floor, so
// a report is never empty.
func (a *Assembler) Assemble(in Input) *models.RCAReport {
	r := &models.RCAReport{
		IncidentSummary: in.Incident.Summary(),
		TimeRange:       in.Incident.TimeRange,
		Evidence:        in.Evidence,
		WhatChanged:     whatChanged(in.Evidence),
		ImpactScope:     impactScope(in.Evidence, in.Gaps, in.Caveats),
	}

	var ranked, fallbacks []models.Hypothesis
	for _, h := range in.Hypotheses {
		if h.Confidence >= a.confidenceFloor {
			ranked = append(ranked, h)
		} else {
			fallbacks = append(fallbacks, h)
		}
	}
	if len(fallbacks) > a.maxFallbacks {
		fallbacks = fallbacks[:a.maxFallbacks]
	}

	switch {
	case len(ranked) > 0:
		r.TopHypothesis = ranked[0]
		r.OtherHypotheses = ranked[1:]
		r.FallbackHypotheses = fallbacks
	case len(fallbacks) > 0:
		a.logger.Warn("no hypothesis cleared the confidence floor (%.2f), promoting the best fallback", a.confidenceFloor)
		r.TopHypothesis = fallbacks[0]
		r.FallbackHypotheses = fallbacks[1:]
		r.ImpactScope["caveats"] = append(r.ImpactScope["caveats"],
			fmt.Sprintf("no hypothesis reached the confidence floor (%.2f)", a.confidenceFloor))
	}

	r.NextValidations = nextValidations(r.TopHypothesis, in.Gaps)
	return r
}

// whatChanged groups deployment, build, and change summaries by kind.
func whatChanged(evidence []models.EvidenceItem) map[string][]string {
	out := make(map[string][]string)
	for _, item := range evidence {
		switch item.Kind {
		case models.KindDeployment, models.KindBuild, models.KindChange:
			entries := item.Samples
			if len(entries) == 0 && item.Summary != "" {
				entries = []string{item.Summary}
			}
			out[string(item.Kind)] = append(out[string(item.Kind)], entries...)
		}
	}
	return out
}

// impactScope aggregates error signatures, event reasons, and trace ids
// from the evidence, and surfaces gaps and caveats alongside.
func impactScope(evidence []models.EvidenceItem, gaps []models.EvidenceGap, caveats []string) map[string][]string {
	out := map[string][]string{}

	for _, item := range evidence {
		var bucket string
		switch item.Kind {
		case models.KindLog, models.KindAlert:
			bucket = "error_signatures"
		case models.KindEvent:
			bucket = "event_reasons"
		case models.KindTrace:
			bucket = "trace_ids"
		default:
			continue
		}
		out[bucket] = append(out[bucket], sortedSignals(item)...)
	}
	for bucket, vals := range out {
		out[bucket] = dedup(vals)
	}

	for _, gap := range gaps {
		entry := gap.Capability + ": " + gap.Reason
		out["evidence_gaps"] = append(out["evidence_gaps"], entry)
	}
	if len(evidence) == 0 {
		caveats = append(caveats, "no evidence was collected for this incident")
	}
	if len(caveats) > 0 {
		out["caveats"] = append(out["caveats"], caveats...)
	}
	return out
}

// sortedSignals returns the item's top signal keys sorted by count
// descending, key ascending on ties.
func sortedSignals(item models.EvidenceItem) []string {
	keys := make([]string, 0, len(item.TopSignals))
	for k := range item.TopSignals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := signalCount(item.TopSignals[keys[i]]), signalCount(item.TopSignals[keys[j]])
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func signalCount(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// nextValidations is the top hypothesis' validation list, deduplicated
// with order preserved, plus one suggestion per evidence gap.
func nextValidations(top models.Hypothesis, gaps []models.EvidenceGap) []string {
	out := dedup(top.Validations)
	for _, gap := range gaps {
		out = append(out, fmt.Sprintf("Restore %s evidence (%s) and re-run the investigation",
			gap.Capability, strings.TrimSpace(gap.Reason)))
	}
	return dedup(out)
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
