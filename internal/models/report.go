package models

// RCAReport is the terminal artifact of one investigation. Immutable once
// assembled. The JSON shape is the external contract consumed by the
// reporting collaborator.
type RCAReport struct {
	IncidentSummary     string              `json:"incident_summary"`
	TimeRange           TimeRange           `json:"time_range"`
	TopHypothesis       Hypothesis          `json:"top_hypothesis"`
	OtherHypotheses     []Hypothesis        `json:"other_hypotheses"`
	FallbackHypotheses  []Hypothesis        `json:"fallback_hypotheses"`
	Evidence            []EvidenceItem      `json:"evidence"`
	WhatChanged         map[string][]string `json:"what_changed"`
	ImpactScope         map[string][]string `json:"impact_scope"`
	NextValidations     []string            `json:"next_validations"`
}

// EvidenceByID builds a lookup table over the report's evidence set.
func (r *RCAReport) EvidenceByID() map[string]EvidenceItem {
	out := make(map[string]EvidenceItem, len(r.Evidence))
	for _, e := range r.Evidence {
		out[e.ID] = e
	}
	return out
}
