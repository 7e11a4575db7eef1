package hypothesis

import (
	"encoding/json"
	"fmt"
	"strings"

	"inquest/internal/kb"
	"inquest/internal/models"
)

const systemPrompt = `You are an incident investigation assistant. You propose root-cause
hypotheses for a production incident based strictly on the evidence you
are given.

Rules:
- Every hypothesis must cite evidence by id. Only cite ids that appear
  in the EVIDENCE section. Never invent evidence or ids.
- A hypothesis statement names a concrete suspected cause (a component,
  a change, a dependency), not a vague category.
- List contradictions honestly: evidence that argues against the
  hypothesis weakens it, hiding it does not help.
- List validations: concrete checks a human could run to confirm or
  refute the hypothesis.
- Respond with JSON only, no prose, matching exactly this shape:

{"candidates": [{"id": "h1", "statement": "...",
  "supporting_evidence_ids": ["..."], "contradictions": ["..."],
  "validations": ["..."]}]}`

// promptSampleCap bounds samples per item in the prompt payload.
const promptSampleCap = 8

// promptEvidence is the compact view of an item the reasoning service
// sees: enough to cite, not the full payload.
type promptEvidence struct {
	ID         string                 `json:"id"`
	Kind       models.EvidenceKind    `json:"kind"`
	Summary    string                 `json:"summary"`
	TopSignals map[string]interface{} `json:"top_signals,omitempty"`
	Samples    []string               `json:"samples,omitempty"`
}

// buildUserPrompt assembles the task prompt: incident context, the
// KB slice the reasoning service is allowed to see, and the normalized
// evidence. feedback carries the parse error on a corrective retry.
func buildUserPrompt(incident models.IncidentInput, slice kb.SubjectSlice, evidence []models.EvidenceItem, maxCandidates int, feedback string) (string, error) {
	sliceJSON, err := json.MarshalIndent(slice, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal kb slice: %w", err)
	}

	compact := make([]promptEvidence, 0, len(evidence))
	for _, item := range evidence {
		pe := promptEvidence{
			ID:         item.ID,
			Kind:       item.Kind,
			Summary:    item.Summary,
			TopSignals: item.TopSignals,
			Samples:    item.Samples,
		}
		if len(pe.Samples) > promptSampleCap {
			pe.Samples = pe.Samples[:promptSampleCap]
		}
		compact = append(compact, pe)
	}
	evidenceJSON, err := json.MarshalIndent(compact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal evidence: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INCIDENT: %s\n", incident.Summary())
	fmt.Fprintf(&b, "WINDOW: %s to %s\n\n",
		incident.TimeRange.Start.UTC().Format("2006-01-02T15:04:05Z"),
		incident.TimeRange.End.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&b, "KNOWN FAILURE MODES AND DEPENDENCIES:\n%s\n\n", sliceJSON)
	fmt.Fprintf(&b, "EVIDENCE:\n%s\n\n", evidenceJSON)
	fmt.Fprintf(&b, "Propose up to %d root-cause hypotheses for this incident, ordered from most to least plausible. JSON only.", maxCandidates)
	if feedback != "" {
		fmt.Fprintf(&b, "\n\nYour previous response was rejected: %s\nRespond again with valid JSON in the required shape.", feedback)
	}
	return b.String(), nil
}
