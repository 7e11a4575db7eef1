package models

// ScoreBreakdown holds the named components of a deterministic confidence
// score. Computed once by the scorer; immutable. Total is the normalized
// confidence in [0,1].
type ScoreBreakdown struct {
	Coverage             float64 `json:"coverage"`
	TemporalAlignment    float64 `json:"temporal_alignment"`
	KBMatch              float64 `json:"kb_match"`
	DeploySignal         float64 `json:"deploy_signal"`
	Specificity          float64 `json:"specificity"`
	ContradictionPenalty float64 `json:"contradiction_penalty"`
	Total                float64 `json:"total"`
}

// HypothesisCandidate is a root-cause candidate as produced by the
// reasoning boundary, before scoring. Candidates citing evidence ids that
// do not exist in the evidence set are dropped, never fixed up.
type HypothesisCandidate struct {
	ID                    string   `json:"id"`
	Statement             string   `json:"statement"`
	SupportingEvidenceIDs []string `json:"supporting_evidence_ids"`
	Contradictions        []string `json:"contradictions"`
	Validations           []string `json:"validations"`
}

// Hypothesis is a scored candidate. Confidence always equals
// ScoreBreakdown.Total. On a second iteration pass hypotheses are
// recomputed from scratch, not mutated in place.
type Hypothesis struct {
	ID                    string         `json:"id"`
	Statement             string         `json:"statement"`
	Confidence            float64        `json:"confidence"`
	ScoreBreakdown        ScoreBreakdown `json:"score_breakdown"`
	SupportingEvidenceIDs []string       `json:"supporting_evidence_ids"`
	Contradictions        []string       `json:"contradictions"`
	Validations           []string       `json:"validations"`
}
