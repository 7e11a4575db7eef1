// Package scoring computes deterministic confidence scores for
// hypothesis candidates. The scorer is a pure function of the candidate,
// the evidence set, the subject's KB slice, and the incident; no
// randomness, no clocks, no network.
package scoring

import (
	"sort"
	"strings"

	"inquest/internal/kb"
	"inquest/internal/models"
)

// Score computes the breakdown for one candidate. Citations are resolved
// against evidence by id; ids were validated upstream, unknown ids are
// simply skipped here.
func Score(cand models.HypothesisCandidate, evidence []models.EvidenceItem, slice kb.SubjectSlice, incident models.IncidentInput) models.ScoreBreakdown {
	cited := citedItems(cand, evidence)

	b := models.ScoreBreakdown{
		Coverage:             coverage(cited),
		TemporalAlignment:    temporalAlignment(cited, incident),
		KBMatch:              kbMatch(cand, cited, slice),
		DeploySignal:         deploySignal(cited, incident),
		Specificity:          specificity(cand.Statement),
		ContradictionPenalty: contradictionPenalty(cand),
	}

	raw := b.Coverage + b.TemporalAlignment + b.KBMatch + b.DeploySignal + b.Specificity + b.ContradictionPenalty
	b.Total = clamp01(raw / totalNormalizer)
	return b
}

// Rank scores all candidates and orders them best first. Ties break by
// coverage, then specificity, then the candidate's generation order, so
// the ranking is total for any input.
func Rank(cands []models.HypothesisCandidate, evidence []models.EvidenceItem, slice kb.SubjectSlice, incident models.IncidentInput) []models.Hypothesis {
	type ranked struct {
		order int
		hyp   models.Hypothesis
	}
	out := make([]ranked, 0, len(cands))
	for i, cand := range cands {
		b := Score(cand, evidence, slice, incident)
		out = append(out, ranked{order: i, hyp: models.Hypothesis{
			ID:                    cand.ID,
			Statement:             cand.Statement,
			Confidence:            b.Total,
			ScoreBreakdown:        b,
			SupportingEvidenceIDs: cand.SupportingEvidenceIDs,
			Contradictions:        cand.Contradictions,
			Validations:           cand.Validations,
		}})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.hyp.ScoreBreakdown.Total != b.hyp.ScoreBreakdown.Total {
			return a.hyp.ScoreBreakdown.Total > b.hyp.ScoreBreakdown.Total
		}
		if a.hyp.ScoreBreakdown.Coverage != b.hyp.ScoreBreakdown.Coverage {
			return a.hyp.ScoreBreakdown.Coverage > b.hyp.ScoreBreakdown.Coverage
		}
		if a.hyp.ScoreBreakdown.Specificity != b.hyp.ScoreBreakdown.Specificity {
			return a.hyp.ScoreBreakdown.Specificity > b.hyp.ScoreBreakdown.Specificity
		}
		return a.order < b.order
	})

	hyps := make([]models.Hypothesis, len(out))
	for i, r := range out {
		hyps[i] = r.hyp
	}
	return hyps
}

func citedItems(cand models.HypothesisCandidate, evidence []models.EvidenceItem) []models.EvidenceItem {
	byID := make(map[string]models.EvidenceItem, len(evidence))
	for _, item := range evidence {
		byID[item.ID] = item
	}
	cited := make([]models.EvidenceItem, 0, len(cand.SupportingEvidenceIDs))
	for _, id := range cand.SupportingEvidenceIDs {
		if item, ok := byID[id]; ok {
			cited = append(cited, item)
		}
	}
	return cited
}

// coverage counts distinct evidence kinds among the citations, capped.
func coverage(cited []models.EvidenceItem) float64 {
	kinds := make(map[models.EvidenceKind]bool)
	for _, item := range cited {
		kinds[item.Kind] = true
	}
	return min(float64(len(kinds)), CoverageCap)
}

// temporalAlignment is the fraction of timestamped citations starting at
// or after the incident onset, scaled to TemporalCap. Citations without
// timestamps (KB items) are excluded from the fraction.
func temporalAlignment(cited []models.EvidenceItem, incident models.IncidentInput) float64 {
	timed, aligned := 0, 0
	for _, item := range cited {
		if item.TimeRange.Start.IsZero() {
			continue
		}
		timed++
		if !item.TimeRange.Start.Before(incident.TimeRange.Start) {
			aligned++
		}
	}
	if timed == 0 {
		return 0
	}
	return TemporalCap * float64(aligned) / float64(timed)
}

// kbMatch awards one point per distinct known-failure-mode indicator
// found in the candidate statement or in the cited items' tags, top
// signals, or samples, capped.
func kbMatch(cand models.HypothesisCandidate, cited []models.EvidenceItem, slice kb.SubjectSlice) float64 {
	var haystack strings.Builder
	haystack.WriteString(strings.ToLower(cand.Statement))
	for _, item := range cited {
		for _, tag := range item.Tags {
			haystack.WriteByte('\n')
			haystack.WriteString(strings.ToLower(tag))
		}
		for sig := range item.TopSignals {
			haystack.WriteByte('\n')
			haystack.WriteString(strings.ToLower(sig))
		}
		for _, sample := range item.Samples {
			haystack.WriteByte('\n')
			haystack.WriteString(strings.ToLower(sample))
		}
	}
	text := haystack.String()

	matched := 0.0
	seen := make(map[string]bool)
	for _, fm := range slice.KnownFailureModes {
		for _, ind := range fm.Indicators {
			needle := strings.ToLower(ind)
			if needle == "" || seen[needle] {
				continue
			}
			if strings.Contains(text, needle) {
				seen[needle] = true
				matched++
			}
		}
	}
	return min(matched, KBMatchCap)
}

// deploySignal checks whether a cited deployment, build, or change lands
// within DeployWindow before the anomaly anchor. The anchor is the
// earliest timestamped cited log, alert, or event; without one, the
// incident onset.
func deploySignal(cited []models.EvidenceItem, incident models.IncidentInput) float64 {
	anchor := incident.TimeRange.Start
	found := false
	for _, item := range cited {
		switch item.Kind {
		case models.KindLog, models.KindAlert, models.KindEvent:
			if item.TimeRange.Start.IsZero() {
				continue
			}
			if !found || item.TimeRange.Start.Before(anchor) {
				anchor = item.TimeRange.Start
				found = true
			}
		}
	}

	for _, item := range cited {
		switch item.Kind {
		case models.KindDeployment, models.KindBuild, models.KindChange:
			start := item.TimeRange.Start
			if start.IsZero() || start.After(anchor) {
				continue
			}
			if anchor.Sub(start) <= DeployWindow {
				return DeploySignalWeight
			}
		}
	}
	return 0
}

// specificity awards one point for naming a concrete component and one
// for a concrete artifact.
func specificity(statement string) float64 {
	score := 0.0
	if componentPattern.MatchString(strings.ToLower(statement)) {
		score++
	}
	if artifactPattern.MatchString(statement) {
		score++
	}
	return min(score, SpecificityCap)
}

func contradictionPenalty(cand models.HypothesisCandidate) float64 {
	penalty := -ContradictionPenalty * float64(len(cand.Contradictions))
	return max(penalty, ContradictionFloor)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
