package hypothesis

import (
	"fmt"
	"sort"

	"inquest/internal/models"
)

// HeuristicCandidates builds deterministic fallback candidates straight
// from the evidence, used when the reasoning service is unusable. The
// result is fully reproducible for identical evidence.
func HeuristicCandidates(incident models.IncidentInput, evidence []models.EvidenceItem) []models.HypothesisCandidate {
	var deploy, change, firstLog, firstAlert *models.EvidenceItem
	for i := range evidence {
		item := &evidence[i]
		switch {
		case deploy == nil && (item.Kind == models.KindDeployment || item.Kind == models.KindBuild):
			deploy = item
		case change == nil && item.Kind == models.KindChange:
			change = item
		case firstLog == nil && item.Kind == models.KindLog:
			firstLog = item
		case firstAlert == nil && (item.Kind == models.KindAlert || item.Kind == models.KindEvent):
			firstAlert = item
		}
	}

	// Logs carry signatures, so they beat the seed alert as the error
	// anchor.
	errorful := firstLog
	if errorful == nil {
		errorful = firstAlert
	}

	var out []models.HypothesisCandidate

	if deploy != nil {
		cites := []string{deploy.ID}
		if errorful != nil {
			cites = append(cites, errorful.ID)
		}
		out = append(out, models.HypothesisCandidate{
			ID: "h1",
			Statement: fmt.Sprintf("A recent deployment to %s introduced a regression: %s",
				incident.Subject, deploy.Summary),
			SupportingEvidenceIDs: cites,
			Validations: []string{
				fmt.Sprintf("Roll back the most recent deployment to %s and watch the error rate", incident.Subject),
				"Compare error signatures before and after the deployment timestamp",
			},
		})
	}

	if errorful != nil {
		statement := fmt.Sprintf("%s is failing in %s during the incident window: %s",
			incident.Subject, incident.Environment, errorful.Summary)
		if sig := dominantSignal(*errorful); sig != "" {
			statement = fmt.Sprintf("%s is emitting elevated %q errors in %s",
				incident.Subject, sig, incident.Environment)
		}
		cites := []string{errorful.ID}
		if change != nil {
			cites = append(cites, change.ID)
		}
		out = append(out, models.HypothesisCandidate{
			ID:                    fmt.Sprintf("h%d", len(out)+1),
			Statement:             statement,
			SupportingEvidenceIDs: cites,
			Validations: []string{
				"Inspect the dominant error signature in the log samples",
				fmt.Sprintf("Check the health of %s dependencies over the incident window", incident.Subject),
			},
		})
	}

	if len(out) == 0 {
		cand := models.HypothesisCandidate{
			ID: "h1",
			Statement: fmt.Sprintf("Cause undetermined: no anomalous evidence was collected for %s in %s",
				incident.Subject, incident.Environment),
			Validations: []string{
				"Widen the investigation window and re-run",
				"Verify the subject's capability bindings point at live providers",
			},
		}
		if len(evidence) > 0 {
			cand.SupportingEvidenceIDs = []string{evidence[0].ID}
		}
		out = append(out, cand)
	}

	return out
}

// dominantSignal picks the highest-count top signal, breaking count ties
// lexicographically so the choice never depends on map order.
func dominantSignal(item models.EvidenceItem) string {
	best := ""
	bestCount := -1
	keys := make([]string, 0, len(item.TopSignals))
	for k := range item.TopSignals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		count, ok := item.TopSignals[k].(int)
		if !ok {
			if f, fok := item.TopSignals[k].(float64); fok {
				count = int(f)
			}
		}
		if count > bestCount {
			best = k
			bestCount = count
		}
	}
	return best
}
