package hypothesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"inquest/internal/kb"
	"inquest/internal/logging"
	"inquest/internal/metrics"
	"inquest/internal/models"
)

// Generator turns normalized evidence into validated hypothesis
// candidates. One malformed response gets exactly one corrective retry;
// after that the deterministic heuristic takes over.
type Generator struct {
	provider      Provider
	maxCandidates int
	metrics       *metrics.Metrics
	logger        *logging.Logger
}

// NewGenerator builds a Generator over one reasoning provider.
func NewGenerator(provider Provider, maxCandidates int, m *metrics.Metrics) *Generator {
	return &Generator{
		provider:      provider,
		maxCandidates: maxCandidates,
		metrics:       m,
		logger:        logging.GetLogger("hypothesis"),
	}
}

// candidatesEnvelope is the required response shape.
type candidatesEnvelope struct {
	Candidates []models.HypothesisCandidate `json:"candidates"`
}

// Generate proposes candidates for the incident over the evidence set.
// It never returns an empty slice and never fails the investigation: if
// the reasoning service cannot produce one valid candidate in two
// attempts, the heuristic fallback candidates are returned.
func (g *Generator) Generate(ctx context.Context, incident models.IncidentInput, slice kb.SubjectSlice, evidence []models.EvidenceItem) ([]models.HypothesisCandidate, error) {
	feedback := ""
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		user, err := buildUserPrompt(incident, slice, evidence, g.maxCandidates, feedback)
		if err != nil {
			return nil, err
		}

		raw, err := g.provider.Complete(ctx, systemPrompt, user)
		if err != nil {
			lastErr = err
			g.logger.Warn("provider %s attempt %d failed: %v", g.provider.Name(), attempt, err)
			feedback = "the service call failed, respond with JSON only"
			continue
		}

		candidates, err := g.parse(raw, evidence)
		if err != nil {
			lastErr = err
			g.logger.Warn("attempt %d produced unusable candidates: %v", attempt, err)
			feedback = err.Error()
			continue
		}
		return candidates, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rerr := &models.ReasoningServiceError{Attempts: 2, Err: lastErr}
	g.logger.ErrorWithErr("falling back to heuristic candidates", rerr)
	return HeuristicCandidates(incident, evidence), nil
}

// parse decodes and validates one raw completion. Candidates citing
// unknown evidence ids are dropped with a warning; zero surviving
// candidates is an error so the caller retries.
func (g *Generator) parse(raw string, evidence []models.EvidenceItem) ([]models.HypothesisCandidate, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("response contains no JSON object")
	}

	var env candidatesEnvelope
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	if len(env.Candidates) == 0 {
		return nil, fmt.Errorf("response contains no candidates")
	}

	known := make(map[string]bool, len(evidence))
	for _, item := range evidence {
		known[item.ID] = true
	}

	var out []models.HypothesisCandidate
	seen := make(map[string]bool)
	for i, cand := range env.Candidates {
		if len(out) >= g.maxCandidates {
			g.logger.Debug("discarding candidates beyond the cap (%d)", g.maxCandidates)
			break
		}
		if cand.ID == "" {
			cand.ID = fmt.Sprintf("h%d", i+1)
		}
		if seen[cand.ID] {
			g.logger.Warn("dropping candidate with duplicate id %q", cand.ID)
			continue
		}
		if strings.TrimSpace(cand.Statement) == "" {
			g.logger.Warn("dropping candidate %q with empty statement", cand.ID)
			continue
		}
		if len(cand.SupportingEvidenceIDs) == 0 {
			g.logger.Warn("dropping candidate %q with no citations", cand.ID)
			g.metrics.RecordDroppedCandidate("no_citations")
			continue
		}
		if missing := firstUnknownCitation(cand, known); missing != "" {
			verr := &models.CandidateValidationError{CandidateID: cand.ID, MissingID: missing}
			g.logger.Warn("dropping candidate: %v", verr)
			g.metrics.RecordDroppedCandidate("unknown_citation")
			continue
		}
		seen[cand.ID] = true
		out = append(out, cand)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("all %d candidates were invalid", len(env.Candidates))
	}
	return out, nil
}

func firstUnknownCitation(cand models.HypothesisCandidate, known map[string]bool) string {
	for _, id := range cand.SupportingEvidenceIDs {
		if !known[id] {
			return id
		}
	}
	return ""
}

// extractJSON returns the outermost JSON object in raw, tolerating prose
// and markdown fences around it.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
