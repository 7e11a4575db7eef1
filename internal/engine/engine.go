// Package engine runs the bounded investigation loop: collect evidence,
// generate candidate hypotheses, score them, then either finish or run
// one targeted collection pass. The loop is a small state machine with a
// hard iteration bound and a wall-clock budget; it always terminates
// with a report for valid input.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"inquest/internal/adapter"
	"inquest/internal/collect"
	"inquest/internal/config"
	"inquest/internal/hypothesis"
	"inquest/internal/kb"
	"inquest/internal/logging"
	"inquest/internal/metrics"
	"inquest/internal/models"
	"inquest/internal/normalize"
	"inquest/internal/registry"
	"inquest/internal/report"
	"inquest/internal/scoring"
)

// Engine executes investigations over one KB snapshot. Safe for
// concurrent use; per-investigation state lives in the investigation
// struct.
type Engine struct {
	cfg       config.Config
	registry  *registry.Registry
	collector *collect.Collector
	generator *hypothesis.Generator
	assembler *report.Assembler
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *logging.Logger
}

// New wires an Engine. factories is usually registry.DefaultFactories();
// provider is the reasoning service; tracer may be nil when tracing is
// disabled.
func New(cfg config.Config, snapshot *kb.Snapshot, factories map[string]registry.Factory, provider hypothesis.Provider, m *metrics.Metrics, tracer trace.Tracer) (*Engine, error) {
	reg := registry.New(snapshot, factories, cfg.AdapterTimeout)
	collector, err := collect.New(reg, cfg.AdapterTimeout, cfg.QueryCacheSize, m)
	if err != nil {
		return nil, err
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("engine")
	}
	return &Engine{
		cfg:       cfg,
		registry:  reg,
		collector: collector,
		generator: hypothesis.NewGenerator(provider, cfg.MaxCandidates, m),
		assembler: report.New(cfg.ConfidenceFloor, cfg.MaxFallbacks),
		metrics:   m,
		tracer:    tracer,
		logger:    logging.GetLogger("engine"),
	}, nil
}

// investigation is the mutable state of one run.
type investigation struct {
	incident  models.IncidentInput
	slice     kb.SubjectSlice
	bound     []adapter.Capability
	state     State
	iteration int
	evidence  []models.EvidenceItem
	gaps      []models.EvidenceGap
	caveats   []string
	ranked    []models.Hypothesis
	logger    *logging.Logger
}

// Run executes one investigation and returns the report. The only error
// paths are invalid input, an unknown subject, and context cancellation;
// degraded evidence or reasoning never fail the run.
func (e *Engine) Run(ctx context.Context, input models.IncidentInput) (*models.RCAReport, error) {
	started := time.Now()

	incident, err := input.Normalize()
	if err != nil {
		e.metrics.RecordInvestigation("error", time.Since(started))
		return nil, err
	}

	runID := uuid.NewString()
	logger := e.logger.WithField("run_id", runID)
	logger.Info("investigating %s", incident.Summary())

	subject, err := e.registry.Subject(incident.Subject, incident.Environment)
	if err != nil {
		e.metrics.RecordInvestigation("error", time.Since(started))
		return nil, err
	}
	bound, err := e.registry.Capabilities(incident.Subject, incident.Environment)
	if err != nil {
		e.metrics.RecordInvestigation("error", time.Since(started))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.InvestigationBudget)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "investigation")
	defer span.End()

	inv := &investigation{
		incident: incident,
		slice:    subject.Slice(),
		bound:    bound,
		state:    StateCollecting,
		logger:   logger,
	}

	normalizer := normalize.New(e.cfg.SampleCap, e.cfg.TopSignalsCap)
	inv.evidence = append(inv.evidence, normalizer.SeedAlert(incident))
	inv.evidence = append(inv.evidence, normalizer.KBItems(subject)...)

	targets := bound
	for !inv.state.Terminal() {
		inv.iteration++

		if err := e.collectPhase(ctx, inv, normalizer, targets); err != nil {
			e.metrics.RecordInvestigation("error", time.Since(started))
			return nil, err
		}
		if err := e.generateAndScore(ctx, inv); err != nil {
			e.metrics.RecordInvestigation("error", time.Since(started))
			return nil, err
		}

		targets, err = e.decide(inv)
		if err != nil {
			e.metrics.RecordInvestigation("error", time.Since(started))
			return nil, err
		}
	}

	rep := e.assembler.Assemble(report.Input{
		Incident:   inv.incident,
		Hypotheses: inv.ranked,
		Evidence:   inv.evidence,
		Gaps:       inv.gaps,
		Caveats:    inv.caveats,
	})

	e.metrics.RecordInvestigation(string(inv.state), time.Since(started))
	logger.Info("investigation %s after %d iteration(s), top confidence %.2f",
		inv.state, inv.iteration, rep.TopHypothesis.Confidence)
	return rep, nil
}

// collectPhase runs one collection pass over targets, chases metadata
// refs, and appends normalized items to the evidence set.
func (e *Engine) collectPhase(ctx context.Context, inv *investigation, normalizer *normalize.Normalizer, targets []adapter.Capability) error {
	ctx, span := e.tracer.Start(ctx, "collect")
	defer span.End()

	tasks := planTasks(inv.incident, targets, e.cfg.SampleCap)
	batch, err := e.collector.Collect(ctx, inv.incident.Subject, inv.incident.Environment, tasks)
	if err != nil {
		return err
	}

	results := batch.Results
	if followUps := metadataTasks(inv.incident, results); len(followUps) > 0 {
		metaBatch, err := e.collector.Collect(ctx, inv.incident.Subject, inv.incident.Environment, followUps)
		if err != nil {
			return err
		}
		results = append(results, metaBatch.Results...)
		// Metadata gaps are not worth a report entry; the listing itself
		// succeeded.
	}

	inv.evidence = append(inv.evidence, normalizer.Items(results)...)
	inv.gaps = appendNewGaps(inv.gaps, batch.Gaps)
	return nil
}

// metadataTasks builds one follow-up metadata request per deployment or
// build listing that exposed refs, for the most recent ref.
func metadataTasks(incident models.IncidentInput, results []*adapter.Result) []collect.Task {
	var tasks []collect.Task
	for _, res := range results {
		if len(res.Refs) == 0 {
			continue
		}
		switch res.Capability {
		case adapter.CapDeployTracker, adapter.CapBuildTracker:
			tasks = append(tasks, collect.Task{
				Capability: res.Capability,
				Request: adapter.Request{
					Subject:     incident.Subject,
					Environment: incident.Environment,
					TimeRange:   res.TimeRange,
					Intent:      adapter.IntentMetadata,
					Ref:         res.Refs[0],
				},
			})
		}
	}
	return tasks
}

// appendNewGaps merges gaps, keeping one entry per capability.
func appendNewGaps(existing, incoming []models.EvidenceGap) []models.EvidenceGap {
	seen := make(map[string]bool, len(existing))
	for _, g := range existing {
		seen[g.Capability] = true
	}
	for _, g := range incoming {
		if seen[g.Capability] {
			continue
		}
		seen[g.Capability] = true
		existing = append(existing, g)
	}
	return existing
}

func (e *Engine) generateAndScore(ctx context.Context, inv *investigation) error {
	if err := inv.transition(StateGenerating); err != nil {
		return err
	}

	genCtx, span := e.tracer.Start(ctx, "generate")
	cands, err := e.generator.Generate(genCtx, inv.incident, inv.slice, inv.evidence)
	span.End()
	if err != nil {
		return err
	}

	if err := inv.transition(StateScoring); err != nil {
		return err
	}
	inv.ranked = scoring.Rank(cands, inv.evidence, inv.slice, inv.incident)
	if err := inv.transition(StateDeciding); err != nil {
		return err
	}
	return nil
}

// decide finishes the loop or picks the capabilities for a targeted
// second pass. Returns the next pass targets when continuing.
func (e *Engine) decide(inv *investigation) ([]adapter.Capability, error) {
	if len(inv.ranked) > 0 && inv.ranked[0].Confidence >= e.cfg.ConfidenceThreshold {
		return nil, inv.transition(StateDone)
	}

	if inv.iteration >= e.cfg.MaxIterations {
		inv.caveats = append(inv.caveats, fmt.Sprintf(
			"iteration budget (%d) exhausted below the confidence threshold (%.2f)",
			e.cfg.MaxIterations, e.cfg.ConfidenceThreshold))
		return nil, inv.transition(StateExhausted)
	}

	var targets []adapter.Capability
	if len(inv.ranked) > 0 {
		targets = targetedCapabilities(inv.ranked[0], inv.bound)
	}
	if len(targets) == 0 {
		inv.caveats = append(inv.caveats,
			"no targeted capability could be inferred from the leading hypothesis")
		return nil, inv.transition(StateExhausted)
	}

	inv.logger.Info("targeted pass over %v after confidence %.2f", targets, inv.ranked[0].Confidence)
	return targets, inv.transition(StateCollecting)
}
