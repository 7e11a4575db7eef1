package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inquest/internal/adapter"
	"inquest/internal/config"
	"inquest/internal/hypothesis"
	"inquest/internal/kb"
	"inquest/internal/models"
	"inquest/internal/registry"
)

var onset = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func testIncident() models.IncidentInput {
	return models.IncidentInput{
		Title:       "checkout failing",
		Severity:    "critical",
		Environment: "production",
		Subject:     "payments-api",
		TimeRange:   models.TimeRange{Start: onset, End: onset.Add(30 * time.Minute)},
		Labels:      map[string]string{"alertname": "HighErrorRate"},
	}
}

type fakeAdapter struct {
	provider string
	cap      adapter.Capability
	calls    atomic.Int32
	result   func(req adapter.Request) *adapter.Result
}

func (f *fakeAdapter) Query(_ context.Context, req adapter.Request) (*adapter.Result, error) {
	f.calls.Add(1)
	return f.result(req), nil
}

func (f *fakeAdapter) Provider() string { return f.provider }

func logFake() *fakeAdapter {
	f := &fakeAdapter{provider: "vl-1", cap: adapter.CapLogStore}
	f.result = func(req adapter.Request) *adapter.Result {
		return &adapter.Result{
			Capability: adapter.CapLogStore,
			Provider:   "vl-1",
			Kind:       models.KindLog,
			TimeRange:  req.TimeRange,
			Query:      `service:"payments-api"`,
			Summary:    "error log samples",
			Records: []adapter.RawRecord{
				{Timestamp: onset.Add(2 * time.Minute), Message: "NullPointerException in capture handler",
					Signature: "NullPointerException"},
			},
		}
	}
	return f
}

func deployFake(refs []string) *fakeAdapter {
	f := &fakeAdapter{provider: "gha-1", cap: adapter.CapDeployTracker}
	f.result = func(req adapter.Request) *adapter.Result {
		if req.Intent == adapter.IntentMetadata {
			return &adapter.Result{
				Capability: adapter.CapDeployTracker,
				Provider:   "gha-1",
				Kind:       models.KindDeployment,
				TimeRange:  req.TimeRange,
				Summary:    "Deployment " + req.Ref + " latest state: success.",
				Tags:       []string{"deployments", "metadata"},
			}
		}
		return &adapter.Result{
			Capability: adapter.CapDeployTracker,
			Provider:   "gha-1",
			Kind:       models.KindDeployment,
			TimeRange:  req.TimeRange,
			Summary:    "Found 1 deployments in the time window.",
			Records: []adapter.RawRecord{
				{Timestamp: onset.Add(-10 * time.Minute), Message: "deploy main@deadbee to prod",
					Signature: "deadbeefcafe"},
			},
			Refs: refs,
		}
	}
	return f
}

func changeFake() *fakeAdapter {
	f := &fakeAdapter{provider: "gh-1", cap: adapter.CapVCS}
	f.result = func(req adapter.Request) *adapter.Result {
		return &adapter.Result{
			Capability: adapter.CapVCS,
			Provider:   "gh-1",
			Kind:       models.KindChange,
			TimeRange:  req.TimeRange,
			Summary:    "Found 1 commits in the time window.",
			Records: []adapter.RawRecord{
				{Timestamp: onset.Add(-4 * time.Hour), Message: "fix: retry payment capture",
					Signature: "feedface0123"},
			},
		}
	}
	return f
}

// testSetup binds payments-api/prod to the given fakes plus one broken
// trace_store binding, so every run has a gap to report.
func testSetup(t *testing.T, fakes map[adapter.Capability]*fakeAdapter) (*kb.Snapshot, map[string]registry.Factory) {
	t.Helper()

	bindings := map[string]string{"trace_store": "tempo-gone"}
	var providers []kb.ProviderInstance
	factories := make(map[string]registry.Factory)
	for cap, fake := range fakes {
		bindings[string(cap)] = fake.provider
		providers = append(providers, kb.ProviderInstance{ID: fake.provider, Category: string(cap), Type: "fake"})
		factories[string(cap)+":fake"] = func(_ kb.ProviderInstance, _ time.Duration) (adapter.Adapter, error) {
			return fake, nil
		}
	}

	subjects := &kb.SubjectsFile{
		SchemaVersion: kb.SchemaVersion,
		Subjects: []kb.Subject{{
			Name:        "payments-api",
			Environment: "prod",
			Bindings:    bindings,
			KnownFailureModes: []kb.FailureMode{
				{Name: "deploy_regression", Indicators: []string{"NullPointerException", "rollback"}},
			},
			Dependencies: []string{"postgres"},
			Runbooks:     []string{"https://wiki.example.com/payments"},
		}},
	}
	catalog := &kb.CatalogFile{SchemaVersion: kb.SchemaVersion, Providers: providers}
	require.NoError(t, subjects.Validate())
	require.NoError(t, catalog.Validate())
	return kb.NewSnapshot(subjects, catalog), factories
}

func defaultFakes() map[adapter.Capability]*fakeAdapter {
	return map[adapter.Capability]*fakeAdapter{
		adapter.CapLogStore:      logFake(),
		adapter.CapDeployTracker: deployFake(nil),
		adapter.CapVCS:           changeFake(),
	}
}

const strongResponse = `{"candidates": [
	{"id": "h1",
	 "statement": "The deploy main@deadbee to payments-api introduced a NullPointerException regression in the capture handler",
	 "supporting_evidence_ids": ["deployment_0", "log_0", "alert_0"],
	 "contradictions": [],
	 "validations": ["Roll back deploy main@deadbee and watch the error rate"]},
	{"id": "h2",
	 "statement": "An earlier change to payments-api regressed the capture path",
	 "supporting_evidence_ids": ["change_0", "log_0"],
	 "contradictions": [],
	 "validations": ["Review the capture retry change"]}
]}`

const weakResponse = `{"candidates": [
	{"id": "h1", "statement": "something broke",
	 "supporting_evidence_ids": ["log_0"],
	 "contradictions": [],
	 "validations": ["roll back the recent deploy"]}
]}`

func newTestEngine(t *testing.T, fakes map[adapter.Capability]*fakeAdapter, responses ...string) *Engine {
	t.Helper()
	snapshot, factories := testSetup(t, fakes)
	e, err := New(config.Default(), snapshot, factories, hypothesis.NewMockProvider(responses...), nil, nil)
	require.NoError(t, err)
	return e
}

func TestRunConvergesInOneIteration(t *testing.T) {
	fakes := defaultFakes()
	e := newTestEngine(t, fakes, strongResponse)

	rep, err := e.Run(context.Background(), testIncident())
	require.NoError(t, err)

	assert.Equal(t, "h1", rep.TopHypothesis.ID)
	assert.GreaterOrEqual(t, rep.TopHypothesis.Confidence, 0.70)
	assert.Contains(t, rep.TopHypothesis.Statement, "deadbee")

	// One pass only: each adapter queried once.
	assert.Equal(t, int32(1), fakes[adapter.CapLogStore].calls.Load())
	assert.Equal(t, int32(1), fakes[adapter.CapDeployTracker].calls.Load())
	assert.Equal(t, int32(1), fakes[adapter.CapVCS].calls.Load())

	// The broken trace_store binding is a gap, not a failure.
	require.Len(t, rep.ImpactScope["evidence_gaps"], 1)
	assert.Contains(t, rep.ImpactScope["evidence_gaps"][0], "trace_store")

	// The weaker change-only hypothesis trails.
	require.Len(t, rep.OtherHypotheses, 1)
	assert.Equal(t, "h2", rep.OtherHypotheses[0].ID)
	assert.Less(t, rep.OtherHypotheses[0].Confidence, rep.TopHypothesis.Confidence)
}

func TestRunCitationIntegrity(t *testing.T) {
	e := newTestEngine(t, defaultFakes(), strongResponse)

	rep, err := e.Run(context.Background(), testIncident())
	require.NoError(t, err)

	byID := rep.EvidenceByID()
	for _, hyp := range append([]models.Hypothesis{rep.TopHypothesis}, rep.OtherHypotheses...) {
		for _, id := range hyp.SupportingEvidenceIDs {
			assert.Contains(t, byID, id, "hypothesis %s cites %s", hyp.ID, id)
		}
	}
}

func TestRunExhaustsIterationBudget(t *testing.T) {
	fakes := defaultFakes()
	e := newTestEngine(t, fakes, weakResponse, weakResponse)

	rep, err := e.Run(context.Background(), testIncident())
	require.NoError(t, err)

	assert.Equal(t, "h1", rep.TopHypothesis.ID)
	assert.Less(t, rep.TopHypothesis.Confidence, 0.70)

	var found bool
	for _, c := range rep.ImpactScope["caveats"] {
		if strings.Contains(c, "iteration budget") {
			found = true
		}
	}
	assert.True(t, found, "expected an iteration budget caveat, got %v", rep.ImpactScope["caveats"])

	// The targeted second pass repeats the deploy query with an identical
	// window, so the cache serves it.
	assert.Equal(t, int32(1), fakes[adapter.CapDeployTracker].calls.Load())
	// Logs were only in the first pass.
	assert.Equal(t, int32(1), fakes[adapter.CapLogStore].calls.Load())
}

func TestRunDropsFabricatedCitations(t *testing.T) {
	response := `{"candidates": [
		{"id": "h1", "statement": "fabricated", "supporting_evidence_ids": ["trace_7"],
		 "contradictions": [], "validations": []},
		{"id": "h2", "statement": "something broke", "supporting_evidence_ids": ["log_0"],
		 "contradictions": [], "validations": []}
	]}`
	e := newTestEngine(t, defaultFakes(), response, response)

	rep, err := e.Run(context.Background(), testIncident())
	require.NoError(t, err)
	assert.Equal(t, "h2", rep.TopHypothesis.ID)
}

func TestRunMetadataFollowUp(t *testing.T) {
	fakes := defaultFakes()
	fakes[adapter.CapDeployTracker] = deployFake([]string{"42"})
	e := newTestEngine(t, fakes, strongResponse)

	rep, err := e.Run(context.Background(), testIncident())
	require.NoError(t, err)

	var metadataItems int
	for _, item := range rep.Evidence {
		if item.Kind == models.KindDeployment && item.HasTag("metadata") {
			metadataItems++
		}
	}
	assert.Equal(t, 1, metadataItems)
	// Listing plus one metadata call.
	assert.Equal(t, int32(2), fakes[adapter.CapDeployTracker].calls.Load())
}

func TestRunDeterministicEvidenceIDs(t *testing.T) {
	run := func() *models.RCAReport {
		e := newTestEngine(t, defaultFakes(), strongResponse)
		rep, err := e.Run(context.Background(), testIncident())
		require.NoError(t, err)
		return rep
	}

	a, b := run(), run()
	require.Equal(t, len(a.Evidence), len(b.Evidence))
	for i := range a.Evidence {
		assert.Equal(t, a.Evidence[i].ID, b.Evidence[i].ID)
	}
	if diff := cmp.Diff(a.TopHypothesis.ScoreBreakdown, b.TopHypothesis.ScoreBreakdown); diff != "" {
		t.Errorf("score breakdown differs between identical runs:\n%s", diff)
	}
}

func TestRunSeedAndKBEvidence(t *testing.T) {
	e := newTestEngine(t, defaultFakes(), strongResponse)

	rep, err := e.Run(context.Background(), testIncident())
	require.NoError(t, err)

	byID := rep.EvidenceByID()
	require.Contains(t, byID, "alert_0")
	assert.Equal(t, "incident", byID["alert_0"].Source)
	require.Contains(t, byID, "service_graph_0")
	require.Contains(t, byID, "runbook_0")
}

func TestRunRejectsUnknownEnvironment(t *testing.T) {
	e := newTestEngine(t, defaultFakes(), strongResponse)

	incident := testIncident()
	incident.Environment = "mars"
	_, err := e.Run(context.Background(), incident)
	require.Error(t, err)
}

func TestRunRejectsUnknownSubject(t *testing.T) {
	e := newTestEngine(t, defaultFakes(), strongResponse)

	incident := testIncident()
	incident.Subject = "ghost-service"
	_, err := e.Run(context.Background(), incident)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunHonorsCancellation(t *testing.T) {
	e := newTestEngine(t, defaultFakes(), strongResponse)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, testIncident())
	require.ErrorIs(t, err, context.Canceled)
}
