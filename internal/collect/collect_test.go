package collect

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inquest/internal/adapter"
	"inquest/internal/kb"
	"inquest/internal/models"
	"inquest/internal/registry"
)

type fakeAdapter struct {
	provider string
	cap      adapter.Capability
	calls    atomic.Int32
	// fn runs per call; the call count starts at 1.
	fn func(call int32, ctx context.Context, req adapter.Request) (*adapter.Result, error)
}

func (f *fakeAdapter) Query(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	call := f.calls.Add(1)
	if f.fn != nil {
		return f.fn(call, ctx, req)
	}
	return &adapter.Result{
		Capability: f.cap,
		Provider:   f.provider,
		Kind:       f.cap.Kind(),
		TimeRange:  req.TimeRange,
		Query:      "fake",
	}, nil
}

func (f *fakeAdapter) Provider() string { return f.provider }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func testWindow() models.TimeRange {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return models.TimeRange{Start: start, End: start.Add(30 * time.Minute)}
}

// testRegistry binds payments-api/prod to one provider per capability in
// caps and routes construction to the given fakes.
func testRegistry(t *testing.T, fakes map[adapter.Capability]*fakeAdapter) *registry.Registry {
	t.Helper()

	bindings := make(map[string]string)
	providers := make([]kb.ProviderInstance, 0, len(fakes))
	factories := make(map[string]registry.Factory)
	for cap, fake := range fakes {
		id := "fake-" + string(cap)
		bindings[string(cap)] = id
		providers = append(providers, kb.ProviderInstance{ID: id, Category: string(cap), Type: "fake"})
		factories[string(cap)+":fake"] = func(instance kb.ProviderInstance, _ time.Duration) (adapter.Adapter, error) {
			return fake, nil
		}
	}

	subjects := &kb.SubjectsFile{
		SchemaVersion: kb.SchemaVersion,
		Subjects: []kb.Subject{{
			Name: "payments-api", Environment: "prod", Bindings: bindings,
		}},
	}
	catalog := &kb.CatalogFile{SchemaVersion: kb.SchemaVersion, Providers: providers}
	require.NoError(t, subjects.Validate())
	require.NoError(t, catalog.Validate())

	return registry.New(kb.NewSnapshot(subjects, catalog), factories, time.Second)
}

func taskFor(cap adapter.Capability) Task {
	return Task{Capability: cap, Request: adapter.Request{
		Subject:     "payments-api",
		Environment: "prod",
		TimeRange:   testWindow(),
		Intent:      adapter.IntentSamples,
		Limit:       10,
	}}
}

func TestCollectOrdersByCapabilityPriority(t *testing.T) {
	fakes := map[adapter.Capability]*fakeAdapter{
		adapter.CapVCS:           {provider: "fake-vcs", cap: adapter.CapVCS},
		adapter.CapLogStore:      {provider: "fake-log_store", cap: adapter.CapLogStore},
		adapter.CapDeployTracker: {provider: "fake-deploy_tracker", cap: adapter.CapDeployTracker},
	}
	c, err := New(testRegistry(t, fakes), time.Second, 16, nil)
	require.NoError(t, err)

	// Tasks submitted in reverse priority order.
	batch, err := c.Collect(context.Background(), "payments-api", "prod", []Task{
		taskFor(adapter.CapVCS),
		taskFor(adapter.CapDeployTracker),
		taskFor(adapter.CapLogStore),
	})
	require.NoError(t, err)
	require.Len(t, batch.Results, 3)
	assert.Equal(t, adapter.CapLogStore, batch.Results[0].Capability)
	assert.Equal(t, adapter.CapDeployTracker, batch.Results[1].Capability)
	assert.Equal(t, adapter.CapVCS, batch.Results[2].Capability)
	assert.Empty(t, batch.Gaps)
}

func TestCollectRecordsGapForUnresolvedCapability(t *testing.T) {
	fakes := map[adapter.Capability]*fakeAdapter{
		adapter.CapLogStore: {provider: "fake-log_store", cap: adapter.CapLogStore},
	}
	c, err := New(testRegistry(t, fakes), time.Second, 16, nil)
	require.NoError(t, err)

	batch, err := c.Collect(context.Background(), "payments-api", "prod", []Task{
		taskFor(adapter.CapLogStore),
		taskFor(adapter.CapTraceStore),
	})
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	require.Len(t, batch.Gaps, 1)
	assert.Equal(t, "trace_store", batch.Gaps[0].Capability)
	assert.Contains(t, batch.Gaps[0].Reason, "no binding")
}

func TestCollectRetriesTimeoutOnce(t *testing.T) {
	flaky := &fakeAdapter{provider: "fake-log_store", cap: adapter.CapLogStore}
	flaky.fn = func(call int32, _ context.Context, req adapter.Request) (*adapter.Result, error) {
		if call == 1 {
			return nil, timeoutErr{}
		}
		return &adapter.Result{Capability: adapter.CapLogStore, Provider: flaky.provider,
			Kind: models.KindLog, TimeRange: req.TimeRange}, nil
	}
	c, err := New(testRegistry(t, map[adapter.Capability]*fakeAdapter{adapter.CapLogStore: flaky}),
		time.Second, 16, nil)
	require.NoError(t, err)

	batch, err := c.Collect(context.Background(), "payments-api", "prod",
		[]Task{taskFor(adapter.CapLogStore)})
	require.NoError(t, err)
	assert.Len(t, batch.Results, 1)
	assert.Empty(t, batch.Gaps)
	assert.Equal(t, int32(2), flaky.calls.Load())
}

func TestCollectDoesNotRetrySemanticFailure(t *testing.T) {
	broken := &fakeAdapter{provider: "fake-log_store", cap: adapter.CapLogStore}
	broken.fn = func(_ int32, _ context.Context, _ adapter.Request) (*adapter.Result, error) {
		return nil, errors.New("unsupported query shape")
	}
	c, err := New(testRegistry(t, map[adapter.Capability]*fakeAdapter{adapter.CapLogStore: broken}),
		time.Second, 16, nil)
	require.NoError(t, err)

	batch, err := c.Collect(context.Background(), "payments-api", "prod",
		[]Task{taskFor(adapter.CapLogStore)})
	require.NoError(t, err)
	require.Len(t, batch.Gaps, 1)
	assert.Contains(t, batch.Gaps[0].Reason, "semantic")
	assert.Equal(t, int32(1), broken.calls.Load())
}

func TestCollectGapAfterSecondFailure(t *testing.T) {
	down := &fakeAdapter{provider: "fake-log_store", cap: adapter.CapLogStore}
	down.fn = func(_ int32, _ context.Context, _ adapter.Request) (*adapter.Result, error) {
		return nil, timeoutErr{}
	}
	c, err := New(testRegistry(t, map[adapter.Capability]*fakeAdapter{adapter.CapLogStore: down}),
		time.Second, 16, nil)
	require.NoError(t, err)

	batch, err := c.Collect(context.Background(), "payments-api", "prod",
		[]Task{taskFor(adapter.CapLogStore)})
	require.NoError(t, err)
	require.Len(t, batch.Gaps, 1)
	assert.Equal(t, "fake-log_store", batch.Gaps[0].Provider)
	assert.Equal(t, int32(2), down.calls.Load())
}

func TestCollectCachesRepeatedQueries(t *testing.T) {
	fake := &fakeAdapter{provider: "fake-log_store", cap: adapter.CapLogStore}
	c, err := New(testRegistry(t, map[adapter.Capability]*fakeAdapter{adapter.CapLogStore: fake}),
		time.Second, 16, nil)
	require.NoError(t, err)

	for range 2 {
		batch, err := c.Collect(context.Background(), "payments-api", "prod",
			[]Task{taskFor(adapter.CapLogStore)})
		require.NoError(t, err)
		require.Len(t, batch.Results, 1)
	}
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestCollectCancelledDiscardsBatch(t *testing.T) {
	fake := &fakeAdapter{provider: "fake-log_store", cap: adapter.CapLogStore}
	c, err := New(testRegistry(t, map[adapter.Capability]*fakeAdapter{adapter.CapLogStore: fake}),
		time.Second, 16, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := c.Collect(ctx, "payments-api", "prod", []Task{taskFor(adapter.CapLogStore)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, batch)
}
