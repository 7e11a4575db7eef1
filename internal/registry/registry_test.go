package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inquest/internal/adapter"
	"inquest/internal/kb"
	"inquest/internal/models"
)

type fakeAdapter struct {
	provider string
}

func (f *fakeAdapter) Query(_ context.Context, _ adapter.Request) (*adapter.Result, error) {
	return &adapter.Result{Provider: f.provider}, nil
}

func (f *fakeAdapter) Provider() string { return f.provider }

func testSnapshot(t *testing.T) *kb.Snapshot {
	t.Helper()
	subjects := &kb.SubjectsFile{
		SchemaVersion: kb.SchemaVersion,
		Subjects: []kb.Subject{{
			Name:        "payments-api",
			Environment: "prod",
			Bindings: map[string]string{
				"log_store":      "vl-prod",
				"deploy_tracker": "gha-prod",
				"vcs":            "missing-provider",
				"metrics_store":  "vl-prod",
			},
		}},
	}
	catalog := &kb.CatalogFile{
		SchemaVersion: kb.SchemaVersion,
		Providers: []kb.ProviderInstance{
			{ID: "vl-prod", Category: "log_store", Type: "victorialogs",
				Config: map[string]interface{}{"base_url": "http://vl:9428"}},
			{ID: "gha-prod", Category: "deploy_tracker", Type: "githubactions",
				Config: map[string]interface{}{"repo": "acme/payments-api"}},
		},
	}
	require.NoError(t, subjects.Validate())
	require.NoError(t, catalog.Validate())
	return kb.NewSnapshot(subjects, catalog)
}

func TestResolve(t *testing.T) {
	r := New(testSnapshot(t), DefaultFactories(), time.Second)

	instance, err := r.Resolve("payments-api", "prod", adapter.CapLogStore)
	require.NoError(t, err)
	assert.Equal(t, "vl-prod", instance.ID)
}

func TestResolveBindingErrors(t *testing.T) {
	r := New(testSnapshot(t), DefaultFactories(), time.Second)

	tests := []struct {
		name string
		cap  adapter.Capability
		kind models.BindingErrorKind
	}{
		{name: "missing binding", cap: adapter.CapTraceStore, kind: models.BindingUnresolved},
		{name: "provider absent from catalog", cap: adapter.CapVCS, kind: models.BindingUnresolved},
		{name: "category mismatch", cap: adapter.CapMetricsStore, kind: models.BindingCategoryMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve("payments-api", "prod", tc.cap)
			be, ok := models.AsBindingError(err)
			require.True(t, ok, "expected a binding error, got %v", err)
			assert.Equal(t, tc.kind, be.Kind)
		})
	}
}

func TestResolveUnknownSubject(t *testing.T) {
	r := New(testSnapshot(t), DefaultFactories(), time.Second)

	_, err := r.Resolve("ghost-service", "prod", adapter.CapLogStore)
	require.Error(t, err)
	_, isBinding := models.AsBindingError(err)
	assert.False(t, isBinding, "unknown subject is not a per-capability gap")
}

func TestAdapterMemoized(t *testing.T) {
	built := 0
	factories := map[string]Factory{
		"log_store:victorialogs": func(instance kb.ProviderInstance, _ time.Duration) (adapter.Adapter, error) {
			built++
			return &fakeAdapter{provider: instance.ID}, nil
		},
	}
	r := New(testSnapshot(t), factories, time.Second)

	a1, err := r.Adapter("payments-api", "prod", adapter.CapLogStore)
	require.NoError(t, err)
	a2, err := r.Adapter("payments-api", "prod", adapter.CapLogStore)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, 1, built)
}

func TestAdapterUnknownProviderKind(t *testing.T) {
	r := New(testSnapshot(t), map[string]Factory{}, time.Second)

	_, err := r.Adapter("payments-api", "prod", adapter.CapLogStore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no adapter registered")
}

func TestCapabilitiesOrdered(t *testing.T) {
	r := New(testSnapshot(t), DefaultFactories(), time.Second)

	caps, err := r.Capabilities("payments-api", "prod")
	require.NoError(t, err)
	assert.Equal(t, []adapter.Capability{
		adapter.CapLogStore,
		adapter.CapMetricsStore,
		adapter.CapDeployTracker,
		adapter.CapVCS,
	}, caps)
}
