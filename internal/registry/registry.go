// Package registry resolves subject capability bindings against the
// provider catalog and constructs the adapter behind each binding.
// Resolution failures are per-capability: the caller records a gap and
// keeps collecting from the capabilities that did resolve.
package registry

import (
	"fmt"
	"sync"
	"time"

	"inquest/internal/adapter"
	"inquest/internal/adapter/githubactions"
	"inquest/internal/adapter/githubvcs"
	"inquest/internal/adapter/victorialogs"
	"inquest/internal/kb"
	"inquest/internal/logging"
	"inquest/internal/models"
)

// Factory builds an adapter from a catalog provider instance. One factory
// is registered per "category:type" pair.
type Factory func(instance kb.ProviderInstance, timeout time.Duration) (adapter.Adapter, error)

// DefaultFactories returns the built-in adapter constructors.
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		"log_store:victorialogs":       victorialogs.New,
		"deploy_tracker:githubactions": githubactions.NewDeployTracker,
		"build_tracker:githubactions":  githubactions.NewBuildTracker,
		"vcs:github":                   githubvcs.New,
	}
}

// Registry resolves (subject, environment, capability) to a constructed
// adapter. Adapter instances are memoized per provider id; construction
// and lookup are safe for concurrent use.
type Registry struct {
	snapshot  *kb.Snapshot
	factories map[string]Factory
	timeout   time.Duration
	logger    *logging.Logger

	mu        sync.Mutex
	instances map[string]adapter.Adapter
}

// New builds a Registry over one KB snapshot. Pass DefaultFactories()
// unless a test injects fakes.
func New(snapshot *kb.Snapshot, factories map[string]Factory, timeout time.Duration) *Registry {
	return &Registry{
		snapshot:  snapshot,
		factories: factories,
		timeout:   timeout,
		logger:    logging.GetLogger("registry"),
		instances: make(map[string]adapter.Adapter),
	}
}

// Resolve maps one capability of a subject to its catalog provider
// instance. A missing binding or a binding to an id absent from the
// catalog yields an unresolved BindingError; a provider whose catalog
// category differs from the capability yields a category mismatch.
func (r *Registry) Resolve(subjectName, environment string, cap adapter.Capability) (kb.ProviderInstance, error) {
	sub, err := r.snapshot.Subject(subjectName, environment)
	if err != nil {
		return kb.ProviderInstance{}, err
	}

	providerID, ok := sub.Bindings[string(cap)]
	if !ok || providerID == "" {
		return kb.ProviderInstance{}, &models.BindingError{
			Kind:       models.BindingUnresolved,
			Subject:    subjectName,
			Capability: string(cap),
		}
	}

	instance, ok := r.snapshot.Provider(providerID)
	if !ok {
		return kb.ProviderInstance{}, &models.BindingError{
			Kind:       models.BindingUnresolved,
			Subject:    subjectName,
			Capability: string(cap),
			Provider:   providerID,
		}
	}

	if instance.Category != string(cap) {
		return kb.ProviderInstance{}, &models.BindingError{
			Kind:       models.BindingCategoryMismatch,
			Subject:    subjectName,
			Capability: string(cap),
			Provider:   providerID,
		}
	}

	return instance, nil
}

// Adapter resolves a capability and returns the constructed adapter for
// its provider instance, building it on first use.
func (r *Registry) Adapter(subjectName, environment string, cap adapter.Capability) (adapter.Adapter, error) {
	instance, err := r.Resolve(subjectName, environment, cap)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.instances[instance.ID]; ok {
		return a, nil
	}

	key := instance.Category + ":" + instance.Type
	factory, ok := r.factories[key]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider kind %q", key)
	}

	a, err := factory(instance, r.timeout)
	if err != nil {
		return nil, fmt.Errorf("construct adapter for provider %q: %w", instance.ID, err)
	}

	r.logger.Debug("constructed adapter for provider %s (%s)", instance.ID, key)
	r.instances[instance.ID] = a
	return a, nil
}

// Capabilities returns the subject's bound capabilities in collection
// order. Unknown binding keys are skipped.
func (r *Registry) Capabilities(subjectName, environment string) ([]adapter.Capability, error) {
	sub, err := r.snapshot.Subject(subjectName, environment)
	if err != nil {
		return nil, err
	}

	caps := make([]adapter.Capability, 0, len(sub.Bindings))
	for _, cap := range adapter.CapabilityPriority() {
		if _, ok := sub.Bindings[string(cap)]; ok {
			caps = append(caps, cap)
		}
	}
	return caps, nil
}

// Subject returns the KB record for a subject in an environment.
func (r *Registry) Subject(subjectName, environment string) (kb.Subject, error) {
	return r.snapshot.Subject(subjectName, environment)
}
