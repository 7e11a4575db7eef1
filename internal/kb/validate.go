package kb

import (
	"fmt"
	"sort"

	"inquest/internal/adapter"
)

// CrossValidate runs the strict checks the loader deliberately skips:
// binding references must resolve, bound categories must match their
// capability, and declared operations must be sane. Loading stays
// structural so a broken binding degrades to an evidence gap at runtime;
// this is the lint pass operators run before shipping KB changes.
func CrossValidate(subjects *SubjectsFile, catalog *CatalogFile) []error {
	var errs []error

	providers := make(map[string]ProviderInstance, len(catalog.Providers))
	for _, p := range catalog.Providers {
		providers[p.ID] = p
	}

	for _, sub := range subjects.Subjects {
		caps := make([]string, 0, len(sub.Bindings))
		for capability := range sub.Bindings {
			caps = append(caps, capability)
		}
		sort.Strings(caps)

		for _, capability := range caps {
			providerID := sub.Bindings[capability]
			if !adapter.Capability(capability).Valid() {
				errs = append(errs, fmt.Errorf("subject %q: unknown capability %q", sub.Name, capability))
				continue
			}
			p, ok := providers[providerID]
			if !ok {
				errs = append(errs, fmt.Errorf("subject %q: binding %s -> %q references a provider missing from the catalog",
					sub.Name, capability, providerID))
				continue
			}
			if p.Category != capability {
				errs = append(errs, fmt.Errorf("subject %q: binding %s -> %q has category %q",
					sub.Name, capability, providerID, p.Category))
			}
		}
	}

	for _, p := range catalog.Providers {
		if !adapter.Capability(p.Category).Valid() {
			errs = append(errs, fmt.Errorf("provider %q: unknown category %q", p.ID, p.Category))
		}
		seenOps := make(map[string]bool, len(p.Operations))
		for _, op := range p.Operations {
			if op == "" {
				errs = append(errs, fmt.Errorf("provider %q: empty operation", p.ID))
				continue
			}
			if seenOps[op] {
				errs = append(errs, fmt.Errorf("provider %q: duplicate operation %q", p.ID, op))
			}
			seenOps[op] = true
		}
	}

	return errs
}
