// Package kb loads and serves the static knowledge base: the per-subject
// configuration (bindings, known failure modes, dependencies, runbooks)
// and the provider catalog. Both are loaded from YAML, validated, frozen
// into an immutable Snapshot, and served read-only. Snapshots are safely
// shared across concurrent investigations and swapped atomically on
// reload, never mutated in place.
package kb

import (
	"fmt"
)

// SchemaVersion is the config schema version both YAML files must declare.
const SchemaVersion = "v1"

// FailureMode is one known failure mode of a subject, with the indicator
// strings the scorer matches cited evidence against.
type FailureMode struct {
	Name       string   `yaml:"name" json:"name"`
	Indicators []string `yaml:"indicators" json:"indicators"`
}

// Subject is one KB subject record: a service with its capability
// bindings and static operational knowledge.
type Subject struct {
	Name              string            `yaml:"name" json:"name"`
	Environment       string            `yaml:"environment" json:"environment"`
	Bindings          map[string]string `yaml:"bindings" json:"bindings"`
	KnownFailureModes []FailureMode     `yaml:"known_failure_modes" json:"known_failure_modes"`
	Dependencies      []string          `yaml:"dependencies" json:"dependencies"`
	Runbooks          []string          `yaml:"runbooks" json:"runbooks"`
}

// ProviderInstance is one catalog record: a concrete, configured provider
// that a capability can be bound to.
type ProviderInstance struct {
	ID         string                 `yaml:"id" json:"id"`
	Category   string                 `yaml:"category" json:"category"`
	Type       string                 `yaml:"type" json:"type"`
	Operations []string               `yaml:"operations" json:"operations"`
	Config     map[string]interface{} `yaml:"config" json:"config"`
}

// SubjectsFile is the top-level structure of the subjects YAML file.
type SubjectsFile struct {
	SchemaVersion string    `yaml:"schema_version"`
	Subjects      []Subject `yaml:"subjects"`
}

// CatalogFile is the top-level structure of the provider catalog YAML file.
type CatalogFile struct {
	SchemaVersion string             `yaml:"schema_version"`
	Providers     []ProviderInstance `yaml:"providers"`
}

// Validate checks the subjects file for structural errors. Structural
// errors are fatal at load time.
func (f *SubjectsFile) Validate() error {
	if f.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema_version: %q (expected %q)", f.SchemaVersion, SchemaVersion)
	}

	seen := make(map[string]bool)
	for i, s := range f.Subjects {
		if s.Name == "" {
			return fmt.Errorf("subject[%d]: name is required", i)
		}
		key := s.Name + "/" + s.Environment
		if seen[key] {
			return fmt.Errorf("subject[%d]: duplicate subject %q for environment %q", i, s.Name, s.Environment)
		}
		seen[key] = true

		if len(s.Bindings) == 0 {
			return fmt.Errorf("subject[%d] (%s): bindings are required", i, s.Name)
		}
		for capability, providerID := range s.Bindings {
			if capability == "" || providerID == "" {
				return fmt.Errorf("subject[%d] (%s): bindings must map capability to provider id", i, s.Name)
			}
		}
		for j, fm := range s.KnownFailureModes {
			if fm.Name == "" {
				return fmt.Errorf("subject[%d] (%s): known_failure_modes[%d]: name is required", i, s.Name, j)
			}
		}
	}
	return nil
}

// Validate checks the catalog file for structural errors.
func (f *CatalogFile) Validate() error {
	if f.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema_version: %q (expected %q)", f.SchemaVersion, SchemaVersion)
	}

	seen := make(map[string]bool)
	for i, p := range f.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider[%d]: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("provider[%d]: duplicate provider id %q", i, p.ID)
		}
		seen[p.ID] = true

		if p.Category == "" {
			return fmt.Errorf("provider[%d] (%s): category is required", i, p.ID)
		}
		if p.Type == "" {
			return fmt.Errorf("provider[%d] (%s): type is required", i, p.ID)
		}
	}
	return nil
}
