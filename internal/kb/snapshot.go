package kb

import (
	"fmt"
	"sort"
)

// Snapshot is a frozen view over the subjects file and the provider
// catalog. Built once per load, immutable afterwards; lookups are safe
// from any number of goroutines.
type Snapshot struct {
	subjects  map[string]Subject // keyed by name + "/" + environment
	byName    map[string][]Subject
	providers map[string]ProviderInstance
}

// NewSnapshot freezes validated subjects and catalog files into a
// Snapshot. The input files must already have passed Validate.
func NewSnapshot(subjectsFile *SubjectsFile, catalogFile *CatalogFile) *Snapshot {
	s := &Snapshot{
		subjects:  make(map[string]Subject, len(subjectsFile.Subjects)),
		byName:    make(map[string][]Subject),
		providers: make(map[string]ProviderInstance, len(catalogFile.Providers)),
	}
	for _, sub := range subjectsFile.Subjects {
		s.subjects[sub.Name+"/"+sub.Environment] = sub
		s.byName[sub.Name] = append(s.byName[sub.Name], sub)
	}
	for _, p := range catalogFile.Providers {
		s.providers[p.ID] = p
	}
	return s
}

// Subject returns the record for a subject in an environment. A record
// with an empty environment matches any environment.
func (s *Snapshot) Subject(name, environment string) (Subject, error) {
	if sub, ok := s.subjects[name+"/"+environment]; ok {
		return sub, nil
	}
	if sub, ok := s.subjects[name+"/"]; ok {
		return sub, nil
	}
	return Subject{}, fmt.Errorf("subject %q not found in KB (env=%s)", name, environment)
}

// Provider returns the catalog record for a provider instance id.
func (s *Snapshot) Provider(id string) (ProviderInstance, bool) {
	p, ok := s.providers[id]
	return p, ok
}

// SubjectNames returns all subject names, sorted.
func (s *Snapshot) SubjectNames() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderIDs returns all catalog provider ids, sorted.
func (s *Snapshot) ProviderIDs() []string {
	ids := make([]string, 0, len(s.providers))
	for id := range s.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SubjectSlice is the read-only per-subject view handed to the
// hypothesis generator and the scorer. It carries only what the
// reasoning boundary is allowed to see.
type SubjectSlice struct {
	KnownFailureModes []FailureMode `json:"known_failure_modes"`
	Dependencies      []string      `json:"dependencies"`
	Runbooks          []string      `json:"runbooks"`
}

// Slice extracts the reasoning-facing view of a subject.
func (sub Subject) Slice() SubjectSlice {
	return SubjectSlice{
		KnownFailureModes: sub.KnownFailureModes,
		Dependencies:      sub.Dependencies,
		Runbooks:          sub.Runbooks,
	}
}
