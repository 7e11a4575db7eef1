package kb

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadSubjectsFile loads and validates the subjects YAML file.
func LoadSubjectsFile(path string) (*SubjectsFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load KB subjects from %q: %w", path, err)
	}

	var f SubjectsFile
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse KB subjects from %q: %w", path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("KB subjects validation failed for %q: %w", path, err)
	}
	return &f, nil
}

// LoadCatalogFile loads and validates the provider catalog YAML file.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load provider catalog from %q: %w", path, err)
	}

	var f CatalogFile
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog from %q: %w", path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("provider catalog validation failed for %q: %w", path, err)
	}
	return &f, nil
}

// LoadSnapshot loads both files and freezes them into a Snapshot.
// Any error here is fatal; the engine must not run against a half-valid
// snapshot.
func LoadSnapshot(kbPath, catalogPath string) (*Snapshot, error) {
	subjects, err := LoadSubjectsFile(kbPath)
	if err != nil {
		return nil, err
	}
	catalog, err := LoadCatalogFile(catalogPath)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(subjects, catalog), nil
}
