package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"inquest/internal/kb"
)

var (
	validateKBPath      string
	validateCatalogPath string
	printSnapshot       bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the KB and provider catalog",
	Long: `Validate loads the subjects and provider catalog YAML files, runs the
structural checks the engine runs at startup, and then the stricter
cross-reference checks: every binding must point at a cataloged provider
whose category matches the bound capability, and declared operations must
be non-empty and unique. Exits non-zero if any check fails.`,
	Run: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateKBPath, "kb", "kb/subjects.yaml", "Path to the KB subjects YAML file")
	validateCmd.Flags().StringVar(&validateCatalogPath, "catalog", "kb/providers.yaml", "Path to the provider catalog YAML file")
	validateCmd.Flags().BoolVar(&printSnapshot, "print", false, "Print the canonical snapshot after validation")
}

// canonicalSnapshot is the stable, sorted view emitted by --print. Diffing
// two runs of it shows exactly what a KB change did.
type canonicalSnapshot struct {
	SchemaVersion string                `yaml:"schema_version"`
	Subjects      []kb.Subject          `yaml:"subjects"`
	Providers     []kb.ProviderInstance `yaml:"providers"`
}

func runValidate(cmd *cobra.Command, args []string) {
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Logging error")
	}

	subjects, err := kb.LoadSubjectsFile(validateKBPath)
	HandleError(err, "KB subjects error")

	catalog, err := kb.LoadCatalogFile(validateCatalogPath)
	HandleError(err, "Provider catalog error")

	if errs := kb.CrossValidate(subjects, catalog); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("OK: %d subjects, %d providers\n", len(subjects.Subjects), len(catalog.Providers))

	if printSnapshot {
		HandleError(printCanonical(subjects, catalog), "Print error")
	}
}

func printCanonical(subjects *kb.SubjectsFile, catalog *kb.CatalogFile) error {
	snap := canonicalSnapshot{
		SchemaVersion: kb.SchemaVersion,
		Subjects:      append([]kb.Subject(nil), subjects.Subjects...),
		Providers:     append([]kb.ProviderInstance(nil), catalog.Providers...),
	}
	sort.Slice(snap.Subjects, func(i, j int) bool {
		a, b := snap.Subjects[i], snap.Subjects[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Environment < b.Environment
	})
	sort.Slice(snap.Providers, func(i, j int) bool {
		return snap.Providers[i].ID < snap.Providers[j].ID
	})

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return enc.Close()
}
