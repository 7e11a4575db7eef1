package kb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crossValidateFixtures(t *testing.T) (*SubjectsFile, *CatalogFile) {
	t.Helper()
	subjects := &SubjectsFile{
		SchemaVersion: SchemaVersion,
		Subjects: []Subject{
			{
				Name:        "payments-api",
				Environment: "prod",
				Bindings: map[string]string{
					"log_store":      "vl-prod",
					"deploy_tracker": "gha-prod",
				},
			},
		},
	}
	catalog := &CatalogFile{
		SchemaVersion: SchemaVersion,
		Providers: []ProviderInstance{
			{ID: "vl-prod", Category: "log_store", Type: "victorialogs", Operations: []string{"search", "aggregate"}},
			{ID: "gha-prod", Category: "deploy_tracker", Type: "githubactions", Operations: []string{"list", "get"}},
		},
	}
	return subjects, catalog
}

func TestCrossValidateClean(t *testing.T) {
	subjects, catalog := crossValidateFixtures(t)
	require.NoError(t, subjects.Validate())
	require.NoError(t, catalog.Validate())

	assert.Empty(t, CrossValidate(subjects, catalog))
}

func TestCrossValidateFindsProblems(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SubjectsFile, *CatalogFile)
		wantErr string
	}{
		{
			name: "binding references missing provider",
			mutate: func(s *SubjectsFile, c *CatalogFile) {
				s.Subjects[0].Bindings["vcs"] = "gh-missing"
			},
			wantErr: "missing from the catalog",
		},
		{
			name: "binding capability unknown",
			mutate: func(s *SubjectsFile, c *CatalogFile) {
				s.Subjects[0].Bindings["crystal_ball"] = "vl-prod"
			},
			wantErr: `unknown capability "crystal_ball"`,
		},
		{
			name: "category mismatch",
			mutate: func(s *SubjectsFile, c *CatalogFile) {
				s.Subjects[0].Bindings["metrics_store"] = "vl-prod"
			},
			wantErr: `has category "log_store"`,
		},
		{
			name: "provider category unknown",
			mutate: func(s *SubjectsFile, c *CatalogFile) {
				c.Providers[0].Category = "teapot"
			},
			wantErr: `unknown category "teapot"`,
		},
		{
			name: "duplicate operation",
			mutate: func(s *SubjectsFile, c *CatalogFile) {
				c.Providers[1].Operations = []string{"list", "list"}
			},
			wantErr: `duplicate operation "list"`,
		},
		{
			name: "empty operation",
			mutate: func(s *SubjectsFile, c *CatalogFile) {
				c.Providers[1].Operations = []string{""}
			},
			wantErr: "empty operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subjects, catalog := crossValidateFixtures(t)
			tt.mutate(subjects, catalog)

			errs := CrossValidate(subjects, catalog)
			require.NotEmpty(t, errs)

			found := false
			for _, err := range errs {
				if strings.Contains(err.Error(), tt.wantErr) {
					found = true
				}
			}
			assert.True(t, found, "expected an error containing %q, got %v", tt.wantErr, errs)
		})
	}
}
