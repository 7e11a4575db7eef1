package models

import (
	"fmt"
	"strings"
)

// Canonical environment names. Everything entering the engine is mapped
// onto one of these three; anything else is rejected at ingest.
const (
	EnvProd    = "prod"
	EnvStaging = "staging"
	EnvDev     = "dev"
)

// environmentAliases maps accepted spellings to canonical names.
var environmentAliases = map[string]string{
	"prod":        EnvProd,
	"production":  EnvProd,
	"prd":         EnvProd,
	"staging":     EnvStaging,
	"stage":       EnvStaging,
	"stg":         EnvStaging,
	"dev":         EnvDev,
	"development": EnvDev,
}

// CanonicalizeEnvironment maps an environment spelling to its canonical
// form. Unknown values are an error, never silently passed through.
func CanonicalizeEnvironment(value string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(value))
	if raw == "" {
		return "", fmt.Errorf("environment is required")
	}
	env, ok := environmentAliases[raw]
	if !ok {
		return "", fmt.Errorf("unknown environment %q", value)
	}
	return env, nil
}

// EnvironmentAliases returns a copy of the accepted alias table.
func EnvironmentAliases() map[string]string {
	out := make(map[string]string, len(environmentAliases))
	for k, v := range environmentAliases {
		out[k] = v
	}
	return out
}
