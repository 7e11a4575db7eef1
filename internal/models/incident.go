// Package models defines the core data model for an investigation run:
// incident input, evidence, hypotheses, score breakdowns, and the final
// report. All types here are plain data; they are created once and never
// mutated after an investigation starts.
package models

import (
	"fmt"
	"time"
)

// TimeRange is a half-open investigation window [Start, End).
// Serialized as RFC3339 on the wire.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that the range is well-formed.
func (tr TimeRange) Validate() error {
	if tr.Start.IsZero() || tr.End.IsZero() {
		return fmt.Errorf("time_range start and end are required")
	}
	if !tr.End.After(tr.Start) {
		return fmt.Errorf("time_range end must be after start")
	}
	return nil
}

// Shift returns a copy of the range with both bounds moved by d.
func (tr TimeRange) Shift(d time.Duration) TimeRange {
	return TimeRange{Start: tr.Start.Add(d), End: tr.End.Add(d)}
}

// Expand returns a copy of the range widened by before/after buffers.
func (tr TimeRange) Expand(before, after time.Duration) TimeRange {
	return TimeRange{Start: tr.Start.Add(-before), End: tr.End.Add(after)}
}

// IncidentInput is the vendor-neutral incident description handed to the
// engine by the ingress collaborator. Immutable once an investigation
// starts.
type IncidentInput struct {
	Title       string            `json:"title"`
	Severity    string            `json:"severity"`
	Environment string            `json:"environment"`
	Subject     string            `json:"subject"`
	TimeRange   TimeRange         `json:"time_range"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Normalize validates the incident and canonicalizes its environment.
// It returns a copy; the input is never modified. Unknown environments
// are rejected here, before any investigation starts.
func (in IncidentInput) Normalize() (IncidentInput, error) {
	out := in

	if out.Subject == "" {
		return out, fmt.Errorf("incident subject is required")
	}
	if out.Title == "" {
		out.Title = "incident"
	}
	if out.Severity == "" {
		out.Severity = "unknown"
	}

	env, err := CanonicalizeEnvironment(out.Environment)
	if err != nil {
		return out, err
	}
	out.Environment = env

	if err := out.TimeRange.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// Summary renders the one-line incident summary used in reports.
func (in IncidentInput) Summary() string {
	return fmt.Sprintf("%s (severity=%s, env=%s)", in.Title, in.Severity, in.Environment)
}
