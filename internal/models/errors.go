package models

import (
	"errors"
	"fmt"
)

// BindingErrorKind discriminates capability resolution failures.
type BindingErrorKind string

const (
	// BindingUnresolved means the subject has no binding for the capability.
	BindingUnresolved BindingErrorKind = "unresolved"
	// BindingCategoryMismatch means the bound provider's catalog category
	// does not equal the requested capability.
	BindingCategoryMismatch BindingErrorKind = "category_mismatch"
)

// BindingError reports a per-capability resolution failure. It is surfaced
// as an evidence gap; the investigation continues with reduced evidence.
type BindingError struct {
	Kind       BindingErrorKind
	Subject    string
	Capability string
	Provider   string
}

func (e *BindingError) Error() string {
	switch e.Kind {
	case BindingCategoryMismatch:
		return fmt.Sprintf("provider %q bound to capability %q of subject %q has mismatched category",
			e.Provider, e.Capability, e.Subject)
	default:
		return fmt.Sprintf("subject %q has no binding for capability %q", e.Subject, e.Capability)
	}
}

// AdapterErrorKind classifies an adapter call failure. Only transient
// failures are retried.
type AdapterErrorKind string

const (
	AdapterTimeout   AdapterErrorKind = "timeout"
	AdapterTransient AdapterErrorKind = "transient"
	AdapterSemantic  AdapterErrorKind = "semantic"
)

// AdapterError wraps a failed evidence adapter call.
type AdapterError struct {
	Kind       AdapterErrorKind
	Provider   string
	Capability string
	Err        error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s (%s) failed: %s: %v", e.Provider, e.Capability, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Retryable reports whether the failure classification permits one retry.
// Semantic errors are never retried.
func (e *AdapterError) Retryable() bool {
	return e.Kind == AdapterTimeout || e.Kind == AdapterTransient
}

// CandidateValidationError reports a hypothesis candidate citing an
// evidence id absent from the evidence set. The candidate is dropped with
// a warning; generation continues with the remaining candidates.
type CandidateValidationError struct {
	CandidateID string
	MissingID   string
}

func (e *CandidateValidationError) Error() string {
	return fmt.Sprintf("candidate %q cites unknown evidence id %q", e.CandidateID, e.MissingID)
}

// ReasoningServiceError reports malformed or unparseable output from the
// external reasoning service after all retries. The caller falls back to
// the deterministic heuristic candidate; this error never propagates to
// the investigation caller.
type ReasoningServiceError struct {
	Attempts int
	Err      error
}

func (e *ReasoningServiceError) Error() string {
	return fmt.Sprintf("reasoning service failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ReasoningServiceError) Unwrap() error { return e.Err }

// AsBindingError unwraps err into a *BindingError if possible.
func AsBindingError(err error) (*BindingError, bool) {
	var be *BindingError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// AsAdapterError unwraps err into an *AdapterError if possible.
func AsAdapterError(err error) (*AdapterError, bool) {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
