package adapter

import (
	"context"
	"errors"
	"net"

	"inquest/internal/models"
)

// Classify wraps an adapter call failure into a typed AdapterError.
// Timeouts and network failures are transient (one retry allowed);
// everything else is semantic and never retried.
func Classify(err error, provider string, capability Capability) *models.AdapterError {
	kind := models.AdapterSemantic

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = models.AdapterTimeout
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			kind = models.AdapterTimeout
		} else {
			kind = models.AdapterTransient
		}
	case errors.Is(err, context.Canceled):
		// Caller aborted; not retryable, not semantic either, but the
		// collector discards the batch on cancellation anyway.
		kind = models.AdapterSemantic
	}

	return &models.AdapterError{
		Kind:       kind,
		Provider:   provider,
		Capability: string(capability),
		Err:        err,
	}
}
