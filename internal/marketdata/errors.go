package marketdata

import (
	"errors"
	"fmt"
)

// ErrUnavailable signals that every fallback tier failed for an entire
// batch. Callers must treat it as "do not overwrite last known state".
var ErrUnavailable = errors.New("market data unavailable on all tiers")

// ErrNotFound signals a ticker unknown to every tier. It is surfaced as
// missing, never defaulted to a synthesized price.
var ErrNotFound = errors.New("ticker not found")

// TransientError wraps provider failures that fallback tiers may absorb:
// timeouts, 5xx responses and rate-limit rejections. The resolver treats
// all of them identically and abandons the affected batch.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient creates a TransientError for a provider failure
func Transient(provider string, err error) error {
	return &TransientError{Provider: provider, Err: err}
}

// IsTransient reports whether err is a provider failure worth falling
// back from rather than propagating
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
