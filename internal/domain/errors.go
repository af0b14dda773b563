package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrValidation     = errors.New("invalid request")
	ErrConflict       = errors.New("operation already in flight")
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrProviderTransient marks provider failures worth retrying with
	// backoff; ErrProviderFatal failures surface immediately.
	ErrProviderTransient = errors.New("transient provider failure")
	ErrProviderFatal     = errors.New("provider failure")
)

// Retryable reports whether the caller may usefully retry the operation that
// produced err. Conflicts are retryable (wait for the in-flight regeneration
// to settle); validation, permission, not-found and budget errors are not.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrProviderTransient), errors.Is(err, ErrConflict):
		return true
	default:
		return false
	}
}
