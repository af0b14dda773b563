package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
)

// Transient wraps err as a retryable provider failure.
func Transient(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrProviderTransient, err)
}

// Fatal wraps err as a non-retryable provider failure.
func Fatal(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrProviderFatal, err)
}

// Classify normalizes an error from a provider call. Timeouts count as
// transient; anything not already classified is treated as fatal so an
// unknown failure is never retried blindly.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrProviderTransient), errors.Is(err, domain.ErrProviderFatal):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return Transient(err)
	default:
		return Fatal(err)
	}
}
