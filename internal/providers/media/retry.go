package media

import (
	"context"
	"errors"
	"time"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
)

const (
	defaultRetryAttempts = 2
	retryBaseDelay       = 2 * time.Second
)

// Retry runs fn up to attempts+1 times, backing off between tries. Only
// failures classified as transient are retried. onRetry, when set, fires
// before each retry with the 1-based retry count.
func Retry(ctx context.Context, attempts int, fn func() error, onRetry func(count int, err error)) error {
	if attempts < 0 {
		attempts = 0
	}
	var err error
	for try := 0; ; try++ {
		err = Classify(fn())
		if err == nil || !errors.Is(err, domain.ErrProviderTransient) || try == attempts {
			return err
		}
		if onRetry != nil {
			onRetry(try+1, err)
		}
		delay := retryBaseDelay << uint(try)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
