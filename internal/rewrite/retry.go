package rewrite

import (
	"context"
	"time"

	"github.com/postpilotapp/postpilot/internal/apperr"
)

const (
	retryAttempts    = 3
	retryBackoffBase = time.Second
	retryBackoffCap  = 5 * time.Second
)

// RewriteWithRetry wraps one rewrite call with exponential backoff:
// attempt n waits base*2^(n-1) capped at retryBackoffCap. Validation
// failures are terminal; rate limits and upstream errors are retried.
func RewriteWithRetry(ctx context.Context, sleep func(context.Context, time.Duration), fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	backoff := retryBackoffBase
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if attempt > 1 {
			sleep(ctx, backoff)
			if backoff *= 2; backoff > retryBackoffCap {
				backoff = retryBackoffCap
			}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := fn(ctx)
		if err == nil {
			return text, nil
		}
		if apperr.KindOf(err) == apperr.Validation {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}
