// Package connect retries startup connections to backing services.
package connect

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// DefaultMaxElapsed bounds how long a dependency may stay unreachable at startup.
const DefaultMaxElapsed = 30 * time.Second

// Retry calls dial with exponential backoff until it succeeds, ctx ends, or
// maxElapsed passes. A zero maxElapsed uses DefaultMaxElapsed.
func Retry(ctx context.Context, logger zerolog.Logger, service string, maxElapsed time.Duration, dial func(ctx context.Context) error) error {
	if maxElapsed <= 0 {
		maxElapsed = DefaultMaxElapsed
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed

	attempt := 0

	return backoff.RetryNotify(func() error {
		attempt++
		return dial(ctx)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		logger.Warn().
			Err(err).
			Str("service", service).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("dependency unavailable, retrying")
	})
}
