package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 500 * time.Millisecond
)

type Operation func() error

type ExponentialConfig struct {
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
	// MaxAttempts counts the first call. Zero means no attempt cap.
	MaxAttempts int
	OnRetry     func(error, time.Duration)
}

// Permanent marks err as not worth retrying; Exponential returns it unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Exponential runs fn until it succeeds, returns a permanent error, the
// attempt or time budget runs out, or ctx is done.
func Exponential(ctx context.Context, fn Operation, cfg ExponentialConfig) error {
	if cfg.InitialInterval <= 0 {
		return errors.New("initial interval must be > 0")
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialInterval
	if cfg.MaxElapsedTime > 0 {
		eb.MaxElapsedTime = cfg.MaxElapsedTime
	}

	var bo backoff.BackOff = eb
	if cfg.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(cfg.MaxAttempts-1))
	}
	bo = backoff.WithContext(bo, ctx)

	return backoff.RetryNotify(backoff.Operation(fn), bo, func(err error, next time.Duration) {
		if cfg.OnRetry != nil {
			cfg.OnRetry(err, next)
		}
	})
}
