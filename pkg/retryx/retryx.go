// Package retryx wraps side-effecting operations with bounded
// exponential-backoff retry. Every persistence call goes through it.
package retryx

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

// Policy bounds a retried operation: at most MaxAttempts tries, delays
// growing exponentially from BaseDelay and capped at MaxDelay.
type Policy struct {
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" split_words:"true" default:"3"`
	BaseDelay   time.Duration `envconfig:"BASE_DELAY" split_words:"true" default:"1s"`
	MaxDelay    time.Duration `envconfig:"MAX_DELAY" split_words:"true" default:"5s"`
}

var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	MaxDelay:    5 * time.Second,
}

func (p Policy) backoff() retry.Backoff {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// Do runs op until it succeeds or the policy's attempt ceiling is reached.
// Every error is treated as transient; the last error is returned.
func Do(ctx context.Context, p Policy, name string, op func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err != nil {
			log.Warn().Err(err).Str("op", name).Int("attempt", attempt).Msg("operation failed")
			return retry.RetryableError(err)
		}
		return nil
	})
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, name, func(ctx context.Context) error {
		var opErr error
		out, opErr = op(ctx)
		return opErr
	})
	return out, err
}
