// Package retry wraps github.com/cenkalti/backoff/v4 with a policy for
// transient failures: exponential backoff with jitter, bounded attempts,
// context-aware cancellation. No other package in this module calls it;
// outbound LLM and graph calls are made once.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cortexmem/memcore/pkg/cortexerr"
)

// Policy configures a retry loop.
type Policy struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	Multiplier      float64
	MaxAttempts     int // 0 means unbounded (bounded only by MaxElapsedTime)
}

// DefaultPolicy retries transient failures for up to 30s, starting at 200ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxElapsedTime:  30 * time.Second,
		InitialInterval: 200 * time.Millisecond,
		Multiplier:      2.0,
		MaxAttempts:     5,
	}
}

// Do runs fn, retrying on errors classified as cortexerr.Transport or
// cortexerr.Degraded. Any other error kind aborts immediately without
// retrying, since retrying a Validation or NotFound error can't help.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.Multiplier = p.Multiplier
	eb.MaxElapsedTime = p.MaxElapsedTime

	var b backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1))
	}
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func isRetryable(err error) bool {
	var cerr *cortexerr.Error
	if errors.As(err, &cerr) {
		return cerr.Kind == cortexerr.Transport || cerr.Kind == cortexerr.Degraded
	}
	return false
}
