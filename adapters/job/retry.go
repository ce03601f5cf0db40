package reportjob

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	errorslib "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-report/report"
)

const (
	defaultRetryInterval    = 250 * time.Millisecond
	defaultRetryMaxInterval = 5 * time.Second
)

// RetryPolicy controls how many times a failed publish is attempted again and
// how long to wait in between. A zero policy never retries.
type RetryPolicy struct {
	MaxRetries int
	Backoff    job.BackoffConfig
	// Retryable overrides the default classification.
	Retryable func(error) bool
}

// Delay returns the wait before the given retry attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return jittered(backoffFor(attempt, p.Backoff), p.Backoff.Jitter)
}

func (p RetryPolicy) retryable(err error) bool {
	switch {
	case err == nil, p.MaxRetries <= 0, errors.Is(err, context.Canceled):
		return false
	case p.Retryable != nil:
		return p.Retryable(err)
	default:
		return defaultRetryable(err)
	}
}

// defaultRetryable retries engine timeouts and internal failures. Bad input
// never succeeds on a second try.
func defaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var goErr *errorslib.Error
	if errors.As(err, &goErr) && goErr.Category == errorslib.CategoryValidation {
		return false
	}
	if errorslib.IsRetryableError(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	kind := report.KindFromError(err)
	return kind == report.KindTimeout || kind == report.KindInternal
}

// backoffFor is the un-jittered delay before retry attempt n.
func backoffFor(n int, cfg job.BackoffConfig) time.Duration {
	if n <= 0 {
		return 0
	}
	base := cfg.Interval
	if base <= 0 {
		base = defaultRetryInterval
	}
	ceiling := cfg.MaxInterval
	if ceiling <= 0 {
		ceiling = defaultRetryMaxInterval
	}

	switch cfg.Strategy {
	case job.BackoffFixed:
		return base
	case job.BackoffExponential:
		// past 30 doublings any sane interval is over the ceiling
		if n > 31 {
			return ceiling
		}
		delay := base << (n - 1)
		if delay <= 0 || delay > ceiling {
			return ceiling
		}
		return delay
	}
	return 0
}

// jittered spreads d uniformly over [d/2, 3d/2).
func jittered(d time.Duration, enabled bool) time.Duration {
	if !enabled || d <= 0 {
		return d
	}
	return d/2 + rand.N(d)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
