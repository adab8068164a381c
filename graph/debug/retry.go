package debug

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy")

// RetryPolicy configures automatic retries of a single dispatch call.
//
// Retries happen inside one debug step: the engine still sees one call and
// one outcome. A step that fails after the last attempt keeps its entry
// nodes armed, so an explicit Next starts a fresh round of attempts.
type RetryPolicy struct {
	// MaxAttempts counts the initial attempt. 1 disables retries.
	MaxAttempts int

	// BaseDelay is the backoff base: min(BaseDelay * 2^attempt, MaxDelay)
	// plus a jitter in [0, BaseDelay).
	BaseDelay time.Duration

	// MaxDelay caps the exponential part. Zero caps it only at the
	// largest representable duration.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Nil uses RetryableDispatchError.
	Retryable func(error) bool
}

// Validate checks MaxAttempts >= 1 and, when both delays are set,
// MaxDelay >= BaseDelay.
func (rp RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.BaseDelay < 0 || rp.MaxDelay < 0 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

func (rp RetryPolicy) retryable(err error) bool {
	if rp.Retryable != nil {
		return rp.Retryable(err)
	}
	return RetryableDispatchError(err)
}

// RetryableDispatchError reports whether err looks transient: a transport
// failure, or a 429, 502, 503 or 504 from the dispatch service. Context
// cancellation is never retried.
func RetryableDispatchError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var de *DispatchError
	if errors.As(err, &de) {
		switch de.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var te *transportError
	return errors.As(err, &te)
}

// transportError marks a failure to reach the dispatch service at all.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "failed to execute request: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// computeBackoff returns the delay before retry number attempt (0-based).
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		return 0
	}
	// Largest exponential part that still leaves room for the jitter.
	limit := time.Duration(math.MaxInt64 - int64(base))
	if maxDelay > 0 && maxDelay < limit {
		limit = maxDelay
	}
	delay := limit
	if attempt < 62 && base <= limit>>uint(attempt) {
		delay = base << uint(attempt)
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter for retry timing, not security
	}
	return delay + jitter
}

// withRetry runs call until it succeeds, fails permanently, runs out of
// attempts or ctx is done.
func withRetry[T any](ctx context.Context, rp *RetryPolicy, rng *rand.Rand, call func() (T, error)) (T, error) {
	if rp == nil {
		return call()
	}
	var (
		out T
		err error
	)
	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(computeBackoff(attempt-1, rp.BaseDelay, rp.MaxDelay, rng))
			select {
			case <-ctx.Done():
				timer.Stop()
				return out, errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}
		out, err = call()
		if err == nil || !rp.retryable(err) {
			return out, err
		}
	}
	return out, err
}
