// Package retry implements the transient-error backoff policy shared by the
// ASR, LLM, and TTS stages (spec §4.2/§4.3/§4.4, §7): up to N attempts,
// exponential backoff with a base, a cap, and ±20% jitter. A 4xx (client
// protocol error) is never retried.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/pipelineerr"
)

// Policy configures a backoff sequence.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	JitterFrac  float64 // e.g. 0.2 for ±20%
}

// DefaultPolicy matches spec's "base 200ms, cap 2s, ±20% jitter, up to 3
// retries" (4 total attempts).
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 4, Base: 200 * time.Millisecond, Cap: 2 * time.Second, JitterFrac: 0.2}
}

// TTSPolicy matches spec's "up to 2 retries" for synthesis (3 total
// attempts) before falling back to the secondary provider.
func TTSPolicy() Policy {
	return Policy{MaxAttempts: 3, Base: 200 * time.Millisecond, Cap: 2 * time.Second, JitterFrac: 0.2}
}

// backoff returns the delay before attempt n (0-indexed retry count).
func (p Policy) backoff(n int) time.Duration {
	d := p.Base << n
	if d > p.Cap || d <= 0 {
		d = p.Cap
	}
	jitter := 1 + (rand.Float64()*2-1)*p.JitterFrac
	return time.Duration(float64(d) * jitter)
}

// ClassifiableError lets a provider tag an error as a non-retryable client
// protocol error (4xx) versus a transient transport error (5xx, timeout,
// connection reset).
type ClassifiableError struct {
	Err        error
	StatusCode int
}

func (c *ClassifiableError) Error() string { return c.Err.Error() }
func (c *ClassifiableError) Unwrap() error { return c.Err }

// FromHTTPStatus wraps err with the status code so Do can classify it.
func FromHTTPStatus(statusCode int, err error) error {
	if statusCode >= 400 && statusCode < 500 {
		return &ClassifiableError{Err: errors.Join(pipelineerr.ErrClientError, err), StatusCode: statusCode}
	}
	return err
}

// IsClientError reports whether err (or a wrapped cause) is a non-retryable
// 4xx response.
func IsClientError(err error) bool {
	var ce *ClassifiableError
	if errors.As(err, &ce) {
		return ce.StatusCode >= 400 && ce.StatusCode < 500
	}
	return errors.Is(err, pipelineerr.ErrClientError)
}

// Do runs fn, retrying on transient failures per p. It stops immediately
// (without consuming a retry) on context cancellation or a client error.
// onRetry, if non-nil, is invoked once per retry for structured logging.
func Do(ctx context.Context, p Policy, onRetry func(attempt int, err error), fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if IsClientError(err) {
			return err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}
		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// ClassifyHTTPError converts a completed HTTP response's status code into a
// retry-classified error, or nil if the status is success.
func ClassifyHTTPError(resp *http.Response, body string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return FromHTTPStatus(resp.StatusCode, errors.New(body))
}
