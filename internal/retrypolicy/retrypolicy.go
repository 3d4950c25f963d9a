// Package retrypolicy retries calls to rate-limited backends with a fixed delay.
package retrypolicy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
)

var (
	// ErrTransient marks failures that are worth another attempt.
	ErrTransient = errors.New("transient network failure")
	// ErrPermanent marks failures that will not go away by retrying.
	ErrPermanent = errors.New("permanent network failure")
)

// transientStatusCodes are the rate-limited and server-unavailable statuses.
var transientStatusCodes = map[int]struct{}{
	http.StatusConflict:           {},
	http.StatusTooManyRequests:    {},
	http.StatusServiceUnavailable: {},
	http.StatusGatewayTimeout:     {},
}

// StatusError is returned for a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func NewStatusError(statusCode int, status string, body string) *StatusError {
	return &StatusError{
		StatusCode: statusCode,
		Status:     status,
		Body:       body,
	}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("response error %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the status is rate-limited or server-unavailable.
func (e *StatusError) Transient() bool {
	_, ok := transientStatusCodes[e.StatusCode]
	return ok
}

func (e *StatusError) Unwrap() error {
	if e.Transient() {
		return ErrTransient
	}
	return ErrPermanent
}

// IsTransient reports whether err should trigger another attempt.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Policy is a bounded number of retries separated by a fixed delay.
type Policy struct {
	MaxRetries uint
	Delay      time.Duration
}

// Execute calls attempt until it succeeds, fails with a non-transient error, or the
// retry budget is spent. The last failure is returned as is.
func Execute[T any](ctx context.Context, policy Policy, attempt func(ctx context.Context) (T, error)) (T, error) {
	var result T
	if err := retry.Do(
		func() error {
			value, err := attempt(ctx)
			if err != nil {
				return err
			}
			result = value
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(policy.MaxRetries+1),
		retry.Delay(policy.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if n >= policy.MaxRetries {
				return
			}
			slog.Default().Warn("Rate limit or server error, retrying",
				"attempt", n+1,
				"delay", policy.Delay,
				"error", err)
		}),
	); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
