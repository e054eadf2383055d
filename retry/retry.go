// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxRetries is the retry count used by DefaultPolicy.
	DefaultMaxRetries = 7

	// DefaultBaseDelay is the first backoff delay used by DefaultPolicy.
	DefaultBaseDelay = time.Second
)

// Policy controls how an operation is retried.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retrying.
	MaxRetries int

	// BaseDelay is the wait after the first failure. It doubles on each
	// subsequent failure.
	BaseDelay time.Duration

	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration

	// Jitter scales every wait by a random factor in [0.5, 1.5).
	Jitter bool

	// OnRetry, if set, is called before each wait with the failed attempt
	// number (1-based) and its error.
	OnRetry func(attempt int, err error)

	// Logger receives per-attempt debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultPolicy returns a Policy with DefaultMaxRetries and DefaultBaseDelay.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	return p.MaxRetries + 1
}

// Delay returns the wait that follows failed attempt number attempt (1-based):
// BaseDelay * 2^(attempt-1), capped by MaxDelay. Jitter is not applied.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p Policy) wait(attempt int) time.Duration {
	delay := p.Delay(attempt)
	if p.Jitter && delay > 0 {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))
	}
	return delay
}

func (p Policy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Do runs operation until it succeeds or the policy gives up.
//
// With MaxRetries == 0 the operation runs once and its error is returned
// unchanged. Otherwise, after MaxRetries+1 failures an *ExhaustedError
// wrapping the last error is returned. Errors marked Permanent stop the loop
// and are returned unwrapped. Context cancellation is observed before every
// attempt and during every wait.
func Do(ctx context.Context, p Policy, operation func() error) error {
	_, err := DoValue(ctx, p, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, operation func() (T, error)) (T, error) {
	var zero T
	if p.MaxRetries < 0 {
		return zero, ErrInvalidMaxRetries
	}

	logger := p.logger()
	maxAttempts := p.Attempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		v, err := operation()
		if err == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return v, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if p.MaxRetries == 0 {
			return zero, err
		}

		logger.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", err)

		// No wait after the last attempt
		if attempt == maxAttempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(p.wait(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	logger.Debug("operation failed, giving up", "attempts", maxAttempts, "error", lastErr)
	return zero, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// Wrap returns fn decorated with retries under policy p.
func Wrap[In, Out any](p Policy, fn func(context.Context, In) (Out, error)) func(context.Context, In) (Out, error) {
	return func(ctx context.Context, in In) (Out, error) {
		return DoValue(ctx, p, func() (Out, error) {
			return fn(ctx, in)
		})
	}
}
