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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/core"
)

// RetryPolicy bounds how often a failing dependency call is repeated.
// Only errors classified as retryable by core.IsRetryable are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first.
	// 1 disables retrying.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt. It doubles on every
	// further attempt.
	BaseDelay time.Duration

	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultRetryPolicy makes a single attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// Validate checks the policy.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 || p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("%w: attempts=%d base=%s max=%s", ErrInvalidRetryPolicy, p.MaxAttempts, p.BaseDelay, p.MaxDelay)
	}
	return nil
}

// delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs operation until it succeeds, fails with a non-retryable error,
// the attempts run out or ctx is done. It returns the last error.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, operation func() error) error {
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !core.IsRetryable(lastErr) || attempt == attempts {
			break
		}

		wait := p.delay(attempt)
		logger.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", attempts, "wait", wait, "err", lastErr)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
