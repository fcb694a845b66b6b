// SPDX-License-Identifier: MPL-2.0

// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/invowk/extpack/internal/clock"
)

// ErrExhausted is returned when every attempt asked to be retried.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// BaseBackoff is the wait before the second attempt; it doubles after each
	// further attempt.
	BaseBackoff time.Duration
	// MaxBackoff caps a single wait. Zero means uncapped, saturating at the
	// largest time.Duration.
	MaxBackoff time.Duration
}

// Backoff returns the wait before the given 0-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		if d > math.MaxInt64/2 {
			return time.Duration(math.MaxInt64)
		}
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// Do calls op until it succeeds, reports a permanent failure, or the attempts
// run out.
//
// op returns (retry bool, err error). If retry is false, err is returned as
// is (nil on success). On exhaustion the last error is returned wrapped in
// ErrExhausted. Waiting between attempts is abandoned as soon as ctx is done.
func Do(ctx context.Context, clk clock.Clock, p Policy, op func(attempt int) (retry bool, err error)) error {
	if clk == nil {
		clk = clock.Real{}
	}
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-clk.After(p.Backoff(attempt)):
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
