// Package pace throttles browser interaction with deliberate, randomized
// pauses. Every pause returns early with the context error on cancellation.
package pace

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer pauses between interactions
type Pacer interface {
	// Pause sleeps for a random duration in [min, max].
	Pause(ctx context.Context, min, max time.Duration) error
}

// Random is the production pacer
type Random struct{}

func (Random) Pause(ctx context.Context, min, max time.Duration) error {
	return Sleep(ctx, Between(min, max))
}

// Nop never sleeps but still honors cancellation. Tests use it.
type Nop struct{}

func (Nop) Pause(ctx context.Context, _, _ time.Duration) error {
	return ctx.Err()
}

// Between returns a uniformly random duration in [min, max].
func Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
