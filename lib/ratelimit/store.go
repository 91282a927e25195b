// Package ratelimit provides a keyed sliding-window hit ledger with
// cooldowns. The price-lookup circuit breaker and the per-client rate
// limiter both sit on top of it, so the two backends (in-process and
// sqlite) must expose the exact same contract: callers never know which
// one is active.
package ratelimit

import (
	"context"
	"time"
)

type Store interface {
	// Record adds one hit under key at time now.
	Record(ctx context.Context, key string, now time.Time) error
	// CountSince returns the number of hits under key at or after cutoff.
	CountSince(ctx context.Context, key string, cutoff time.Time) (int, error)
	// SetCooldown blocks key until the given time. A shorter cooldown
	// never overwrites a longer one already in place.
	SetCooldown(ctx context.Context, key string, until time.Time) error
	// CooldownRemaining reports how much longer key stays blocked as of
	// now. Zero means not blocked.
	CooldownRemaining(ctx context.Context, key string, now time.Time) (time.Duration, error)
}
