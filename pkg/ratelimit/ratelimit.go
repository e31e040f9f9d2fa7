package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a blocking token-bucket rate limiter. Tokens accumulate at
// RefillRate per second up to Capacity; Acquire debits one token, sleeping
// until one is available. It is safe for concurrent use by multiple
// goroutines and is meant to be shared by every request a client makes, so
// pacing holds across concurrent searches.
type Bucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Config defines the token bucket parameters.
type Config struct {
	// Capacity is the maximum number of stored tokens. Defaults to 1.0.
	Capacity float64
	// RefillRate is tokens added per second. Defaults to 1/6
	// (one request roughly every six seconds, ~10 per minute).
	RefillRate float64
}

// NewBucket creates a token bucket that starts full.
func NewBucket(cfg Config) *Bucket {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1.0
	}
	if cfg.RefillRate <= 0 {
		cfg.RefillRate = 1.0 / 6.0
	}
	b := &Bucket{
		capacity:   cfg.Capacity,
		refillRate: cfg.RefillRate,
		tokens:     cfg.Capacity,
		now:        time.Now,
		sleep:      sleepContext,
	}
	b.lastRefill = b.now()
	return b
}

// Acquire blocks until a token is available, then debits it. It returns an
// error only if the context is cancelled while waiting; the wait itself
// cannot fail. The internal lock is never held while sleeping.
func (b *Bucket) Acquire(ctx context.Context) error {
	// Iterative rather than recursive: with refillRate > 0 the second pass
	// always finds a token, but misconfiguration must not grow the stack.
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.mu.Lock()
		b.refill()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
		b.mu.Unlock()

		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Tokens reports the current token count after refill. Intended for
// inspection in tests and diagnostics.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// refill credits elapsed time against the bucket, capped at capacity.
// Must be called with the lock held.
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	}
	b.lastRefill = now
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
