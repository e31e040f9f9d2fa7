package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock drives the bucket deterministically. Sleeping advances the clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func newFakeBucket(capacity, rate float64) (*Bucket, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := NewBucket(Config{Capacity: capacity, RefillRate: rate})
	b.now = clock.Now
	b.sleep = clock.Sleep
	b.lastRefill = clock.Now()
	return b, clock
}

func TestBucket_FirstAcquireImmediate(t *testing.T) {
	b := NewBucket(Config{})

	start := time.Now()
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("a full bucket should not block")
	}
}

func TestBucket_TokensStayInRange(t *testing.T) {
	b, _ := newFakeBucket(1.0, 10)

	for i := 0; i < 20; i++ {
		if err := b.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: unexpected error: %v", i, err)
		}
		tokens := b.Tokens()
		if tokens < 0 || tokens > 1.0 {
			t.Fatalf("acquire %d: tokens %f outside [0, capacity]", i, tokens)
		}
	}
}

func TestBucket_RefillCappedAtCapacity(t *testing.T) {
	b, clock := newFakeBucket(2.0, 1)

	// Drain fully, then idle for far longer than needed to refill.
	_ = b.Acquire(context.Background())
	_ = b.Acquire(context.Background())

	clock.mu.Lock()
	clock.now = clock.now.Add(time.Hour)
	clock.mu.Unlock()

	if got := b.Tokens(); got != 2.0 {
		t.Errorf("expected tokens capped at capacity 2.0, got %f", got)
	}
}

func TestBucket_WaitMatchesRefillRate(t *testing.T) {
	// 20 tokens/sec so the test stays fast: the second acquire of a drained
	// bucket should wait about 50ms.
	b := NewBucket(Config{Capacity: 1.0, RefillRate: 20})

	ctx := context.Background()
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 30*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Errorf("expected wait around 50ms, took %v", elapsed)
	}
}

func TestBucket_ContextCancellation(t *testing.T) {
	b := NewBucket(Config{Capacity: 1.0, RefillRate: 0.001})

	ctx := context.Background()
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	err := b.Acquire(cancelled)
	if err == nil {
		t.Fatalf("expected context error while waiting on a drained bucket")
	}
}

func TestBucket_ConcurrentAcquires(t *testing.T) {
	b, _ := newFakeBucket(1.0, 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Acquire(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if tokens := b.Tokens(); tokens < 0 || tokens > 1.0 {
		t.Errorf("tokens %f outside [0, capacity] after concurrent acquires", tokens)
	}
}

func TestBucket_Defaults(t *testing.T) {
	b := NewBucket(Config{})
	if b.capacity != 1.0 {
		t.Errorf("expected default capacity 1.0, got %f", b.capacity)
	}
	if b.refillRate != 1.0/6.0 {
		t.Errorf("expected default refill rate 1/6, got %f", b.refillRate)
	}
}
