// Package backoff computes retry delays with exponential growth and
// multiplicative jitter. The jitter band keeps concurrent retriers from
// synchronizing and avoids the exact periodicity that anti-automation
// heuristics key on.
package backoff

import (
	"math/rand"
	"time"
)

const (
	// DefaultBaseDelay is the delay for the first retry attempt.
	DefaultBaseDelay = time.Second

	jitterMin = 0.8
	jitterMax = 1.2
)

// Policy produces exponentially growing, jittered delays. The zero value is
// not usable; create one with NewPolicy.
type Policy struct {
	base time.Duration
	rnd  func() float64 // uniform in [0, 1)
}

// NewPolicy creates a backoff policy. A base of 0 uses DefaultBaseDelay.
func NewPolicy(base time.Duration) *Policy {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return &Policy{
		base: base,
		rnd:  rand.Float64,
	}
}

// NewPolicyWithRand creates a policy using the supplied random source,
// making sampled delays deterministic in tests.
func NewPolicyWithRand(base time.Duration, rnd func() float64) *Policy {
	p := NewPolicy(base)
	if rnd != nil {
		p.rnd = rnd
	}
	return p
}

// Delay returns the sleep duration before the given retry attempt,
// base × 2^(attempt-1), scaled by a jitter factor uniform in [0.8, 1.2].
// Attempts below 1 are treated as 1.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	expected := float64(p.base) * float64(uint64(1)<<uint(attempt-1))
	jitter := jitterMin + (jitterMax-jitterMin)*p.rnd()
	return time.Duration(expected * jitter)
}

// Expected returns the jitter-free delay for the given attempt. Useful for
// verifying the growth curve.
func (p *Policy) Expected(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.base) * float64(uint64(1)<<uint(attempt-1)))
}
