// Package breaker implements a minimal per-provider circuit breaker: trip
// after a run of consecutive failures, stay tripped for a cooldown window,
// then let the next caller probe again.
package breaker

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultThreshold is the number of consecutive failures that trips the breaker.
	DefaultThreshold = 3
	// DefaultCooldown is how long the breaker stays tripped before allowing a retry.
	DefaultCooldown = 60 * time.Second
)

// Breaker tracks one provider's recent failure history. The zero value is
// not usable; construct with New.
//
// Races that occasionally under-count a failure or let a caller slip
// through just after tripping are acceptable — this is a best-effort
// policy, not a strict lock.
type Breaker struct {
	threshold int64
	cooldown  time.Duration

	failures int64 // atomic

	mu           sync.Mutex
	lastFailure  time.Time
	hasLastFail  bool
}

// New constructs a Breaker with the given threshold and cooldown. A
// threshold <= 0 uses DefaultThreshold; a cooldown <= 0 uses DefaultCooldown.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{threshold: int64(threshold), cooldown: cooldown}
}

// RecordSuccess resets the failure counter.
func (b *Breaker) RecordSuccess() {
	atomic.StoreInt64(&b.failures, 0)
}

// RecordFailure increments the failure counter and stamps the failure instant.
func (b *Breaker) RecordFailure() {
	atomic.AddInt64(&b.failures, 1)
	b.mu.Lock()
	b.lastFailure = time.Now()
	b.hasLastFail = true
	b.mu.Unlock()
}

// IsTripped reports whether the breaker is currently open. Below threshold
// it is never tripped. At or above threshold, it is tripped only while
// elapsed time since the last failure is under the cooldown; once the
// cooldown passes, the counter resets and the breaker reports not tripped,
// letting the next caller probe the provider again.
func (b *Breaker) IsTripped() bool {
	if atomic.LoadInt64(&b.failures) < b.threshold {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasLastFail {
		return false
	}
	if time.Since(b.lastFailure) < b.cooldown {
		return true
	}
	atomic.StoreInt64(&b.failures, 0)
	return false
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int64 {
	return atomic.LoadInt64(&b.failures)
}
