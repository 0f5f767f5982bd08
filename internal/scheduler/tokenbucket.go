package scheduler

import (
	"math"
	"sync"
	"time"
)

// tokenBucket is a per-config requests/minute limiter. rate_per_minute == 0
// means unlimited (bucket bypass) per spec §4.1.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second; 0 means unlimited
	last       time.Time
}

func newTokenBucket(ratePerMinute float64) *tokenBucket {
	b := &tokenBucket{last: time.Now()}
	b.configure(ratePerMinute)
	return b
}

// configure resets capacity/refill rate for a new rate_per_minute value,
// first flushing any refill owed under the previous rate.
func (b *tokenBucket) configure(ratePerMinute float64) {
	b.refill()
	if ratePerMinute <= 0 {
		b.capacity = math.MaxFloat64
		b.tokens = math.MaxFloat64
		b.refillRate = 0
		return
	}
	b.capacity = ratePerMinute
	b.refillRate = ratePerMinute / 60.0
	b.tokens = b.capacity
}

func (b *tokenBucket) refill() {
	now := time.Now()
	if b.refillRate > 0 {
		elapsed := now.Sub(b.last).Seconds()
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	}
	b.last = now
}

// tryAcquire returns (true, 0) when a token was consumed, or (false, waitMs)
// with the number of milliseconds the caller should wait before retrying.
func (b *tokenBucket) tryAcquire() (bool, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.refillRate == 0 {
		return true, 0
	}
	if b.tokens >= 1 {
		b.tokens -= 1
		return true, 0
	}
	waitSecs := (1 - b.tokens) / b.refillRate
	return false, int64(math.Ceil(waitSecs * 1000))
}

func (b *tokenBucket) reconfigure(ratePerMinute float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configure(ratePerMinute)
}
