package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/leica1994/dubverse/internal/cancel"
)

func TestAcquireNeverExceedsConcurrentLimit(t *testing.T) {
	m := NewManager()
	const limit = 3
	var inFlight int32
	var maxSeen int32
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		go func() {
			permit, err := m.Acquire("test", "cfg", limit, 0, nil)
			if err != nil {
				t.Error(err)
				done <- struct{}{}
				return
			}
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			permit.Release()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	if maxSeen > limit {
		t.Fatalf("observed %d concurrent permits, limit was %d", maxSeen, limit)
	}
}

func TestTokenBucketUnlimitedWhenRateZero(t *testing.T) {
	b := newTokenBucket(0)
	for i := 0; i < 1000; i++ {
		ok, _ := b.tryAcquire()
		if !ok {
			t.Fatalf("rate_per_minute=0 must grant every request immediately")
		}
	}
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
	b := newTokenBucket(60) // 1 token/sec
	// Drain the initial capacity.
	for i := 0; i < 60; i++ {
		ok, _ := b.tryAcquire()
		if !ok {
			t.Fatalf("expected capacity of 60 tokens up front")
		}
	}
	ok, waitMs := b.tryAcquire()
	if ok {
		t.Fatalf("expected bucket to be empty after draining capacity")
	}
	if waitMs <= 0 {
		t.Fatalf("expected a positive wait estimate, got %d", waitMs)
	}
	// After the estimated wait, refill at 1 token/sec restores a whole token.
	time.Sleep(time.Duration(waitMs) * time.Millisecond)
	if ok, _ := b.tryAcquire(); !ok {
		t.Fatalf("expected a refilled token after waiting %dms", waitMs)
	}
}

func TestUpdateControllerKeepsOldPermitsValid(t *testing.T) {
	m := NewManager()
	permit, err := m.Acquire("test", "cfg", 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	// A second acquire against the same (now-exhausted) limit should time
	// out quickly if we shrink the deadline logic were not in place; here
	// we just confirm the update installs a fresh semaphore that the new
	// acquire can use immediately without waiting on the old permit.
	m.UpdateController("cfg", 2, 0)

	done := make(chan error, 1)
	go func() {
		p2, err := m.Acquire("test", "cfg", 2, 0, nil)
		if err == nil {
			p2.Release()
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("acquire against updated controller failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("acquire against updated controller should not block on the old permit")
	}

	permit.Release()
}

func TestAcquireRespectsCancelFlag(t *testing.T) {
	m := NewManager()
	flag := cancel.New()
	flag.Set()

	_, err := m.Acquire("test", "cfg", 1, 1, flag)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
