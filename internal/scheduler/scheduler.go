// Package scheduler implements the per-provider rate/concurrency scheduler
// (spec §4.1): a token bucket gates requests per minute, a weighted
// semaphore gates concurrent in-flight calls, and both can be reconfigured
// live without disturbing permits already issued.
package scheduler

import (
	"sync"
	"time"

	"github.com/leica1994/dubverse/internal/cancel"
	"github.com/leica1994/dubverse/internal/dubverrs"
	"golang.org/x/sync/semaphore"
)

const (
	tokenPollInterval = 100 * time.Millisecond
	semPollInterval   = 10 * time.Millisecond
	acquireDeadline   = 300 * time.Second
)

// Controller is the scheduler's per-config (token bucket, semaphore) pair.
// Updating it swaps the semaphore and bucket wholesale; permits already
// issued hold a reference to the prior semaphore and remain valid.
type Controller struct {
	mu     sync.RWMutex
	sem    *semaphore.Weighted
	bucket *tokenBucket
}

func newController(concurrentLimit int64, ratePerMinute float64) *Controller {
	if concurrentLimit <= 0 {
		concurrentLimit = 1
	}
	return &Controller{
		sem:    semaphore.NewWeighted(concurrentLimit),
		bucket: newTokenBucket(ratePerMinute),
	}
}

func (c *Controller) update(concurrentLimit int64, ratePerMinute float64) {
	if concurrentLimit <= 0 {
		concurrentLimit = 1
	}
	c.mu.Lock()
	c.sem = semaphore.NewWeighted(concurrentLimit)
	c.mu.Unlock()
	c.bucket.reconfigure(ratePerMinute)
}

func (c *Controller) currentSemaphore() *semaphore.Weighted {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sem
}

// Permit proves a concurrency slot is held. Release must be called exactly
// once, typically via defer at the call site.
type Permit struct {
	sem *semaphore.Weighted
}

// Release returns the slot to the semaphore the permit was issued from,
// even if that semaphore has since been replaced by an update.
func (p *Permit) Release() {
	if p == nil || p.sem == nil {
		return
	}
	p.sem.Release(1)
}

// Manager owns every Controller, keyed by AiConfig.id (or TtsPlugin.id).
type Manager struct {
	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager returns an empty scheduler manager.
func NewManager() *Manager {
	return &Manager{controllers: make(map[string]*Controller)}
}

// EnsureController performs an idempotent lookup-or-create for configID.
func (m *Manager) EnsureController(configID string, concurrentLimit int64, ratePerMinute float64) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.controllers[configID]; ok {
		return c
	}
	c := newController(concurrentLimit, ratePerMinute)
	m.controllers[configID] = c
	return c
}

// UpdateController atomically replaces the semaphore and bucket for
// configID. Holders of previously issued permits continue to hold the
// prior semaphore until they release it.
func (m *Manager) UpdateController(configID string, concurrentLimit int64, ratePerMinute float64) {
	c := m.EnsureController(configID, concurrentLimit, ratePerMinute)
	c.update(concurrentLimit, ratePerMinute)
}

// Remove drops the controller entry; a future Acquire recreates it fresh.
func (m *Manager) Remove(configID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.controllers, configID)
}

// Acquire ensures a controller for configID exists, then blocks until a
// token and a semaphore slot are both available, or cancelFlag is set, or
// the 300s deadline elapses.
func (m *Manager) Acquire(stage, configID string, concurrentLimit int64, ratePerMinute float64, cancelFlag *cancel.Flag) (*Permit, error) {
	c := m.EnsureController(configID, concurrentLimit, ratePerMinute)
	return c.Acquire(stage, cancelFlag)
}

// Acquire implements the two-phase wait contract of spec §4.1: first the
// token bucket, polled in ≤100ms slices, then the semaphore, polled every
// 10ms against a 300s deadline. Cancellation is rechecked every iteration
// of both phases.
func (c *Controller) Acquire(stage string, cancelFlag *cancel.Flag) (*Permit, error) {
	// Phase 1: wait for a rate-limit token.
	for {
		if cancelFlag != nil && cancelFlag.IsSet() {
			return nil, dubverrs.Cancelled(stage)
		}
		ok, waitMs := c.bucket.tryAcquire()
		if ok {
			break
		}
		sleep := time.Duration(waitMs) * time.Millisecond
		if sleep > tokenPollInterval {
			sleep = tokenPollInterval
		}
		time.Sleep(sleep)
	}

	// Phase 2: wait for a concurrency slot on the *current* semaphore.
	sem := c.currentSemaphore()
	deadline := time.Now().Add(acquireDeadline)
	for {
		if cancelFlag != nil && cancelFlag.IsSet() {
			return nil, dubverrs.Cancelled(stage)
		}
		if sem.TryAcquire(1) {
			return &Permit{sem: sem}, nil
		}
		if time.Now().After(deadline) {
			return nil, dubverrs.ConcurrencyTimeout(stage)
		}
		time.Sleep(semPollInterval)
	}
}
