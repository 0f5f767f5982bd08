// Package cancel implements the cooperative cancellation fabric shared by
// the translation engine, the dubbing orchestrator, and the scheduler.
package cancel

import "sync/atomic"

// Flag is a cheap cancellation signal, shared by pointer (it holds an
// atomic.Bool and must not be copied after first use). Unlike a bare
// context.Context, a Flag can be set from outside the goroutine that is
// observing it without needing a parent-held CancelFunc, mirroring the
// original implementation's shared abort flag per long-running task.
type Flag struct {
	v atomic.Bool
}

// New returns a fresh, unset Flag.
func New() *Flag { return &Flag{} }

// Set marks the flag as cancelled. Idempotent.
func (f *Flag) Set() { f.v.Store(true) }

// Reset clears the flag, e.g. before starting a new run of the same task.
func (f *Flag) Reset() { f.v.Store(false) }

// IsSet reports whether cancellation has been requested.
func (f *Flag) IsSet() bool { return f.v.Load() }
