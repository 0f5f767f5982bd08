// Package runregistry tracks the cancel.Flag for every in-flight
// translation or dubbing run inside one process, so the control-plane
// server's cancel_translation/cancel_dubbing handlers (spec §6) can reach
// a run started by a different request.
package runregistry

import (
	"sync"

	"github.com/leica1994/dubverse/internal/cancel"
)

// Registry is a mutex-guarded map from run key (a job id or project dir)
// to its cancel.Flag.
type Registry struct {
	mu    sync.Mutex
	flags map[string]*cancel.Flag
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{flags: make(map[string]*cancel.Flag)}
}

// Start installs and returns a fresh Flag for key, replacing any previous
// one (a new run of the same key supersedes a finished prior run).
func (r *Registry) Start(key string) *cancel.Flag {
	r.mu.Lock()
	defer r.mu.Unlock()
	flag := cancel.New()
	r.flags[key] = flag
	return flag
}

// Cancel sets the Flag registered for key, if any is currently running.
// Reports whether a run was found.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	flag, ok := r.flags[key]
	if !ok {
		return false
	}
	flag.Set()
	return true
}

// Finish removes key's entry once its run has completed, so Cancel on a
// stale key correctly reports "not running".
func (r *Registry) Finish(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flags, key)
}
