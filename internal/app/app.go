// Package app wires together the Job/Stage State Store, the Scheduler, the
// HTTP client cache, the Translation Engine, and the Dubbing Orchestrator
// into one bound set of collaborators — the same construction both the CLI
// commands (§10.2) and the control-plane HTTP server (§6) share.
package app

import (
	"path/filepath"

	"github.com/leica1994/dubverse/internal/control"
	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/dubbing"
	"github.com/leica1994/dubverse/internal/events"
	"github.com/leica1994/dubverse/internal/httpclient"
	"github.com/leica1994/dubverse/internal/media"
	"github.com/leica1994/dubverse/internal/scheduler"
	"github.com/leica1994/dubverse/internal/translate"
)

// App bundles every long-lived collaborator a command needs. One App is
// built per CLI invocation (or once, for the lifetime of `serve`).
type App struct {
	DataDir      string
	Store        *dbstore.Store
	Scheduler    *scheduler.Manager
	Clients      *httpclient.Cache
	Emitter      events.Emitter
	Control      *control.Service
	Engine       *translate.Engine
	Orchestrator *dubbing.Orchestrator
}

// New opens the store at {dataDir}/dubverse.db and constructs every other
// collaborator around it. emitter may be events.NopEmitter{} for one-shot
// CLI commands that don't stream progress.
func New(dataDir string, emitter events.Emitter) (*App, error) {
	store, err := dbstore.Open(filepath.Join(dataDir, "dubverse.db"))
	if err != nil {
		return nil, err
	}

	sched := scheduler.NewManager()
	clients := httpclient.NewCache()

	return &App{
		DataDir:      dataDir,
		Store:        store,
		Scheduler:    sched,
		Clients:      clients,
		Emitter:      emitter,
		Control:      control.NewService(clients),
		Engine:       translate.NewEngine(store, sched, clients, emitter),
		Orchestrator: dubbing.NewOrchestrator(store, sched, emitter, media.NewProber()),
	}, nil
}

// Close releases the store's database handle.
func (a *App) Close() error {
	return a.Store.Close()
}
