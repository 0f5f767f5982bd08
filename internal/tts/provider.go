// Package tts defines the TTS provider capability contract (spec §4.5)
// and the executor that drives per-item synthesis with resume.
package tts

import (
	"context"
	"fmt"
	"sync"

	"github.com/leica1994/dubverse/internal/dubverrs"
)

// VoiceInfo describes one voice a provider can enumerate.
type VoiceInfo struct {
	ID          string
	Name        string
	Description string
}

// SynthesizeRequest is one synthesis call's parameters.
type SynthesizeRequest struct {
	Text               string
	VoiceID            string
	ReferenceAudioPath string
	OutputPath         string
}

// SynthesizeResult reports where audio was written and how long it runs.
type SynthesizeResult struct {
	AudioPath  string
	DurationMs int64
}

// Provider is the minimal capability contract any TTS backend must satisfy
// (spec §4.5): NCN, Gradio, and HTTP-REST are all opaque implementations of
// this interface.
type Provider interface {
	ListVoices(ctx context.Context) ([]VoiceInfo, error)
	Synthesize(ctx context.Context, req SynthesizeRequest) (SynthesizeResult, error)
}

// ProviderSet is a lazy pool of TTS providers, created on first use and
// keyed by TtsPlugin id.
type ProviderSet struct {
	mu        sync.Mutex
	providers map[string]Provider
	factories map[string]func() (Provider, error)
}

// NewProviderSet creates an empty provider pool.
func NewProviderSet() *ProviderSet {
	return &ProviderSet{
		providers: make(map[string]Provider),
		factories: make(map[string]func() (Provider, error)),
	}
}

// Register installs the constructor used to lazily build the provider for
// pluginID the first time it's requested.
func (ps *ProviderSet) Register(pluginID string, factory func() (Provider, error)) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.factories[pluginID] = factory
}

// Get returns the provider for pluginID, constructing it on first call.
func (ps *ProviderSet) Get(pluginID string) (Provider, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if p, ok := ps.providers[pluginID]; ok {
		return p, nil
	}
	factory, ok := ps.factories[pluginID]
	if !ok {
		return nil, dubverrs.ConfigMissing("tts", fmt.Sprintf("no provider registered for plugin %q", pluginID))
	}
	p, err := factory()
	if err != nil {
		return nil, err
	}
	ps.providers[pluginID] = p
	return p, nil
}

// Remove evicts a cached provider, forcing reconstruction on next Get.
func (ps *ProviderSet) Remove(pluginID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.providers, pluginID)
}
