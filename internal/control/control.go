// Package control implements the supplemented LLM-config and TTS-plugin
// probing surface (spec §10.6): TestAiConnection, TestTtsPlugin, and
// ListTtsVoices sit above the plain dbstore CRUD, each exercising the real
// network client for one config/plugin record rather than just persisting
// it.
package control

import (
	"context"
	"fmt"

	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/httpclient"
	"github.com/leica1994/dubverse/internal/translate"
	"github.com/leica1994/dubverse/internal/tts"
	"github.com/leica1994/dubverse/internal/ttsprovider"
)

// Service bundles the shared HTTP client cache and TTS provider pool used
// to probe AiConfig and TtsPlugin records on demand.
type Service struct {
	clients   *httpclient.Cache
	providers *tts.ProviderSet
}

// NewService builds a Service. clients may be shared with the translation
// engine and dubbing orchestrator's TTS executor.
func NewService(clients *httpclient.Cache) *Service {
	return &Service{clients: clients, providers: tts.NewProviderSet()}
}

// TestAiConnection fires a minimal chat-completion against cfg's endpoint
// (spec §6's `test_ai_connection`) and reports whether the round trip
// succeeds.
func (s *Service) TestAiConnection(ctx context.Context, cfg dbstore.AiConfig) error {
	client := translate.NewClient(cfg, s.clients)
	_, err := client.Complete(ctx, "You are a connectivity check.", `{"0":"ping"}`, 0)
	return err
}

// buildProvider resolves plugin's tts.Provider through the shared pool,
// registering a factory on first use.
func (s *Service) buildProvider(plugin dbstore.TtsPlugin) (tts.Provider, error) {
	s.providers.Register(plugin.ID, func() (tts.Provider, error) {
		return ttsprovider.Build(plugin, s.clients)
	})
	return s.providers.Get(plugin.ID)
}

// TestTtsPlugin probes plugin by asking it to list voices (spec §6's
// `test_tts_plugin`) — the cheapest call every backend implements, even
// Gradio's always-empty one.
func (s *Service) TestTtsPlugin(ctx context.Context, plugin dbstore.TtsPlugin) error {
	provider, err := s.buildProvider(plugin)
	if err != nil {
		return fmt.Errorf("build tts provider: %w", err)
	}
	_, err = provider.ListVoices(ctx)
	return err
}

// ListTtsVoices returns plugin's voice catalog (spec §6's
// `list_tts_voices`); empty for voice-cloning backends like Gradio.
func (s *Service) ListTtsVoices(ctx context.Context, plugin dbstore.TtsPlugin) ([]tts.VoiceInfo, error) {
	provider, err := s.buildProvider(plugin)
	if err != nil {
		return nil, fmt.Errorf("build tts provider: %w", err)
	}
	return provider.ListVoices(ctx)
}

// InvalidatePlugin evicts plugin's cached provider and HTTP client so the
// next probe picks up an updated config_json or timeout.
func (s *Service) InvalidatePlugin(pluginID string) {
	s.providers.Remove(pluginID)
	s.clients.Remove(pluginID)
}
