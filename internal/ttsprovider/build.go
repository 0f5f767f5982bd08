package ttsprovider

import (
	"encoding/json"
	"fmt"

	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/httpclient"
	"github.com/leica1994/dubverse/internal/tts"
)

// ncnConfig is the config_json shape for a TtsPluginNCN plugin.
type ncnConfig struct {
	VoiceID string `json:"voice_id"`
}

// gradioConfig is the config_json shape for a TtsPluginGradio plugin.
type gradioConfig struct {
	Endpoint string `json:"endpoint"`
}

// httpRestConfig mirrors HTTPRestConfig field-for-field for JSON decoding.
type httpRestConfig struct {
	URL               string            `json:"url"`
	Method            string            `json:"method"`
	Headers           map[string]string `json:"headers"`
	TextKey           string            `json:"text_key"`
	VoiceKey          string            `json:"voice_key"`
	VoiceID           string            `json:"voice_id"`
	ReferenceAudioKey string            `json:"reference_audio_key"`
	ResponseType      string            `json:"response_type"`
	ResponseKey       string            `json:"response_key"`
}

// Build constructs the tts.Provider described by plugin.PluginType and
// plugin.ConfigJSON (spec §4.5, §10.6 — the plugin CRUD surface persists
// config_json opaquely; this is the one place that interprets it).
func Build(plugin dbstore.TtsPlugin, clients *httpclient.Cache) (tts.Provider, error) {
	switch plugin.PluginType {
	case dbstore.TtsPluginNCN:
		var cfg ncnConfig
		if plugin.ConfigJSON != "" {
			if err := json.Unmarshal([]byte(plugin.ConfigJSON), &cfg); err != nil {
				return nil, fmt.Errorf("decode ncn plugin config: %w", err)
			}
		}
		return NewNcnProvider(plugin.ID, cfg.VoiceID, clients), nil

	case dbstore.TtsPluginGradio:
		var cfg gradioConfig
		if err := json.Unmarshal([]byte(plugin.ConfigJSON), &cfg); err != nil {
			return nil, fmt.Errorf("decode gradio plugin config: %w", err)
		}
		return NewGradioProvider(plugin.ID, cfg.Endpoint, clients), nil

	case dbstore.TtsPluginHTTPRest:
		var cfg httpRestConfig
		if err := json.Unmarshal([]byte(plugin.ConfigJSON), &cfg); err != nil {
			return nil, fmt.Errorf("decode http_rest plugin config: %w", err)
		}
		return NewHTTPRestProvider(plugin.ID, HTTPRestConfig{
			URL:               cfg.URL,
			Method:            cfg.Method,
			Headers:           cfg.Headers,
			TextKey:           cfg.TextKey,
			VoiceKey:          cfg.VoiceKey,
			VoiceID:           cfg.VoiceID,
			ReferenceAudioKey: cfg.ReferenceAudioKey,
			ResponseType:      cfg.ResponseType,
			ResponseKey:       cfg.ResponseKey,
		}, clients), nil

	default:
		return nil, fmt.Errorf("unknown tts plugin type %q", plugin.PluginType)
	}
}
