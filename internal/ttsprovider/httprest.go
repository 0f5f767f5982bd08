package ttsprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/leica1994/dubverse/internal/dubverrs"
	"github.com/leica1994/dubverse/internal/httpclient"
	"github.com/leica1994/dubverse/internal/tts"
)

// HTTPRestConfig is the fully configurable wire shape a self-hosted or
// third-party TTS HTTP endpoint can be described with (spec §4.5).
type HTTPRestConfig struct {
	URL               string
	Method            string
	Headers           map[string]string
	TextKey           string
	VoiceKey          string
	VoiceID           string
	ReferenceAudioKey string
	ResponseType      string // "binary" | "json_base64" | "file_url"
	ResponseKey       string
}

// HTTPRestProvider synthesizes speech against an arbitrary HTTP endpoint
// described entirely by HTTPRestConfig, with no assumptions about the
// backend beyond the configured request/response shape.
type HTTPRestProvider struct {
	cfg      HTTPRestConfig
	configID string
	clients  *httpclient.Cache
}

// NewHTTPRestProvider builds an HTTPRestProvider from cfg, defaulting
// Method to POST, TextKey to "text", and ResponseType to "json_base64"
// when left unset.
func NewHTTPRestProvider(configID string, cfg HTTPRestConfig, clients *httpclient.Cache) *HTTPRestProvider {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.TextKey == "" {
		cfg.TextKey = "text"
	}
	if cfg.ResponseType == "" {
		cfg.ResponseType = "json_base64"
	}
	return &HTTPRestProvider{cfg: cfg, configID: configID, clients: clients}
}

// ListVoices is unsupported for generic HTTP-REST endpoints.
func (p *HTTPRestProvider) ListVoices(ctx context.Context) ([]tts.VoiceInfo, error) {
	return nil, nil
}

// Synthesize builds the configured JSON body, sends it per cfg.Method, and
// decodes the audio out of the response per cfg.ResponseType.
func (p *HTTPRestProvider) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.SynthesizeResult, error) {
	body := map[string]any{p.cfg.TextKey: req.Text}

	if p.cfg.VoiceKey != "" {
		voice := p.cfg.VoiceID
		if voice == "" {
			voice = req.VoiceID
		}
		if voice != "" {
			body[p.cfg.VoiceKey] = voice
		}
	}

	if p.cfg.ReferenceAudioKey != "" && req.ReferenceAudioPath != "" {
		refBytes, err := os.ReadFile(req.ReferenceAudioPath)
		if err != nil {
			return tts.SynthesizeResult{}, err
		}
		body[p.cfg.ReferenceAudioKey] = base64.StdEncoding.EncodeToString(refBytes)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return tts.SynthesizeResult{}, err
	}

	method := strings.ToUpper(p.cfg.Method)
	httpReq, err := http.NewRequestWithContext(ctx, method, p.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return tts.SynthesizeResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range p.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	client := p.clients.Get(p.configID, 120*time.Second)
	resp, err := client.Do(httpReq)
	if err != nil {
		return tts.SynthesizeResult{}, dubverrs.ProviderTransport("tts", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.SynthesizeResult{}, dubverrs.ProviderHTTP("tts", resp.StatusCode, string(b))
	}

	audio, err := p.extractAudio(ctx, client, resp)
	if err != nil {
		return tts.SynthesizeResult{}, err
	}
	if err := os.WriteFile(req.OutputPath, audio, 0o644); err != nil {
		return tts.SynthesizeResult{}, err
	}
	return tts.SynthesizeResult{AudioPath: req.OutputPath}, nil
}

func (p *HTTPRestProvider) extractAudio(ctx context.Context, client *http.Client, resp *http.Response) ([]byte, error) {
	switch p.cfg.ResponseType {
	case "binary":
		return io.ReadAll(resp.Body)

	case "json_base64":
		key := p.cfg.ResponseKey
		if key == "" {
			key = "audio"
		}
		var parsed map[string]any
		if err := decodeJSON(resp.Body, &parsed); err != nil {
			return nil, dubverrs.ProviderTransport("tts", err)
		}
		b64, ok := parsed[key].(string)
		if !ok {
			return nil, dubverrs.Validation("tts", "response missing '"+key+"' field")
		}
		audio, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, dubverrs.Validation("tts", "base64 decode failed: "+err.Error())
		}
		return audio, nil

	case "file_url":
		key := p.cfg.ResponseKey
		if key == "" {
			key = "url"
		}
		var parsed map[string]any
		if err := decodeJSON(resp.Body, &parsed); err != nil {
			return nil, dubverrs.ProviderTransport("tts", err)
		}
		audioURL, ok := parsed[key].(string)
		if !ok {
			return nil, dubverrs.Validation("tts", "response missing '"+key+"' field")
		}
		fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
		if err != nil {
			return nil, err
		}
		fileResp, err := client.Do(fileReq)
		if err != nil {
			return nil, dubverrs.ProviderTransport("tts", err)
		}
		defer fileResp.Body.Close()
		return io.ReadAll(fileResp.Body)

	default:
		return nil, dubverrs.Validation("tts", "unsupported response_type: "+p.cfg.ResponseType)
	}
}
