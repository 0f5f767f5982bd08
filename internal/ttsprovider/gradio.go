package ttsprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leica1994/dubverse/internal/dubverrs"
	"github.com/leica1994/dubverse/internal/httpclient"
	"github.com/leica1994/dubverse/internal/tts"
)

// GradioProvider calls a Gradio-hosted voice-cloning TTS space's generic
// `/run/predict` endpoint. It always requires a reference audio file, since
// Gradio voice cloning has no discrete voice list.
type GradioProvider struct {
	Endpoint string
	configID string
	clients  *httpclient.Cache
}

// NewGradioProvider builds a GradioProvider against endpoint.
func NewGradioProvider(configID, endpoint string, clients *httpclient.Cache) *GradioProvider {
	return &GradioProvider{Endpoint: endpoint, configID: configID, clients: clients}
}

// ListVoices always returns an empty list: Gradio voice cloning has no
// discrete catalog, only a reference-audio input per call.
func (p *GradioProvider) ListVoices(ctx context.Context) ([]tts.VoiceInfo, error) {
	return nil, nil
}

type gradioPredictBody struct {
	Data []any `json:"data"`
}

type gradioPredictResponse struct {
	Data []any `json:"data"`
}

// Synthesize uploads req.ReferenceAudioPath as a base64 data URL alongside
// the text and decodes whatever audio shape the endpoint returns.
func (p *GradioProvider) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.SynthesizeResult, error) {
	if req.ReferenceAudioPath == "" {
		return tts.SynthesizeResult{}, dubverrs.ConfigMissing("tts", "gradio provider requires a reference audio file")
	}

	refBytes, err := os.ReadFile(req.ReferenceAudioPath)
	if err != nil {
		return tts.SynthesizeResult{}, err
	}
	ext := strings.TrimPrefix(filepath.Ext(req.ReferenceAudioPath), ".")
	if ext == "" {
		ext = "wav"
	}
	refDataURL := fmt.Sprintf("data:audio/%s;base64,%s", ext, base64.StdEncoding.EncodeToString(refBytes))

	endpoint := strings.TrimRight(p.Endpoint, "/") + "/run/predict"
	payload, err := json.Marshal(gradioPredictBody{Data: []any{req.Text, refDataURL}})
	if err != nil {
		return tts.SynthesizeResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return tts.SynthesizeResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var parsed gradioPredictResponse
	if err := decodeJSON(resp.Body, &parsed); err != nil {
		return tts.SynthesizeResult{}, dubverrs.ProviderTransport("tts", err)
	}
	if len(parsed.Data) == 0 {
		return tts.SynthesizeResult{}, dubverrs.Validation("tts", "gradio response data is empty")
	}

	audio, err := decodeGradioAudio(parsed.Data[0])
	if err != nil {
		return tts.SynthesizeResult{}, err
	}
	if err := os.WriteFile(req.OutputPath, audio, 0o644); err != nil {
		return tts.SynthesizeResult{}, err
	}
	return tts.SynthesizeResult{AudioPath: req.OutputPath}, nil
}

// decodeGradioAudio handles the three response shapes Gradio versions use
// for the first data element: a bare base64 string, a data: URL string, or
// an object carrying a "data" field with either shape.
func decodeGradioAudio(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		b64 := v
		if strings.HasPrefix(v, "data:") {
			if idx := strings.IndexByte(v, ','); idx >= 0 {
				b64 = v[idx+1:]
			}
		}
		audio, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, dubverrs.Validation("tts", "gradio base64 decode failed: "+err.Error())
		}
		return audio, nil
	case map[string]any:
		if d, ok := v["data"].(string); ok {
			return decodeGradioAudio(d)
		}
		return nil, dubverrs.Validation("tts", "gradio response object missing data field")
	default:
		return nil, dubverrs.Validation("tts", "unsupported gradio response shape")
	}
}
