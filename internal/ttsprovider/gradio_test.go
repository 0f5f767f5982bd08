package ttsprovider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/leica1994/dubverse/internal/httpclient"
	"github.com/leica1994/dubverse/internal/tts"
)

func writeTempAudio(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestGradioSynthesizeDecodesBareBase64(t *testing.T) {
	audio := []byte("fake-audio-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body gradioPredictBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Data) != 2 {
			t.Fatalf("expected 2 data elements, got %d", len(body.Data))
		}
		resp := gradioPredictResponse{Data: []any{base64.StdEncoding.EncodeToString(audio)}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	dir := t.TempDir()
	refPath := writeTempAudio(t, dir, "ref.wav", []byte("ref"))
	provider := NewGradioProvider("cfg", srv.URL, httpclient.NewCache())

	out := filepath.Join(dir, "out.mp3")
	result, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{
		Text: "hello", ReferenceAudioPath: refPath, OutputPath: out,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	got, err := os.ReadFile(result.AudioPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(audio) {
		t.Fatalf("expected decoded audio bytes, got %q", got)
	}
}

func TestGradioSynthesizeRequiresReferenceAudio(t *testing.T) {
	provider := NewGradioProvider("cfg", "http://example.invalid", httpclient.NewCache())
	_, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "hi", OutputPath: "/tmp/out.mp3"})
	if err == nil {
		t.Fatal("expected error when reference audio path is missing")
	}
}

func TestGradioSynthesizeDecodesDataURL(t *testing.T) {
	audio := []byte("another-fake-clip")
	dataURL := "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(audio)
	decoded, err := decodeGradioAudio(dataURL)
	if err != nil {
		t.Fatalf("decodeGradioAudio: %v", err)
	}
	if string(decoded) != string(audio) {
		t.Fatalf("expected %q, got %q", audio, decoded)
	}
}

func TestGradioSynthesizeDecodesObjectShape(t *testing.T) {
	audio := []byte("object-shape-clip")
	decoded, err := decodeGradioAudio(map[string]any{
		"name": "out.wav",
		"data": base64.StdEncoding.EncodeToString(audio),
	})
	if err != nil {
		t.Fatalf("decodeGradioAudio: %v", err)
	}
	if string(decoded) != string(audio) {
		t.Fatalf("expected %q, got %q", audio, decoded)
	}
}
