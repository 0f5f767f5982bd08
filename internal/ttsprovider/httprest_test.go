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

func TestHTTPRestSynthesizeBinaryResponse(t *testing.T) {
	audio := []byte("binary-audio")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "hello" {
			t.Fatalf("expected text key to carry the input text, got %+v", body)
		}
		w.Write(audio)
	}))
	defer srv.Close()

	cfg := HTTPRestConfig{URL: srv.URL, ResponseType: "binary"}
	provider := NewHTTPRestProvider("cfg", cfg, httpclient.NewCache())

	out := filepath.Join(t.TempDir(), "out.mp3")
	result, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "hello", OutputPath: out})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	got, _ := os.ReadFile(result.AudioPath)
	if string(got) != string(audio) {
		t.Fatalf("expected %q, got %q", audio, got)
	}
}

func TestHTTPRestSynthesizeJSONBase64Response(t *testing.T) {
	audio := []byte("json-b64-audio")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"audio": base64.StdEncoding.EncodeToString(audio)})
	}))
	defer srv.Close()

	cfg := HTTPRestConfig{URL: srv.URL, ResponseType: "json_base64"}
	provider := NewHTTPRestProvider("cfg", cfg, httpclient.NewCache())

	out := filepath.Join(t.TempDir(), "out.mp3")
	result, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "hi", OutputPath: out})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	got, _ := os.ReadFile(result.AudioPath)
	if string(got) != string(audio) {
		t.Fatalf("expected %q, got %q", audio, got)
	}
}

func TestHTTPRestSynthesizeEncodesReferenceAudio(t *testing.T) {
	refBytes := []byte("ref-audio-data")
	var gotRefKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if v, ok := body["reference"].(string); ok {
			gotRefKey = v
		}
		w.Write([]byte("ok-audio"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	refPath := writeTempAudio(t, dir, "ref.wav", refBytes)
	cfg := HTTPRestConfig{URL: srv.URL, ResponseType: "binary", ReferenceAudioKey: "reference"}
	provider := NewHTTPRestProvider("cfg", cfg, httpclient.NewCache())

	_, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{
		Text: "hi", ReferenceAudioPath: refPath, OutputPath: filepath.Join(dir, "out.mp3"),
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotRefKey != base64.StdEncoding.EncodeToString(refBytes) {
		t.Fatalf("expected reference audio to be base64-encoded into the configured key")
	}
}

func TestHTTPRestSynthesizeRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := HTTPRestConfig{URL: srv.URL, ResponseType: "binary"}
	provider := NewHTTPRestProvider("cfg", cfg, httpclient.NewCache())
	_, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "hi", OutputPath: filepath.Join(t.TempDir(), "out.mp3")})
	if err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}
