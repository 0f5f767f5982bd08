package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/events"
	"github.com/leica1994/dubverse/internal/httpclient"
	"github.com/leica1994/dubverse/internal/scheduler"
)

func openTestStore(t *testing.T) *dbstore.Store {
	t.Helper()
	s, err := dbstore.Open(filepath.Join(t.TempDir(), "dubverse.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// echoServer returns every requested index rewritten by transform,
// satisfying the batch protocol's JSON-object contract on the first try.
func echoServer(t *testing.T, transform func(map[string]string) map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		userMsg := req.Messages[len(req.Messages)-1].Content
		var items map[string]string
		if err := json.Unmarshal([]byte(userMsg), &items); err != nil {
			t.Fatalf("decode batch payload: %v", err)
		}
		out := transform(items)
		raw, _ := json.Marshal(out)
		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: string(raw)}})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func upper(items map[string]string) map[string]string {
	out := make(map[string]string, len(items))
	for k, v := range items {
		out[k] = v + "_t"
	}
	return out
}

func TestEngineRunSingleStandardPhase(t *testing.T) {
	srv := echoServer(t, upper)
	defer srv.Close()

	store := openTestStore(t)
	eng := NewEngine(store, scheduler.NewManager(), httpclient.NewCache(), events.NopEmitter{})
	cfg := dbstore.AiConfig{ID: "cfg", BaseURL: srv.URL, Model: "test-model", ConcurrentLimit: 2}

	subs := []Subtitle{{Index: 0, Text: "hello"}, {Index: 1, Text: "world"}}
	out, err := eng.Run(context.Background(), subs, Options{ProjectDir: "/tmp/p1", PromptType: "standard", BatchSize: 10}, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0] != "hello_t" || out[1] != "world_t" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestEngineRunResumesFromCheckpoint(t *testing.T) {
	var calls int32
	srv := echoServer(t, func(items map[string]string) map[string]string {
		atomic.AddInt32(&calls, 1)
		return upper(items)
	})
	defer srv.Close()

	store := openTestStore(t)
	if err := store.SaveTranslationProgress("/tmp/p2", 0, dbstore.PhaseTranslation, "hello_t"); err != nil {
		t.Fatal(err)
	}

	eng := NewEngine(store, scheduler.NewManager(), httpclient.NewCache(), events.NopEmitter{})
	cfg := dbstore.AiConfig{ID: "cfg2", BaseURL: srv.URL, Model: "test-model", ConcurrentLimit: 1}
	subs := []Subtitle{{Index: 0, Text: "hello"}, {Index: 1, Text: "world"}}

	out, err := eng.Run(context.Background(), subs, Options{ProjectDir: "/tmp/p2", PromptType: "standard", BatchSize: 10}, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0] != "hello_t" || out[1] != "world_t" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if calls != 1 {
		t.Fatalf("expected only the unresolved index to trigger a call, got %d calls", calls)
	}
}

func TestEngineMultiPhaseCorrectionAndOptimization(t *testing.T) {
	srv := echoServer(t, func(items map[string]string) map[string]string {
		out := make(map[string]string, len(items))
		for k, v := range items {
			out[k] = v + "+"
		}
		return out
	})
	defer srv.Close()

	store := openTestStore(t)
	eng := NewEngine(store, scheduler.NewManager(), httpclient.NewCache(), events.NopEmitter{})
	cfg := dbstore.AiConfig{ID: "cfg3", BaseURL: srv.URL, Model: "test-model", ConcurrentLimit: 1}

	subs := []Subtitle{{Index: 0, Text: "hola"}}
	opts := Options{ProjectDir: "/tmp/p3", PromptType: "standard", Correction: true, Optimization: true, BatchSize: 10}
	out, err := eng.Run(context.Background(), subs, opts, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Three phases each append "+": correction, translation, optimization.
	if out[0] != "hola+++" {
		t.Fatalf("expected three phases applied in order, got %q", out[0])
	}
}

func TestEngineFallsBackToSourceOnPersistentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := openTestStore(t)
	eng := NewEngine(store, scheduler.NewManager(), httpclient.NewCache(), events.NopEmitter{})
	cfg := dbstore.AiConfig{ID: "cfg4", BaseURL: srv.URL, Model: "test-model", ConcurrentLimit: 1}

	subs := []Subtitle{{Index: 0, Text: "source text"}}
	out, err := eng.Run(context.Background(), subs, Options{ProjectDir: "/tmp/p4", PromptType: "standard", BatchSize: 10}, cfg, nil)
	if err != nil {
		t.Fatalf("Run should not hard-fail on provider errors: %v", err)
	}
	if out[0] != "source text" {
		t.Fatalf("expected silent fallback to source text, got %q", out[0])
	}
}

func TestSplitInHalfDividesKeysEvenly(t *testing.T) {
	items := map[string]string{"0": "a", "1": "b", "2": "c", "3": "d"}
	halves := splitInHalf(items)
	if len(halves[0])+len(halves[1]) != len(items) {
		t.Fatalf("expected halves to partition every key, got %v / %v", halves[0], halves[1])
	}
}
