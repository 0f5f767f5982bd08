package dubbing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/dubverrs"
	"github.com/leica1994/dubverse/internal/events"
	"github.com/leica1994/dubverse/internal/scheduler"
	"github.com/leica1994/dubverse/internal/tts"
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

// upperClient normalizes by upper-casing every value, echoing the JSON
// shape the preprocess batch protocol expects.
type upperClient struct{}

func (upperClient) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	var in map[string]string
	if err := json.Unmarshal([]byte(userPrompt), &in); err != nil {
		return "", err
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = "NORM:" + v
	}
	raw, err := json.Marshal(out)
	return string(raw), err
}

// failingClient always errors, forcing the preprocess fallback path.
type failingClient struct{}

func (failingClient) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	return "", errors.New("upstream unavailable")
}

// orderTrackingProvider records the order and text of every Synthesize
// call, for asserting the S5 resume invariant.
type orderTrackingProvider struct {
	calls []string
}

func (p *orderTrackingProvider) ListVoices(ctx context.Context) ([]tts.VoiceInfo, error) {
	return nil, nil
}

func (p *orderTrackingProvider) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.SynthesizeResult, error) {
	p.calls = append(p.calls, req.Text)
	return tts.SynthesizeResult{AudioPath: req.OutputPath, DurationMs: 900}, nil
}

func seedTestJob(t *testing.T, store *dbstore.Store, id, projectDir string, refMode dbstore.ReferenceMode) *dbstore.Job {
	t.Helper()
	job := &dbstore.Job{ID: id, ProjectDir: projectDir, VideoPath: filepath.Join(projectDir, "in.mp4"), ReferenceMode: refMode, Status: dbstore.JobPending}
	if err := store.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func TestPreprocessSeedsTtsItemsAndIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	job := seedTestJob(t, store, "job1", t.TempDir(), dbstore.ReferenceNone)
	orch := NewOrchestrator(store, scheduler.NewManager(), events.NopEmitter{}, nil)

	subs := []SubtitleInput{
		{Index: 0, Text: "hello", StartMs: 0, EndMs: 1000},
		{Index: 1, Text: "world", StartMs: 1000, EndMs: 2000},
	}
	cfg := dbstore.AiConfig{ID: "cfg", ConcurrentLimit: 2}

	if err := orch.Preprocess(context.Background(), job, subs, upperClient{}, cfg, nil); err != nil {
		t.Fatalf("Preprocess: %v", err)
	}

	items, err := store.GetAllTtsItems(job.ID)
	if err != nil {
		t.Fatalf("GetAllTtsItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 tts items, got %d", len(items))
	}
	if items[0].PreprocessedText != "NORM:hello" || items[1].PreprocessedText != "NORM:world" {
		t.Fatalf("expected normalized text, got %+v", items)
	}

	st, err := store.GetStageState(job.ID, dbstore.StagePreprocess)
	if err != nil || st == nil || st.Status != dbstore.StageCompleted {
		t.Fatalf("expected preprocess stage completed, got %+v, err=%v", st, err)
	}

	// Re-entering a completed stage must not touch the rows again.
	if err := orch.Preprocess(context.Background(), job, subs, failingClient{}, cfg, nil); err != nil {
		t.Fatalf("re-entering completed Preprocess: %v", err)
	}
	items2, _ := store.GetAllTtsItems(job.ID)
	if items2[0].PreprocessedText != "NORM:hello" {
		t.Fatalf("expected completed stage to be skipped, got %+v", items2)
	}
}

func TestPreprocessFallsBackToSourceTextOnClientFailure(t *testing.T) {
	store := openTestStore(t)
	job := seedTestJob(t, store, "job2", t.TempDir(), dbstore.ReferenceNone)
	orch := NewOrchestrator(store, scheduler.NewManager(), events.NopEmitter{}, nil)

	subs := []SubtitleInput{{Index: 0, Text: "keep me", StartMs: 0, EndMs: 500}}
	cfg := dbstore.AiConfig{ID: "cfg", ConcurrentLimit: 1}

	if err := orch.Preprocess(context.Background(), job, subs, failingClient{}, cfg, nil); err != nil {
		t.Fatalf("Preprocess should never fail the stage, got: %v", err)
	}

	items, _ := store.GetAllTtsItems(job.ID)
	if items[0].PreprocessedText != "keep me" {
		t.Fatalf("expected source-text fallback, got %q", items[0].PreprocessedText)
	}
}

// TestTTSStageResumesOnlyPendingAndFailedItems locks in the S5 resume
// scenario: items 1-4 and 6 are already completed, item 5 is failed, items
// 7-10 are pending. A TTS stage run must call the provider exactly for
// {5,7,8,9,10} in ascending order and must not touch the completed items.
func TestTTSStageResumesOnlyPendingAndFailedItems(t *testing.T) {
	store := openTestStore(t)
	projectDir := t.TempDir()
	job := seedTestJob(t, store, "job3", projectDir, dbstore.ReferenceNone)

	items := make([]*dbstore.TtsItem, 0, 10)
	for i := 1; i <= 10; i++ {
		status := dbstore.TtsItemPending
		switch {
		case i <= 4 || i == 6:
			status = dbstore.TtsItemCompleted
		case i == 5:
			status = dbstore.TtsItemFailed
		}
		it := &dbstore.TtsItem{
			JobID: job.ID, SubtitleIndex: i, PreprocessedText: fmt.Sprintf("line %d", i), Status: status,
			StartMs: int64(i-1) * 1000, EndMs: int64(i) * 1000,
		}
		if status == dbstore.TtsItemCompleted {
			dur := int64(900)
			it.TtsDurationMs = &dur
			it.TtsAudioPath = filepath.Join(projectDir, "tts", "already_done.mp3")
		}
		items = append(items, it)
	}
	if err := store.BulkUpsertTtsItems(items); err != nil {
		t.Fatalf("BulkUpsertTtsItems: %v", err)
	}
	// BulkUpsertTtsItems' upsert clause only refreshes text/timing, not
	// status/audio — set those explicitly via the same status-transition
	// helpers the executor itself uses, so the fixture matches a real run.
	for _, it := range items {
		switch it.Status {
		case dbstore.TtsItemCompleted:
			if err := store.UpdateTtsItemCompleted(job.ID, it.SubtitleIndex, it.TtsAudioPath, *it.TtsDurationMs); err != nil {
				t.Fatalf("UpdateTtsItemCompleted: %v", err)
			}
		case dbstore.TtsItemFailed:
			if err := store.UpdateTtsItemFailed(job.ID, it.SubtitleIndex, "prior failure"); err != nil {
				t.Fatalf("UpdateTtsItemFailed: %v", err)
			}
		}
	}

	orch := NewOrchestrator(store, scheduler.NewManager(), events.NopEmitter{}, nil)
	provider := &orderTrackingProvider{}

	if err := orch.TTS(context.Background(), job, provider, "cfg", 1, 0, nil); err != nil {
		t.Fatalf("TTS: %v", err)
	}

	wantOrder := []string{"line 5", "line 7", "line 8", "line 9", "line 10"}
	if len(provider.calls) != len(wantOrder) {
		t.Fatalf("expected %d provider calls (items 5,7,8,9,10), got %d: %v", len(wantOrder), len(provider.calls), provider.calls)
	}
	for i, want := range wantOrder {
		if provider.calls[i] != want {
			t.Fatalf("call %d: expected %q, got %q (all calls: %v)", i, want, provider.calls[i], provider.calls)
		}
	}

	all, _ := store.GetAllTtsItems(job.ID)
	for _, it := range all {
		if it.SubtitleIndex <= 4 || it.SubtitleIndex == 6 {
			if it.TtsAudioPath != filepath.Join(projectDir, "tts", "already_done.mp3") {
				t.Fatalf("item %d: untouched completed item's audio path changed to %q", it.SubtitleIndex, it.TtsAudioPath)
			}
			continue
		}
		if it.Status != dbstore.TtsItemCompleted {
			t.Fatalf("item %d: expected resumed item to complete, got %s", it.SubtitleIndex, it.Status)
		}
	}
}

func TestAlignmentFailsWithNoAudioWhenZeroItemsCompleted(t *testing.T) {
	store := openTestStore(t)
	job := seedTestJob(t, store, "job4", t.TempDir(), dbstore.ReferenceNone)
	items := []*dbstore.TtsItem{
		{JobID: job.ID, SubtitleIndex: 0, Status: dbstore.TtsItemFailed, StartMs: 0, EndMs: 1000},
	}
	if err := store.BulkUpsertTtsItems(items); err != nil {
		t.Fatalf("BulkUpsertTtsItems: %v", err)
	}

	orch := NewOrchestrator(store, scheduler.NewManager(), events.NopEmitter{}, nil)
	err := orch.Alignment(context.Background(), job, 0, nil)
	if !dubverrs.IsKind(err, dubverrs.KindNoAudio) {
		t.Fatalf("expected NoAudio error, got %v", err)
	}

	st, getErr := store.GetStageState(job.ID, dbstore.StageAlignment)
	if getErr != nil || st == nil || st.Status != dbstore.StageFailed {
		t.Fatalf("expected alignment stage marked failed, got %+v, err=%v", st, getErr)
	}
}

func TestReferenceCustomModeAssignsSamePathToEveryItem(t *testing.T) {
	projectDir := t.TempDir()
	store := openTestStore(t)

	srcPath := filepath.Join(projectDir, "custom_ref.wav")
	if err := writeTestFile(srcPath, []byte("RIFF....")); err != nil {
		t.Fatalf("writeTestFile: %v", err)
	}

	job := &dbstore.Job{ID: "job5", ProjectDir: projectDir, ReferenceMode: dbstore.ReferenceCustom, ReferenceAudioPath: srcPath, Status: dbstore.JobPending}
	if err := store.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	items := []*dbstore.TtsItem{
		{JobID: job.ID, SubtitleIndex: 0, Status: dbstore.TtsItemPending, StartMs: 0, EndMs: 1000},
		{JobID: job.ID, SubtitleIndex: 1, Status: dbstore.TtsItemPending, StartMs: 1000, EndMs: 2000},
	}
	if err := store.BulkUpsertTtsItems(items); err != nil {
		t.Fatalf("BulkUpsertTtsItems: %v", err)
	}

	orch := NewOrchestrator(store, scheduler.NewManager(), events.NopEmitter{}, nil)
	if err := orch.Reference(context.Background(), job, nil); err != nil {
		t.Fatalf("Reference: %v", err)
	}

	all, _ := store.GetAllTtsItems(job.ID)
	if all[0].ReferenceAudioPath == "" || all[0].ReferenceAudioPath != all[1].ReferenceAudioPath {
		t.Fatalf("expected both items to share one reference path, got %+v", all)
	}
}

func writeTestFile(path string, content []byte) error {
	return os.WriteFile(path, content, 0o644)
}
