package tts

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/events"
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

// fakeProvider synthesizes deterministically or fails the first N calls for
// a given VoiceID-less text, simulating transient provider errors.
type fakeProvider struct {
	mu        sync.Mutex
	failUntil map[string]int
	calls     map[string]int
}

func newFakeProvider(failUntil map[string]int) *fakeProvider {
	return &fakeProvider{failUntil: failUntil, calls: make(map[string]int)}
}

func (f *fakeProvider) ListVoices(ctx context.Context) ([]VoiceInfo, error) { return nil, nil }

func (f *fakeProvider) Synthesize(ctx context.Context, req SynthesizeRequest) (SynthesizeResult, error) {
	f.mu.Lock()
	f.calls[req.Text]++
	n := f.calls[req.Text]
	f.mu.Unlock()

	if limit, ok := f.failUntil[req.Text]; ok && n <= limit {
		return SynthesizeResult{}, errors.New("transient provider failure")
	}
	return SynthesizeResult{AudioPath: req.OutputPath, DurationMs: 1500}, nil
}

func seedJob(t *testing.T, store *dbstore.Store, jobID, projectDir string) {
	t.Helper()
	if err := store.CreateJob(&dbstore.Job{ID: jobID, ProjectDir: projectDir, Status: dbstore.JobPending}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
}

func TestExecutorRunCompletesAllPendingItems(t *testing.T) {
	store := openTestStore(t)
	seedJob(t, store, "job1", "/tmp/j1")
	items := []*dbstore.TtsItem{
		{JobID: "job1", SubtitleIndex: 0, PreprocessedText: "hello", StartMs: 0, EndMs: 1000, Status: dbstore.TtsItemPending},
		{JobID: "job1", SubtitleIndex: 1, PreprocessedText: "world", StartMs: 1000, EndMs: 2000, Status: dbstore.TtsItemPending},
	}
	if err := store.BulkUpsertTtsItems(items); err != nil {
		t.Fatalf("BulkUpsertTtsItems: %v", err)
	}

	provider := newFakeProvider(nil)
	exec := NewExecutor(store, scheduler.NewManager(), events.NopEmitter{}, nil)
	workDir := t.TempDir()

	if err := exec.Run(context.Background(), "job1", workDir, provider, "cfg", 2, 0, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	all, err := store.GetAllTtsItems("job1")
	if err != nil {
		t.Fatalf("GetAllTtsItems: %v", err)
	}
	for _, it := range all {
		if it.Status != dbstore.TtsItemCompleted {
			t.Fatalf("item %d: expected completed, got %s", it.SubtitleIndex, it.Status)
		}
		if it.TtsAudioPath == "" {
			t.Fatalf("item %d: expected audio path set", it.SubtitleIndex)
		}
	}
}

func TestExecutorRetriesThenSucceeds(t *testing.T) {
	store := openTestStore(t)
	seedJob(t, store, "job2", "/tmp/j2")
	items := []*dbstore.TtsItem{
		{JobID: "job2", SubtitleIndex: 0, PreprocessedText: "flaky", StartMs: 0, EndMs: 1000, Status: dbstore.TtsItemPending},
	}
	if err := store.BulkUpsertTtsItems(items); err != nil {
		t.Fatalf("BulkUpsertTtsItems: %v", err)
	}

	provider := newFakeProvider(map[string]int{"flaky": 2})
	exec := NewExecutor(store, scheduler.NewManager(), events.NopEmitter{}, nil)
	workDir := t.TempDir()

	origBackoff := initialBackoff
	initialBackoff = 0
	defer func() { initialBackoff = origBackoff }()

	if err := exec.Run(context.Background(), "job2", workDir, provider, "cfg", 1, 0, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	all, err := store.GetAllTtsItems("job2")
	if err != nil {
		t.Fatalf("GetAllTtsItems: %v", err)
	}
	if all[0].Status != dbstore.TtsItemCompleted {
		t.Fatalf("expected item to succeed on third attempt, got %s", all[0].Status)
	}
}

func TestExecutorTogglesPartialFailureAndContinues(t *testing.T) {
	store := openTestStore(t)
	seedJob(t, store, "job3", "/tmp/j3")
	items := []*dbstore.TtsItem{
		{JobID: "job3", SubtitleIndex: 0, PreprocessedText: "always-fails", StartMs: 0, EndMs: 1000, Status: dbstore.TtsItemPending},
		{JobID: "job3", SubtitleIndex: 1, PreprocessedText: "fine", StartMs: 1000, EndMs: 2000, Status: dbstore.TtsItemPending},
	}
	if err := store.BulkUpsertTtsItems(items); err != nil {
		t.Fatalf("BulkUpsertTtsItems: %v", err)
	}

	provider := newFakeProvider(map[string]int{"always-fails": 999})
	exec := NewExecutor(store, scheduler.NewManager(), events.NopEmitter{}, nil)
	workDir := t.TempDir()

	origBackoff := initialBackoff
	initialBackoff = 0
	defer func() { initialBackoff = origBackoff }()

	if err := exec.Run(context.Background(), "job3", workDir, provider, "cfg", 1, 0, nil); err != nil {
		t.Fatalf("Run should tolerate partial failure, got error: %v", err)
	}

	all, err := store.GetAllTtsItems("job3")
	if err != nil {
		t.Fatalf("GetAllTtsItems: %v", err)
	}
	if all[0].Status != dbstore.TtsItemFailed {
		t.Fatalf("expected item 0 to be marked failed, got %s", all[0].Status)
	}
	if all[0].RetryCount == 0 {
		t.Fatalf("expected retry_count to be incremented on failure")
	}
	if all[1].Status != dbstore.TtsItemCompleted {
		t.Fatalf("expected item 1 to still complete despite item 0's failure, got %s", all[1].Status)
	}
}
