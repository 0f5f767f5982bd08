package dbstore

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "dubverse.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetJobByProjectDir(t *testing.T) {
	s := openTestStore(t)
	j := &Job{
		ID:            "job-1",
		ProjectDir:    "/tmp/project-a",
		VideoPath:     "/tmp/project-a/source.mp4",
		SubtitleCount: 3,
		ReferenceMode: ReferenceClone,
		Status:        JobPending,
	}
	if err := s.CreateJob(j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.GetJobByProjectDir("/tmp/project-a")
	if err != nil {
		t.Fatalf("GetJobByProjectDir: %v", err)
	}
	if got == nil || got.ID != "job-1" {
		t.Fatalf("expected job-1, got %+v", got)
	}

	none, err := s.GetJobByProjectDir("/tmp/does-not-exist")
	if err != nil {
		t.Fatalf("GetJobByProjectDir: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil for unknown project dir, got %+v", none)
	}
}

func TestUpdateJobStatus(t *testing.T) {
	s := openTestStore(t)
	j := &Job{ID: "job-2", ProjectDir: "/tmp/project-b", VideoPath: "v.mp4", ReferenceMode: ReferenceNone, Status: JobPending}
	if err := s.CreateJob(j); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateJobStatus("job-2", JobRunning, string(StageMedia), ""); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetJob("job-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != JobRunning || got.CurrentStage != string(StageMedia) {
		t.Fatalf("unexpected job state: %+v", got)
	}
}

func TestStageStateUpsertAndCompletion(t *testing.T) {
	s := openTestStore(t)
	j := &Job{ID: "job-3", ProjectDir: "/tmp/project-c", VideoPath: "v.mp4", ReferenceMode: ReferenceNone, Status: JobPending}
	if err := s.CreateJob(j); err != nil {
		t.Fatal(err)
	}

	if err := s.UpsertStageState(&StageState{JobID: "job-3", Stage: StageMedia, Status: StageRunning, Progress: 40}); err != nil {
		t.Fatal(err)
	}
	st, err := s.GetStageState("job-3", StageMedia)
	if err != nil {
		t.Fatal(err)
	}
	if st.Progress != 40 || st.CompletedAt != nil {
		t.Fatalf("unexpected mid-run state: %+v", st)
	}

	if err := s.UpsertStageState(&StageState{JobID: "job-3", Stage: StageMedia, Status: StageCompleted, OutputPath: "/tmp/out"}); err != nil {
		t.Fatal(err)
	}
	st, err = s.GetStageState("job-3", StageMedia)
	if err != nil {
		t.Fatal(err)
	}
	if st.Progress != 100 || st.CompletedAt == nil || st.OutputPath != "/tmp/out" {
		t.Fatalf("expected completion to force progress=100 and set completed_at: %+v", st)
	}
}

func TestDeleteJobCascadesStageStatesAndTtsItems(t *testing.T) {
	s := openTestStore(t)
	j := &Job{ID: "job-4", ProjectDir: "/tmp/project-d", VideoPath: "v.mp4", ReferenceMode: ReferenceNone, Status: JobPending}
	if err := s.CreateJob(j); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertStageState(&StageState{JobID: "job-4", Stage: StagePreprocess, Status: StageCompleted}); err != nil {
		t.Fatal(err)
	}
	if err := s.BulkUpsertTtsItems([]*TtsItem{{JobID: "job-4", SubtitleIndex: 0, PreprocessedText: "hi", StartMs: 0, EndMs: 500, Status: TtsItemPending}}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteJob("job-4"); err != nil {
		t.Fatal(err)
	}

	states, err := s.GetStageStates("job-4")
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 0 {
		t.Fatalf("expected stage_states to cascade-delete, got %d rows", len(states))
	}
	items, err := s.GetAllTtsItems("job-4")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("expected tts_items to cascade-delete, got %d rows", len(items))
	}
}

func TestTtsItemLifecycle(t *testing.T) {
	s := openTestStore(t)
	j := &Job{ID: "job-5", ProjectDir: "/tmp/project-e", VideoPath: "v.mp4", ReferenceMode: ReferenceNone, Status: JobPending}
	if err := s.CreateJob(j); err != nil {
		t.Fatal(err)
	}
	items := []*TtsItem{
		{JobID: "job-5", SubtitleIndex: 0, PreprocessedText: "one", StartMs: 0, EndMs: 500, Status: TtsItemPending},
		{JobID: "job-5", SubtitleIndex: 1, PreprocessedText: "two", StartMs: 500, EndMs: 1000, Status: TtsItemPending},
	}
	if err := s.BulkUpsertTtsItems(items); err != nil {
		t.Fatal(err)
	}

	pending, err := s.GetPendingTtsItems("job-5")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending items, got %d", len(pending))
	}

	if err := s.UpdateTtsItemCompleted("job-5", 0, "/tmp/tts_0000.mp3", 480); err != nil {
		t.Fatal(err)
	}
	pending, err = s.GetPendingTtsItems("job-5")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].SubtitleIndex != 1 {
		t.Fatalf("expected only index 1 still pending, got %+v", pending)
	}

	if err := s.UpdateTtsItemFailed("job-5", 1, "provider timeout"); err != nil {
		t.Fatal(err)
	}
	all, err := s.GetAllTtsItems("job-5")
	if err != nil {
		t.Fatal(err)
	}
	if all[1].Status != TtsItemFailed || all[1].RetryCount != 1 || all[1].Error != "provider timeout" {
		t.Fatalf("unexpected failed item state: %+v", all[1])
	}
}

func TestTranslationProgressRoundTripAndClear(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveTranslationProgress("/tmp/project-f", 0, PhaseCorrection, "hello"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTranslationProgress("/tmp/project-f", 1, PhaseCorrection, "world"); err != nil {
		t.Fatal(err)
	}
	// Overwrite index 0.
	if err := s.SaveTranslationProgress("/tmp/project-f", 0, PhaseCorrection, "hello again"); err != nil {
		t.Fatal(err)
	}

	progress, err := s.GetTranslationProgress("/tmp/project-f", PhaseCorrection)
	if err != nil {
		t.Fatal(err)
	}
	if progress[0] != "hello again" || progress[1] != "world" {
		t.Fatalf("unexpected progress map: %+v", progress)
	}

	if err := s.ClearTranslationProgress("/tmp/project-f"); err != nil {
		t.Fatal(err)
	}
	progress, err = s.GetTranslationProgress("/tmp/project-f", PhaseCorrection)
	if err != nil {
		t.Fatal(err)
	}
	if len(progress) != 0 {
		t.Fatalf("expected empty progress after clear, got %+v", progress)
	}
}

func TestAiConfigDefaultSwitch(t *testing.T) {
	s := openTestStore(t)
	a := &AiConfig{ID: "cfg-a", BaseURL: "https://a.example", APIKey: "k", Model: "m", ConcurrentLimit: 2, RequestTimeout: 60, IsDefault: true}
	b := &AiConfig{ID: "cfg-b", BaseURL: "https://b.example", APIKey: "k", Model: "m", ConcurrentLimit: 2, RequestTimeout: 60}
	if err := s.CreateAiConfig(a); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAiConfig(b); err != nil {
		t.Fatal(err)
	}

	def, err := s.GetDefaultAiConfig()
	if err != nil {
		t.Fatal(err)
	}
	if def.ID != "cfg-a" {
		t.Fatalf("expected cfg-a as default, got %+v", def)
	}

	if err := s.SetDefaultAiConfig("cfg-b"); err != nil {
		t.Fatal(err)
	}
	def, err = s.GetDefaultAiConfig()
	if err != nil {
		t.Fatal(err)
	}
	if def.ID != "cfg-b" {
		t.Fatalf("expected cfg-b as default after switch, got %+v", def)
	}
}

func TestTtsPluginCRUD(t *testing.T) {
	s := openTestStore(t)
	p := &TtsPlugin{ID: "plugin-1", PluginType: TtsPluginGradio, ConfigJSON: `{"endpoint":"http://localhost:7860"}`, RequiresRef: true}
	if err := s.CreateTtsPlugin(p); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTtsPlugin("plugin-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.PluginType != TtsPluginGradio || !got.RequiresRef {
		t.Fatalf("unexpected plugin: %+v", got)
	}

	p.ConfigJSON = `{"endpoint":"http://localhost:9999"}`
	if err := s.UpdateTtsPlugin(p); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetTtsPlugin("plugin-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ConfigJSON != p.ConfigJSON {
		t.Fatalf("update did not persist: %+v", got)
	}

	if err := s.DeleteTtsPlugin("plugin-1"); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetTtsPlugin("plugin-1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil after delete, got %+v", got)
	}
}

func TestWorkbenchTaskLifecycle(t *testing.T) {
	s := openTestStore(t)
	task := &WorkbenchTask{ID: "wt-1", ProjectDir: "/tmp/project-g", Kind: WorkbenchDub, Status: "running", Progress: 0}
	if err := s.CreateWorkbenchTask(task); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateWorkbenchTaskProgress("wt-1", "running", 50); err != nil {
		t.Fatal(err)
	}
	tasks, err := s.ListWorkbenchTasks("/tmp/project-g")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Progress != 50 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if err := s.DeleteWorkbenchTask("wt-1"); err != nil {
		t.Fatal(err)
	}
	tasks, err = s.ListWorkbenchTasks("/tmp/project-g")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks after delete, got %+v", tasks)
	}
}
