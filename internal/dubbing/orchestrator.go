package dubbing

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/leica1994/dubverse/internal/cancel"
	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/dubverrs"
	"github.com/leica1994/dubverse/internal/events"
	"github.com/leica1994/dubverse/internal/media"
	"github.com/leica1994/dubverse/internal/scheduler"
	"github.com/leica1994/dubverse/internal/tts"
)

// SubtitleInput is one source subtitle entry feeding the Preprocess stage
// and, transitively, the TtsItem rows it seeds.
type SubtitleInput struct {
	Index   int
	Text    string
	StartMs int64
	EndMs   int64
}

// RunInputs bundles everything a full dub run (spec §4.3) needs beyond the
// Job and StageState rows already in the store.
type RunInputs struct {
	Subtitles          []SubtitleInput
	PreprocessClient   PreprocessClient
	AiConfig           dbstore.AiConfig
	TtsProvider        tts.Provider
	TtsConfigID        string
	TtsConcurrentLimit int64
	TtsRateLimit       float64
	TotalDurationMs    int64
}

// Orchestrator drives the fixed dubbing stage machine — preprocess, media,
// reference, tts, alignment, compose (spec §4.3) — each checkpointed
// through the Job/Stage State Store and individually re-enterable.
type Orchestrator struct {
	store    *dbstore.Store
	sched    *scheduler.Manager
	emitter  events.Emitter
	executor *tts.Executor
}

// NewOrchestrator builds an Orchestrator bound to one store/scheduler/
// emitter triple, with its own TTS Executor wired to prober.
func NewOrchestrator(store *dbstore.Store, sched *scheduler.Manager, emitter events.Emitter, prober tts.DurationProber) *Orchestrator {
	return &Orchestrator{
		store:    store,
		sched:    sched,
		emitter:  emitter,
		executor: tts.NewExecutor(store, sched, emitter, prober),
	}
}

// Run executes every stage in fixed order, stopping at the first failure.
// Each stage call is itself idempotent (re-entering a completed stage is a
// no-op), so Run is safe to call again after a partial failure.
func (o *Orchestrator) Run(ctx context.Context, job *dbstore.Job, in RunInputs, flag *cancel.Flag) error {
	stages := []func() error{
		func() error {
			return o.Preprocess(ctx, job, in.Subtitles, in.PreprocessClient, in.AiConfig, flag)
		},
		func() error { return o.Media(ctx, job, flag) },
		func() error { return o.Reference(ctx, job, flag) },
		func() error {
			return o.TTS(ctx, job, in.TtsProvider, in.TtsConfigID, in.TtsConcurrentLimit, in.TtsRateLimit, flag)
		},
		func() error { return o.Alignment(ctx, job, in.TotalDurationMs, flag) },
		func() error { return o.Compose(ctx, job, flag) },
	}

	for _, stage := range stages {
		if flag != nil && flag.IsSet() {
			return dubverrs.Cancelled("dub:run")
		}
		if err := stage(); err != nil {
			return err
		}
	}
	return o.store.UpdateJobStatus(job.ID, dbstore.JobCompleted, string(dbstore.StageCompose), "")
}

// Preprocess normalizes subtitle text for TTS readability (spec §4.4),
// then seeds the TtsItem rows (the external command table's
// `init_tts_items`, folded in here since it has no StageState of its own)
// with the preprocessed text and subtitle timing.
func (o *Orchestrator) Preprocess(ctx context.Context, job *dbstore.Job, subtitles []SubtitleInput, client PreprocessClient, cfg dbstore.AiConfig, flag *cancel.Flag) error {
	done, err := o.skipIfCompleted(job.ID, dbstore.StagePreprocess)
	if err != nil || done {
		return err
	}
	if err := o.beginStage(job, dbstore.StagePreprocess); err != nil {
		return err
	}

	items := make([]PreprocessItem, len(subtitles))
	for i, s := range subtitles {
		items[i] = PreprocessItem{Index: s.Index, Text: s.Text}
	}

	results, err := RunPreprocess(ctx, client, o.sched, o.emitter, cfg, flag, items)
	if err != nil {
		return o.failStage(job, dbstore.StagePreprocess, err)
	}

	ttsItems := make([]*dbstore.TtsItem, len(subtitles))
	for i, s := range subtitles {
		ttsItems[i] = &dbstore.TtsItem{
			JobID:            job.ID,
			SubtitleIndex:    s.Index,
			PreprocessedText: results[s.Index],
			StartMs:          s.StartMs,
			EndMs:            s.EndMs,
			Status:           dbstore.TtsItemPending,
		}
	}
	if err := o.store.BulkUpsertTtsItems(ttsItems); err != nil {
		return o.failStage(job, dbstore.StagePreprocess, err)
	}

	return o.completeStage(job, dbstore.StagePreprocess, "")
}

// Media invokes the Media Separator (spec §4.8), producing vocals.wav and
// silent_video.mp4 in the job's project directory.
func (o *Orchestrator) Media(ctx context.Context, job *dbstore.Job, flag *cancel.Flag) error {
	done, err := o.skipIfCompleted(job.ID, dbstore.StageMedia)
	if err != nil || done {
		return err
	}
	if err := o.beginStage(job, dbstore.StageMedia); err != nil {
		return err
	}
	if flag != nil && flag.IsSet() {
		return o.failStage(job, dbstore.StageMedia, dubverrs.Cancelled("media"))
	}

	result, err := media.Separate(ctx, job.VideoPath, job.ProjectDir)
	if err != nil {
		return o.failStage(job, dbstore.StageMedia, err)
	}

	return o.completeStage(job, dbstore.StageMedia, result.VocalAudioPath)
}

// Reference populates each TtsItem's reference_audio_path according to the
// job's reference_mode (spec §4.3).
func (o *Orchestrator) Reference(ctx context.Context, job *dbstore.Job, flag *cancel.Flag) error {
	done, err := o.skipIfCompleted(job.ID, dbstore.StageReference)
	if err != nil || done {
		return err
	}
	if err := o.beginStage(job, dbstore.StageReference); err != nil {
		return err
	}
	if flag != nil && flag.IsSet() {
		return o.failStage(job, dbstore.StageReference, dubverrs.Cancelled("reference"))
	}

	switch job.ReferenceMode {
	case dbstore.ReferenceNone:
		return o.completeStage(job, dbstore.StageReference, "")

	case dbstore.ReferenceCustom:
		refPath, err := media.PrepareCustomReference(job.ReferenceAudioPath, job.ProjectDir)
		if err != nil {
			return o.failStage(job, dbstore.StageReference, err)
		}
		items, err := o.store.GetAllTtsItems(job.ID)
		if err != nil {
			return o.failStage(job, dbstore.StageReference, dubverrs.Storage("reference", err))
		}
		for _, item := range items {
			if err := o.store.UpdateTtsItemReference(job.ID, item.SubtitleIndex, refPath); err != nil {
				return o.failStage(job, dbstore.StageReference, err)
			}
		}
		return o.completeStage(job, dbstore.StageReference, refPath)

	default: // dbstore.ReferenceClone
		items, err := o.store.GetAllTtsItems(job.ID)
		if err != nil {
			return o.failStage(job, dbstore.StageReference, dubverrs.Storage("reference", err))
		}
		spans := make([]media.SubtitleSpan, len(items))
		for i, item := range items {
			spans[i] = media.SubtitleSpan{Index: item.SubtitleIndex, StartMs: item.StartMs, EndMs: item.EndMs}
		}
		vocalPath := filepath.Join(job.ProjectDir, "vocals.wav")
		clips, err := media.ExtractReferenceClips(ctx, vocalPath, spans, job.ProjectDir)
		if err != nil {
			return o.failStage(job, dbstore.StageReference, err)
		}
		for _, clip := range clips {
			if err := o.store.UpdateTtsItemReference(job.ID, clip.SubtitleIndex, clip.Path); err != nil {
				return o.failStage(job, dbstore.StageReference, err)
			}
		}
		return o.completeStage(job, dbstore.StageReference, filepath.Join(job.ProjectDir, "reference"))
	}
}

// TTS drives the TTS Executor (spec §4.5) over every pending item. Partial
// per-item failure does not fail the stage — only a hard error (DB,
// cancellation) does.
func (o *Orchestrator) TTS(ctx context.Context, job *dbstore.Job, provider tts.Provider, configID string, concurrentLimit int64, rateLimit float64, flag *cancel.Flag) error {
	done, err := o.skipIfCompleted(job.ID, dbstore.StageTTS)
	if err != nil || done {
		return err
	}
	if err := o.beginStage(job, dbstore.StageTTS); err != nil {
		return err
	}

	workDir := job.ProjectDir
	if err := o.executor.Run(ctx, job.ID, workDir, provider, configID, concurrentLimit, rateLimit, flag); err != nil {
		return o.failStage(job, dbstore.StageTTS, err)
	}

	return o.completeStage(job, dbstore.StageTTS, filepath.Join(workDir, "tts"))
}

// Alignment fits completed TTS clips into their subtitle slots and
// concatenates them into one dubbed audio track (spec §4.6). Fails with
// NoAudio if the TTS stage produced zero completed items.
func (o *Orchestrator) Alignment(ctx context.Context, job *dbstore.Job, totalDurationMs int64, flag *cancel.Flag) error {
	done, err := o.skipIfCompleted(job.ID, dbstore.StageAlignment)
	if err != nil || done {
		return err
	}
	if err := o.beginStage(job, dbstore.StageAlignment); err != nil {
		return err
	}
	if flag != nil && flag.IsSet() {
		return o.failStage(job, dbstore.StageAlignment, dubverrs.Cancelled("alignment"))
	}

	items, err := o.store.GetAllTtsItems(job.ID)
	if err != nil {
		return o.failStage(job, dbstore.StageAlignment, dubverrs.Storage("alignment", err))
	}

	segments := make([]media.AlignedSegment, 0, len(items))
	for _, item := range items {
		if item.Status != dbstore.TtsItemCompleted || item.TtsDurationMs == nil {
			continue
		}
		segments = append(segments, media.AlignedSegment{
			SubtitleIndex: item.SubtitleIndex,
			StartMs:       item.StartMs,
			TtsAudioPath:  item.TtsAudioPath,
			TtsDurationMs: *item.TtsDurationMs,
		})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].SubtitleIndex < segments[j].SubtitleIndex })

	if totalDurationMs <= 0 && len(items) > 0 {
		totalDurationMs = items[len(items)-1].EndMs + 1000
	}

	outputPath, err := media.AlignAndConcat(ctx, segments, totalDurationMs, job.ProjectDir)
	if err != nil {
		return o.failStage(job, dbstore.StageAlignment, err)
	}

	return o.completeStage(job, dbstore.StageAlignment, outputPath)
}

// Compose muxes the silent video with the dubbed audio track (spec §4.9)
// and marks the job completed.
func (o *Orchestrator) Compose(ctx context.Context, job *dbstore.Job, flag *cancel.Flag) error {
	done, err := o.skipIfCompleted(job.ID, dbstore.StageCompose)
	if err != nil || done {
		return err
	}
	if err := o.beginStage(job, dbstore.StageCompose); err != nil {
		return err
	}
	if flag != nil && flag.IsSet() {
		return o.failStage(job, dbstore.StageCompose, dubverrs.Cancelled("compose"))
	}

	silentVideo := filepath.Join(job.ProjectDir, "silent_video.mp4")
	dubbedAudio := filepath.Join(job.ProjectDir, "dubbed_audio.wav")
	outputPath := filepath.Join(job.ProjectDir, "dubbed_output.mp4")

	if err := media.Compose(ctx, silentVideo, dubbedAudio, outputPath); err != nil {
		return o.failStage(job, dbstore.StageCompose, err)
	}

	if err := o.completeStage(job, dbstore.StageCompose, outputPath); err != nil {
		return err
	}
	return o.store.UpdateJobStatus(job.ID, dbstore.JobCompleted, string(dbstore.StageCompose), "")
}

// Reset rewinds every stage back to pending (spec §6's `reset_dubbing_job`),
// so a subsequent Run starts the whole stage machine over. TtsItem rows are
// left untouched: on its next entry Preprocess rewrites each item's text and
// timing but keeps its status, audio path, reference path and retry count.
func (o *Orchestrator) Reset(job *dbstore.Job) error {
	for _, stage := range dbstore.Stages {
		if err := o.store.UpsertStageState(&dbstore.StageState{JobID: job.ID, Stage: stage, Status: dbstore.StagePending}); err != nil {
			return err
		}
	}
	return o.store.UpdateJobStatus(job.ID, dbstore.JobPending, "", "")
}

func (o *Orchestrator) skipIfCompleted(jobID string, stage dbstore.Stage) (bool, error) {
	st, err := o.store.GetStageState(jobID, stage)
	if err != nil {
		return false, dubverrs.Storage(string(stage), err)
	}
	return st != nil && st.Status == dbstore.StageCompleted, nil
}

func (o *Orchestrator) beginStage(job *dbstore.Job, stage dbstore.Stage) error {
	if err := o.store.UpsertStageState(&dbstore.StageState{JobID: job.ID, Stage: stage, Status: dbstore.StageRunning}); err != nil {
		return err
	}
	if err := o.store.UpdateJobStatus(job.ID, dbstore.JobRunning, string(stage), ""); err != nil {
		return dubverrs.Storage(string(stage), err)
	}
	o.emitter.Emit(events.Event{
		Kind: events.KindDubbingStageChange, Time: time.Now(),
		JobID: job.ID, Stage: string(stage), Status: string(dbstore.StageRunning),
	})
	return nil
}

func (o *Orchestrator) completeStage(job *dbstore.Job, stage dbstore.Stage, outputPath string) error {
	if err := o.store.UpsertStageState(&dbstore.StageState{
		JobID: job.ID, Stage: stage, Status: dbstore.StageCompleted, OutputPath: outputPath,
	}); err != nil {
		return err
	}
	o.emitter.Emit(events.Event{
		Kind: events.KindDubbingStageChange, Time: time.Now(),
		JobID: job.ID, Stage: string(stage), Status: string(dbstore.StageCompleted),
	})
	return nil
}

func (o *Orchestrator) failStage(job *dbstore.Job, stage dbstore.Stage, cause error) error {
	_ = o.store.UpsertStageState(&dbstore.StageState{
		JobID: job.ID, Stage: stage, Status: dbstore.StageFailed, Error: cause.Error(),
	})
	_ = o.store.UpdateJobStatus(job.ID, dbstore.JobFailed, string(stage), cause.Error())
	o.emitter.Emit(events.Event{
		Kind: events.KindDubbingStageChange, Time: time.Now(),
		JobID: job.ID, Stage: string(stage), Status: string(dbstore.StageFailed), Error: cause.Error(),
	})
	return cause
}
