// Package dbstore is the durable Job/Stage State Store (spec §3, §10.4):
// SQLite-backed persistence for jobs, stage checkpoints, per-item TTS
// progress, translation progress, AI configs, TTS plugins, and workbench
// bookkeeping tasks.
package dbstore

import "time"

// JobStatus is the lifecycle status of a Job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ReferenceMode selects how TTS reference audio is sourced.
type ReferenceMode string

const (
	ReferenceClone  ReferenceMode = "clone"
	ReferenceCustom ReferenceMode = "custom"
	ReferenceNone   ReferenceMode = "none"
)

// Job is a dubbing run rooted at a project directory.
type Job struct {
	ID                 string
	ProjectDir         string
	VideoPath          string
	SubtitleCount      int
	ReferenceMode      ReferenceMode
	ReferenceAudioPath string
	TtsPluginID        string
	Status             JobStatus
	CurrentStage       string
	Error              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Stage is one of the fixed, ordered dubbing stages.
type Stage string

const (
	StagePreprocess Stage = "preprocess"
	StageMedia      Stage = "media"
	StageReference  Stage = "reference"
	StageTTS        Stage = "tts"
	StageAlignment  Stage = "alignment"
	StageCompose    Stage = "compose"
)

// Stages lists the fixed stage order (spec §3, §4.3).
var Stages = []Stage{StagePreprocess, StageMedia, StageReference, StageTTS, StageAlignment, StageCompose}

// StageStatus is the lifecycle status of a StageState.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// StageState is the checkpoint for one named stage within a job.
type StageState struct {
	JobID       string
	Stage       Stage
	Status      StageStatus
	Progress    int
	OutputPath  string
	Error       string
	CompletedAt *time.Time
}

// TtsItemStatus is the lifecycle status of a TtsItem.
type TtsItemStatus string

const (
	TtsItemPending   TtsItemStatus = "pending"
	TtsItemCompleted TtsItemStatus = "completed"
	TtsItemFailed    TtsItemStatus = "failed"
)

// TtsItem is the per-subtitle TTS work row — the unit of resume for the
// TTS stage.
type TtsItem struct {
	JobID              string
	SubtitleIndex      int
	PreprocessedText   string
	StartMs            int64
	EndMs              int64
	ReferenceAudioPath string
	TtsAudioPath       string
	TtsDurationMs       *int64
	Status             TtsItemStatus
	RetryCount         int
	Error              string
}

// TranslationPhase is one phase of the translation engine.
type TranslationPhase string

const (
	PhaseCorrection   TranslationPhase = "correction"
	PhaseTranslation  TranslationPhase = "translation"
	PhaseOptimization TranslationPhase = "optimization"
)

// TranslationProgress is a per-subtitle, per-phase checkpoint.
type TranslationProgress struct {
	ProjectDir    string
	SubtitleIndex int
	Phase         TranslationPhase
	ResultText    string
}

// AiConfig is an LLM endpoint record.
type AiConfig struct {
	ID              string
	BaseURL         string
	APIKey          string
	Model           string
	ConcurrentLimit int64
	RequestTimeout  int
	RateLimit       float64
	IsDefault       bool
}

// TtsPluginType enumerates the supported TTS provider backends.
type TtsPluginType string

const (
	TtsPluginNCN      TtsPluginType = "ncn"
	TtsPluginGradio   TtsPluginType = "gradio"
	TtsPluginHTTPRest TtsPluginType = "http_rest"
)

// TtsPlugin is a TTS provider record.
type TtsPlugin struct {
	ID          string
	PluginType  TtsPluginType
	ConfigJSON  string
	RequiresRef bool
}

// WorkbenchTaskKind enumerates outer-UI bookkeeping task kinds.
type WorkbenchTaskKind string

const (
	WorkbenchTranscribe WorkbenchTaskKind = "transcribe"
	WorkbenchTranslate  WorkbenchTaskKind = "translate"
	WorkbenchDub        WorkbenchTaskKind = "dub"
)

// WorkbenchTask is an outer-UI bookkeeping row (persist-only, §10.6).
type WorkbenchTask struct {
	ID         string
	ProjectDir string
	Kind       WorkbenchTaskKind
	Status     string
	Progress   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
