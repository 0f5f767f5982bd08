// Package events is the Structured Event Emitter (spec §2, §6): it carries
// progress information out of the Translation Engine and Dubbing
// Orchestrator to the outer UI collaborator as newline-delimited JSON.
package events

import "time"

// Kind identifies the shape of an Event, matching the event names in the
// external command surface (§6).
type Kind string

const (
	KindTranslateProgress           Kind = "translate:progress"
	KindDubbingProgress             Kind = "dubbing:progress"
	KindDubbingStageChange          Kind = "dubbing:stage_change"
	KindDubbingTtsItemDone          Kind = "dubbing:tts_item_done"
	KindDubbingPreprocessBatchResult Kind = "dubbing:preprocess_batch_result"
)

// Event is one structured progress notification. Fields irrelevant to a
// given Kind are left zero-valued; omitempty keeps emitted lines compact.
type Event struct {
	Kind Kind      `json:"kind"`
	Time time.Time `json:"time"`

	ProjectDir string `json:"project_dir,omitempty"`
	JobID      string `json:"job_id,omitempty"`

	// translate:progress
	Phase   string  `json:"phase,omitempty"`
	Percent float64 `json:"percent,omitempty"`

	// dubbing:progress / dubbing:stage_change
	Stage  string `json:"stage,omitempty"`
	Status string `json:"status,omitempty"`

	// dubbing:tts_item_done
	SubtitleIndex int `json:"subtitle_index,omitempty"`

	// dubbing:preprocess_batch_result
	BatchStart    int `json:"batch_start,omitempty"`
	BatchEnd      int `json:"batch_end,omitempty"`
	FallbackCount int `json:"fallback_count,omitempty"`

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Emitter receives Events. Implementations must be safe for concurrent use.
type Emitter interface {
	Emit(Event)
}

// NopEmitter discards every event; used by tests and one-shot CLI commands
// that don't need the JSON stream.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}
