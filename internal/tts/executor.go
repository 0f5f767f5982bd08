package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/leica1994/dubverse/internal/cancel"
	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/dubverrs"
	"github.com/leica1994/dubverse/internal/events"
	"github.com/leica1994/dubverse/internal/scheduler"
)

const maxAttempts = 3

var initialBackoff = 2 * time.Second

// Executor drives the TTS stage's per-item loop (spec §4.5): it iterates
// pending items in subtitle_index order, tries each up to 3 times with a
// 2s then 4s backoff between attempts, and tolerates partial failure.
type Executor struct {
	store   *dbstore.Store
	sched   *scheduler.Manager
	emitter events.Emitter
	prober  DurationProber
}

// NewExecutor builds an Executor. emitter may be events.NopEmitter{}.
func NewExecutor(store *dbstore.Store, sched *scheduler.Manager, emitter events.Emitter, prober DurationProber) *Executor {
	return &Executor{store: store, sched: sched, emitter: emitter, prober: prober}
}

// Run processes every pending item for jobID against provider, writing
// output under {workDir}/tts. configID/concurrentLimit/rateLimit gate
// provider calls through the Scheduler the same way AiConfig gates
// translation calls.
func (e *Executor) Run(ctx context.Context, jobID, workDir string, provider Provider, configID string, concurrentLimit int64, rateLimit float64, flag *cancel.Flag) error {
	ttsDir := filepath.Join(workDir, "tts")
	if err := os.MkdirAll(ttsDir, 0o755); err != nil {
		return err
	}

	pending, err := e.store.GetPendingTtsItems(jobID)
	if err != nil {
		return err
	}
	all, err := e.store.GetAllTtsItems(jobID)
	if err != nil {
		return err
	}
	total := len(all)
	alreadyDone := total - len(pending)
	completed := 0

	for _, item := range pending {
		if flag != nil && flag.IsSet() {
			return dubverrs.Cancelled("tts")
		}

		outputPath := filepath.Join(ttsDir, fmt.Sprintf("tts_%04d.mp3", item.SubtitleIndex))
		result, attemptErr := e.synthesizeWithRetry(ctx, provider, configID, concurrentLimit, rateLimit, flag, SynthesizeRequest{
			Text:               item.PreprocessedText,
			ReferenceAudioPath: item.ReferenceAudioPath,
			OutputPath:         outputPath,
		})

		if attemptErr != nil {
			if updErr := e.store.UpdateTtsItemFailed(jobID, item.SubtitleIndex, attemptErr.Error()); updErr != nil {
				return updErr
			}
		} else {
			if updErr := e.store.UpdateTtsItemCompleted(jobID, item.SubtitleIndex, result.AudioPath, result.DurationMs); updErr != nil {
				return updErr
			}
		}

		status := "completed"
		if attemptErr != nil {
			status = "failed"
		} else {
			completed++
		}
		e.emitter.Emit(events.Event{
			Kind:          events.KindDubbingTtsItemDone,
			JobID:         jobID,
			SubtitleIndex: item.SubtitleIndex,
			Status:        status,
			Percent:       float64(alreadyDone+completed) / float64(total) * 100,
		})
	}

	return nil
}

// synthesizeWithRetry runs Phase A of §4.5: 3 attempts with a backoff that
// starts at initialBackoff and doubles (2s then 4s; no sleep follows the
// last attempt), acquiring a fresh Scheduler permit per attempt.
func (e *Executor) synthesizeWithRetry(ctx context.Context, provider Provider, configID string, concurrentLimit int64, rateLimit float64, flag *cancel.Flag, req SynthesizeRequest) (SynthesizeResult, error) {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if flag != nil && flag.IsSet() {
			return SynthesizeResult{}, dubverrs.Cancelled("tts")
		}

		permit, err := e.sched.Acquire("tts", configID, concurrentLimit, rateLimit, flag)
		if err != nil {
			return SynthesizeResult{}, err
		}
		result, synthErr := provider.Synthesize(ctx, req)
		permit.Release()

		if synthErr == nil {
			if result.DurationMs == 0 {
				result.DurationMs = durationMsOrFallback(ctx, e.prober, result.AudioPath)
			}
			return result, nil
		}
		lastErr = synthErr

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return SynthesizeResult{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return SynthesizeResult{}, lastErr
}
