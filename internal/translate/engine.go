// Package translate implements the multi-phase Translation Engine (spec
// §4.2): Correction → Translation (standard|reflective) → Optimization,
// each a batched LLM call protocol with per-subtitle resume, backed by the
// Rate/Concurrency Scheduler and the Job/Stage State Store.
package translate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/leica1994/dubverse/internal/cancel"
	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/dubverrs"
	"github.com/leica1994/dubverse/internal/events"
	"github.com/leica1994/dubverse/internal/httpclient"
	"github.com/leica1994/dubverse/internal/scheduler"
)

// Subtitle is one source entry to translate, keyed by a stable sequence
// index.
type Subtitle struct {
	Index int
	Text  string
}

// Options configures one translation run.
type Options struct {
	ProjectDir     string
	TargetLanguage string
	Correction     bool
	Optimization   bool
	PromptType     string // "standard" or "reflective"
	BatchSize      int
	Knobs          Knobs
}

// Engine runs translation phases against one AiConfig.
type Engine struct {
	store   *dbstore.Store
	sched   *scheduler.Manager
	clients *httpclient.Cache
	emitter events.Emitter
}

// NewEngine builds an Engine. emitter may be events.NopEmitter{} when no
// progress stream is wanted.
func NewEngine(store *dbstore.Store, sched *scheduler.Manager, clients *httpclient.Cache, emitter events.Emitter) *Engine {
	return &Engine{store: store, sched: sched, clients: clients, emitter: emitter}
}

// phasePlan returns the enabled phases in fixed order for the requested
// options.
func phasePlan(opts Options) []Phase {
	var plan []Phase
	if opts.Correction {
		plan = append(plan, PhaseCorrection)
	}
	if opts.PromptType == "reflective" {
		plan = append(plan, PhaseReflective)
	} else {
		plan = append(plan, PhaseStandard)
	}
	if opts.Optimization {
		plan = append(plan, PhaseOptimize)
	}
	return plan
}

// checkpointPhase maps a prompt Phase onto the dbstore.TranslationPhase
// checkpoint key: both translation prompt variants share the same
// "translation" checkpoint bucket.
func checkpointPhase(p Phase) dbstore.TranslationPhase {
	switch p {
	case PhaseCorrection:
		return dbstore.PhaseCorrection
	case PhaseOptimize:
		return dbstore.PhaseOptimization
	default:
		return dbstore.PhaseTranslation
	}
}

// Run executes the enabled phases in order, feeding phase k's output as
// phase k+1's input, and returns the final (index -> text) result set.
func (e *Engine) Run(ctx context.Context, subtitles []Subtitle, opts Options, cfg dbstore.AiConfig, flag *cancel.Flag) (map[int]string, error) {
	client := NewClient(cfg, e.clients)

	current := make(map[string]string, len(subtitles))
	for _, s := range subtitles {
		current[strconv.Itoa(s.Index)] = s.Text
	}

	plan := phasePlan(opts)
	var translationOutput map[string]string

	for i, phase := range plan {
		if flag != nil && flag.IsSet() {
			return nil, dubverrs.Cancelled("translate:" + string(phase))
		}

		result, err := e.runPhase(ctx, client, phase, current, opts, cfg, flag)
		if err != nil {
			return nil, fmt.Errorf("translation-phase failed: %w", err)
		}

		if phase == PhaseStandard || phase == PhaseReflective {
			translationOutput = result
		}
		if phase == PhaseOptimize && translationOutput != nil {
			if !scriptGuardKeep(translationOutput, result) {
				result = translationOutput
			}
		}

		current = result
		e.emitter.Emit(events.Event{
			Kind:       events.KindTranslateProgress,
			ProjectDir: opts.ProjectDir,
			Phase:      string(phase),
			Percent:    float64(i+1) / float64(len(plan)) * 100,
		})
	}

	out := make(map[int]string, len(current))
	for k, v := range current {
		idx, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[idx] = v
	}
	return out, nil
}

// runPhase executes the batch protocol for one phase: load checkpointed
// progress, partition the remaining indices into batches, and process
// batches sequentially (spec §5: batches consume the permit sequentially).
func (e *Engine) runPhase(ctx context.Context, client *Client, phase Phase, input map[string]string, opts Options, cfg dbstore.AiConfig, flag *cancel.Flag) (map[string]string, error) {
	cpPhase := checkpointPhase(phase)
	checkpoint, err := e.store.GetTranslationProgress(opts.ProjectDir, cpPhase)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(input))
	var todo []string
	for k, v := range input {
		if idx, convErr := strconv.Atoi(k); convErr == nil {
			if text, ok := checkpoint[idx]; ok {
				result[k] = text
				continue
			}
		}
		result[k] = v // placeholder, overwritten once the batch completes
		todo = append(todo, k)
	}
	sort.Slice(todo, func(i, j int) bool {
		a, _ := strconv.Atoi(todo[i])
		b, _ := strconv.Atoi(todo[j])
		return a < b
	})

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	for start := 0; start < len(todo); start += batchSize {
		if flag != nil && flag.IsSet() {
			return nil, dubverrs.Cancelled("translate:" + string(phase))
		}

		end := start + batchSize
		if end > len(todo) {
			end = len(todo)
		}
		batchKeys := todo[start:end]
		batchItems := make(map[string]string, len(batchKeys))
		for _, k := range batchKeys {
			batchItems[k] = input[k]
		}

		permit, err := e.sched.Acquire("translate:"+string(phase), cfg.ID, cfg.ConcurrentLimit, cfg.RateLimit, flag)
		if err != nil {
			return nil, err
		}
		batchResult := e.translateBatch(ctx, client, phase, opts.Knobs, batchItems)
		permit.Release()

		for k, v := range batchResult {
			result[k] = v
			idx, convErr := strconv.Atoi(k)
			if convErr != nil {
				continue
			}
			if saveErr := e.store.SaveTranslationProgress(opts.ProjectDir, idx, cpPhase, v); saveErr != nil {
				return nil, saveErr
			}
		}

		e.emitter.Emit(events.Event{
			Kind:       events.KindTranslateProgress,
			ProjectDir: opts.ProjectDir,
			Phase:      string(phase),
			Percent:    float64(end) / float64(len(todo)) * 100,
		})
	}

	return result, nil
}

// translateBatch runs the Phase A/B/C retry-split-fallback protocol (spec
// §4.2.1) for one batch and never returns an error: every index is either
// translated or silently falls back to its source text.
func (e *Engine) translateBatch(ctx context.Context, client *Client, phase Phase, knobs Knobs, items map[string]string) map[string]string {
	if reply, err := attemptFullRetry(ctx, client, phase, knobs, items, 3); err == nil {
		return reply
	}
	if len(items) <= 1 {
		return perItemFallback(ctx, client, phase, knobs, items)
	}
	return binarySplit(ctx, client, phase, knobs, items, 0)
}

// attemptFullRetry is Phase A: up to maxAttempts full-batch attempts with a
// backoff between tries that starts at 1s and doubles (1s then 2s for
// maxAttempts=3; no sleep follows the last attempt).
func attemptFullRetry(ctx context.Context, client *Client, phase Phase, knobs Knobs, items map[string]string, maxAttempts int) (map[string]string, error) {
	expected := make([]string, 0, len(items))
	for k := range items {
		expected = append(expected, k)
	}

	sysPrompt := buildSystemPrompt(phase, knobs)
	backoff := 1 * time.Second
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		userPrompt, err := buildUserPrompt(items)
		if err != nil {
			return nil, err
		}
		raw, err := client.Complete(ctx, sysPrompt, userPrompt, Temperature(phase))
		if err == nil {
			var reply map[string]string
			reply, err = parseBatchReply(raw)
			if err == nil {
				if verr := validateBatchReply(reply, expected); verr == nil {
					return reply, nil
				} else {
					err = verr
				}
			}
		}
		lastErr = err

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

// binarySplit is Phase B: split the batch into halves and retry each half,
// recursing up to depth 3 (so up to 8 sub-chunks); a half that exhausts
// the recursion budget falls through to per-item fallback.
func binarySplit(ctx context.Context, client *Client, phase Phase, knobs Knobs, items map[string]string, depth int) map[string]string {
	if depth >= 3 || len(items) <= 1 {
		return perItemFallback(ctx, client, phase, knobs, items)
	}

	result := make(map[string]string, len(items))
	for _, half := range splitInHalf(items) {
		if len(half) == 0 {
			continue
		}
		reply, err := attemptFullRetry(ctx, client, phase, knobs, half, 3)
		if err == nil {
			for k, v := range reply {
				result[k] = v
			}
			continue
		}
		for k, v := range binarySplit(ctx, client, phase, knobs, half, depth+1) {
			result[k] = v
		}
	}
	return result
}

// perItemFallback is Phase C: for each item, retry alone up to 2 attempts;
// anything still missing keeps its original source text (spec's
// silent-fallback rule — never fails the whole batch).
func perItemFallback(ctx context.Context, client *Client, phase Phase, knobs Knobs, items map[string]string) map[string]string {
	result := make(map[string]string, len(items))
	keys := sortedKeys(items)
	for _, k := range keys {
		src := items[k]
		single := map[string]string{k: src}
		reply, err := attemptFullRetry(ctx, client, phase, knobs, single, 2)
		if err == nil {
			result[k] = reply[k]
		} else {
			result[k] = src
		}
	}
	return result
}

func splitInHalf(items map[string]string) [2]map[string]string {
	keys := sortedKeys(items)
	mid := len(keys) / 2
	a := make(map[string]string, mid)
	b := make(map[string]string, len(keys)-mid)
	for i, k := range keys {
		if i < mid {
			a[k] = items[k]
		} else {
			b[k] = items[k]
		}
	}
	return [2]map[string]string{a, b}
}

func sortedKeys(items map[string]string) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}
