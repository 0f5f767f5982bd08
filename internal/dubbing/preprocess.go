// Package dubbing implements the Dubbing Orchestrator stage machine (spec
// §4.3): preprocess → media → reference → tts → alignment → compose, each
// stage checkpointed through the Job/Stage State Store.
package dubbing

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/leica1994/dubverse/internal/cancel"
	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/dubverrs"
	"github.com/leica1994/dubverse/internal/events"
	"github.com/leica1994/dubverse/internal/scheduler"
)

const preprocessBatchSize = 20

// preprocessSystemPrompt is the fixed Chinese-language TTS-normalization
// instruction (spec §4.4): expand numerals/units/abbreviations into
// spoken form, strip unpronounceable punctuation, never merge or split
// entries.
const preprocessSystemPrompt = `你是配音文案整理员。将输入字幕文本改写为适合语音合成朗读的口语化文本：展开数字、单位、符号、缩写为完整读法，去除无法发声的标点与排版符号，保留原意与语气，不得增删信息，不得合并或拆分条目。
输入与输出均为 JSON 对象，键为字幕序号字符串，值为文本，键的数量必须与输入完全一致。只输出该 JSON 对象，不要任何额外说明。`

// PreprocessClient is the chat-completion call the preprocess stage needs,
// satisfied by *translate.Client.
type PreprocessClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// PreprocessItem is one subtitle entry awaiting normalization.
type PreprocessItem struct {
	Index int
	Text  string
}

var preprocessTrailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// preprocessRepairJSON runs the same best-effort repair chain as the
// translation engine (spec §4.2.1), duplicated here since the preprocess
// batch protocol is a simplified sibling, not a caller, of that engine.
func preprocessRepairJSON(text string) string {
	text = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	).Replace(text)
	text = preprocessTrailingCommaRe.ReplaceAllString(text, "$1")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}

func preprocessParseReply(raw string) (map[string]string, error) {
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}
	repaired := preprocessRepairJSON(raw)
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON reply even after repair: %w", err)
	}
	return out, nil
}

func preprocessValidate(reply map[string]string, expected []string) error {
	if len(reply) != len(expected) {
		return fmt.Errorf("expected %d keys, got %d", len(expected), len(reply))
	}
	for _, k := range expected {
		v, ok := reply[k]
		if !ok {
			return fmt.Errorf("missing key %q", k)
		}
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("empty value for key %q", k)
		}
	}
	return nil
}

// RunPreprocess batches items through client per spec §4.4: the same
// retry/validate JSON contract as the translation engine's Phase A (three
// attempts, exponential backoff), but on exhaustion it keeps the original
// text for the whole batch rather than splitting further.
func RunPreprocess(ctx context.Context, client PreprocessClient, sched *scheduler.Manager, emitter events.Emitter, cfg dbstore.AiConfig, flag *cancel.Flag, items []PreprocessItem) (map[int]string, error) {
	result := make(map[int]string, len(items))

	sorted := make([]PreprocessItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	for start := 0; start < len(sorted); start += preprocessBatchSize {
		if flag != nil && flag.IsSet() {
			return result, dubverrs.Cancelled("preprocess")
		}

		end := start + preprocessBatchSize
		if end > len(sorted) {
			end = len(sorted)
		}
		batch := sorted[start:end]

		input := make(map[string]string, len(batch))
		expected := make([]string, 0, len(batch))
		for _, item := range batch {
			key := fmt.Sprintf("%d", item.Index)
			input[key] = item.Text
			expected = append(expected, key)
		}
		userPrompt, err := json.Marshal(input)
		if err != nil {
			return result, fmt.Errorf("encode preprocess batch: %w", err)
		}

		reply, usedFallback, err := preprocessBatchWithRetry(ctx, client, sched, cfg, flag, string(userPrompt), expected)
		if err != nil {
			return result, err
		}

		fallbackCount := 0
		for _, item := range batch {
			key := fmt.Sprintf("%d", item.Index)
			text, ok := reply[key]
			if usedFallback || !ok {
				text = item.Text
				fallbackCount++
			}
			result[item.Index] = text
		}

		emitter.Emit(events.Event{
			Kind:          events.KindDubbingPreprocessBatchResult,
			Time:          time.Now(),
			BatchStart:    batch[0].Index,
			BatchEnd:      batch[len(batch)-1].Index,
			FallbackCount: fallbackCount,
		})
	}

	return result, nil
}

// preprocessBatchWithRetry is the Phase A contract alone: three attempts,
// 1s then 2s backoff between them, no split and no per-item recovery on
// exhaustion.
func preprocessBatchWithRetry(ctx context.Context, client PreprocessClient, sched *scheduler.Manager, cfg dbstore.AiConfig, flag *cancel.Flag, userPrompt string, expected []string) (map[string]string, bool, error) {
	backoff := time.Second
	for attempt := 1; attempt <= 3; attempt++ {
		permit, err := sched.Acquire("preprocess", cfg.ID, cfg.ConcurrentLimit, cfg.RateLimit, flag)
		if err != nil {
			return nil, false, err
		}
		raw, callErr := client.Complete(ctx, preprocessSystemPrompt, userPrompt, 0.1)
		permit.Release()

		if callErr == nil {
			if reply, parseErr := preprocessParseReply(raw); parseErr == nil {
				if validateErr := preprocessValidate(reply, expected); validateErr == nil {
					return reply, false, nil
				}
			}
		}

		if attempt == 3 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, true, nil
}
