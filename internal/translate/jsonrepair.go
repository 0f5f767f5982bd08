package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// mergeAnnotationMarkers are substrings the model sometimes emits in a
// value instead of an actual translation, signalling it silently merged
// or skipped an entry (spec §4.2.1 validation rule d).
var mergeAnnotationMarkers = []string{
	"已合并", "已并入", "同上", "（见第", "(见第", "合并至",
}

// encodeBatchJSON renders a (string index -> text) map as the JSON object
// the prompt protocol sends as the user message.
func encodeBatchJSON(batch map[string]string) (string, error) {
	raw, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}
	return string(raw), nil
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// repairJSON runs the best-effort repair chain from spec §4.2.1: smart
// quote normalization, trailing comma removal, then brace extraction as a
// last resort.
func repairJSON(text string) string {
	text = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	).Replace(text)
	text = trailingCommaRe.ReplaceAllString(text, "$1")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}

// parseBatchReply parses the assistant's reply into a (index -> text) map,
// retrying once through repairJSON on failure.
func parseBatchReply(raw string) (map[string]string, error) {
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}

	repaired := repairJSON(raw)
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON reply even after repair: %w", err)
	}
	return out, nil
}

// validateBatchReply checks the parsed reply against the batch protocol's
// validation rule (spec §4.2.1): keys must exactly match expected, no
// value may be empty/whitespace or match a merge-annotation marker.
func validateBatchReply(reply map[string]string, expected []string) error {
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
		for _, marker := range mergeAnnotationMarkers {
			if strings.Contains(v, marker) {
				return fmt.Errorf("value for key %q contains merge-annotation marker %q", k, marker)
			}
		}
	}
	return nil
}
