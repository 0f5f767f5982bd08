// Package subtitle implements the SubtitleItem wire shape and the SRT/JSON
// persistence layer described in spec §6 (project dir contents) and §8
// invariant 8 (SRT round-trip).
package subtitle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Item is one subtitle entry, grounded on
// original_source/src-tauri/src/commands/transcribe.rs's SubtitleItem
// (camelCase on the wire, milliseconds here rather than float seconds to
// match the rest of the store's *Ms fields).
type Item struct {
	ID      int    `json:"id"`
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
	Text    string `json:"text"`
}

// Save writes subtitles.json and subtitles.srt under projectDir, mirroring
// cmd_save_subtitles.
func Save(projectDir string, items []Item) error {
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode subtitles.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(projectDir, "subtitles.json"), payload, 0o644); err != nil {
		return fmt.Errorf("write subtitles.json: %w", err)
	}
	srt := EncodeSRT(items)
	if err := os.WriteFile(filepath.Join(projectDir, "subtitles.srt"), []byte(srt), 0o644); err != nil {
		return fmt.Errorf("write subtitles.srt: %w", err)
	}
	return nil
}

// Load reads subtitles.json back from projectDir.
func Load(projectDir string) ([]Item, error) {
	raw, err := os.ReadFile(filepath.Join(projectDir, "subtitles.json"))
	if err != nil {
		return nil, fmt.Errorf("read subtitles.json: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode subtitles.json: %w", err)
	}
	return items, nil
}

// LoadFile reads a standalone subtitles file (.srt or .json, selected by
// extension) from an arbitrary path, for CLI commands that take a
// subtitles file directly rather than a project directory.
func LoadFile(path string) ([]Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subtitles file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".srt") {
		return DecodeSRT(string(raw))
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode subtitles file: %w", err)
	}
	return items, nil
}

// EncodeSRT renders items in the `N\nHH:MM:SS,mmm --> HH:MM:SS,mmm\n<text>\n\n`
// format (spec §6).
func EncodeSRT(items []Item) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(strconv.Itoa(it.ID))
		b.WriteByte('\n')
		b.WriteString(srtTimestamp(it.StartMs))
		b.WriteString(" --> ")
		b.WriteString(srtTimestamp(it.EndMs))
		b.WriteByte('\n')
		b.WriteString(it.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// DecodeSRT parses an SRT document back into Items. Malformed blocks
// (missing timestamp line, non-numeric index) are skipped rather than
// failing the whole decode, since upstream tools vary in strictness.
func DecodeSRT(doc string) ([]Item, error) {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(doc), "\n\n")

	items := make([]Item, 0, len(blocks))
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		startMs, endMs, err := parseSRTRange(lines[1])
		if err != nil {
			continue
		}
		text := strings.Join(lines[2:], "\n")
		items = append(items, Item{ID: id, StartMs: startMs, EndMs: endMs, Text: text})
	}
	return items, nil
}

func parseSRTRange(line string) (int64, int64, error) {
	parts := strings.SplitN(line, " --> ", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed srt timestamp range: %q", line)
	}
	start, err := parseSRTTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseSRTTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// srtTimestamp renders msTotal as HH:MM:SS,mmm (spec §6: `mmm` is
// `round(secs*1000) % 1000`, ported here directly in integer milliseconds).
func srtTimestamp(msTotal int64) string {
	if msTotal < 0 {
		msTotal = 0
	}
	ms := msTotal % 1000
	s := (msTotal / 1000) % 60
	m := (msTotal / 60_000) % 60
	h := msTotal / 3_600_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func parseSRTTimestamp(s string) (int64, error) {
	s = strings.Replace(s, ",", ".", 1)
	var h, m int
	var secFrac float64
	n, err := fmt.Sscanf(s, "%d:%d:%f", &h, &m, &secFrac)
	if err != nil || n != 3 {
		return 0, fmt.Errorf("malformed srt timestamp: %q", s)
	}
	totalMs := int64(h)*3_600_000 + int64(m)*60_000 + int64(secFrac*1000.0+0.5)
	return totalMs, nil
}
