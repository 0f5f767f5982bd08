// Package segment converts a vendor's word-level timestamp response into
// subtitle entries (spec §4.7), the upstream step the dubbing pipeline
// assumes has already run over a transcript before a project directory is
// ever handed to a Job.
package segment

import "strings"

// Word is one recognized token with its timing, as returned by a
// speech-to-text vendor (e.g. ElevenLabs' `words[]`, bcut's per-line word
// arrays).
type Word struct {
	Text    string
	StartMs int64
	EndMs   int64
}

// Subtitle is one segmented entry ready for translation/TTS.
type Subtitle struct {
	Index   int
	Text    string
	StartMs int64
	EndMs   int64
}

const (
	maxGapMs      = 1000
	maxChars      = 50
	pauseMinChars = 33
	sentenceFinal = "。！？….!?"
	pausePunct    = "，、；,;"
	cjkJoinPunct  = "，。！？；、…·—"
)

// Split applies the four ordered split rules over words, in order:
// hard split on a >1.0s gap, hard split when the next word would push the
// accumulated length over 50 Unicode characters, soft split after
// sentence-final punctuation, and soft split after pause punctuation once
// the accumulated length has reached 33 characters.
func Split(words []Word) []Subtitle {
	var out []Subtitle
	var seg []Word
	prevEnd := int64(0)
	idx := 0

	flush := func() {
		if len(seg) == 0 {
			return
		}
		out = append(out, Subtitle{
			Index:   idx,
			Text:    Join(seg),
			StartMs: seg[0].StartMs,
			EndMs:   seg[len(seg)-1].EndMs,
		})
		idx++
		seg = nil
	}

	for _, w := range words {
		if w.Text == "" {
			continue
		}
		gap := w.StartMs - prevEnd
		if len(seg) > 0 && gap > maxGapMs {
			flush()
		}
		if len(seg) > 0 {
			joined := Join(append(append([]Word{}, seg...), w))
			if runeLen(joined) > maxChars {
				flush()
			}
		}

		seg = append(seg, w)
		prevEnd = w.EndMs

		if endsWithAny(w.Text, sentenceFinal) {
			flush()
			continue
		}
		if endsWithAny(w.Text, pausePunct) && runeLen(Join(seg)) >= pauseMinChars {
			flush()
		}
	}
	flush()
	return out
}

// Join concatenates word tokens with CJK-aware spacing: no space between
// two adjacent CJK characters or before CJK punctuation, a single ASCII
// space otherwise.
func Join(words []Word) string {
	var b strings.Builder
	var prevRune rune
	havePrev := false

	for _, w := range words {
		text := w.Text
		if text == "" {
			continue
		}
		first := firstRune(text)
		if havePrev {
			noSpace := (isCJK(prevRune) && isCJK(first)) || strings.ContainsRune(cjkJoinPunct, first)
			if !noSpace {
				b.WriteByte(' ')
			}
		}
		b.WriteString(text)
		prevRune = lastRune(text)
		havePrev = true
	}
	return b.String()
}

func endsWithAny(s string, set string) bool {
	return strings.ContainsRune(set, lastRune(s))
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}

func runeLen(s string) int {
	return len([]rune(s))
}

// isCJK reports whether r falls in one of the CJK Unicode blocks used by
// the script-consistency guard (spec §4.2.2): CJK Unified Ideographs,
// Hiragana/Katakana, and Hangul Syllables.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF:
		return true
	case r >= 0x3040 && r <= 0x30FF:
		return true
	case r >= 0xAC00 && r <= 0xD7AF:
		return true
	default:
		return false
	}
}
