package segment

import "testing"

func TestSplitHardSplitsOnGap(t *testing.T) {
	words := []Word{
		{Text: "hello", StartMs: 0, EndMs: 200},
		{Text: "world", StartMs: 300, EndMs: 500},
		{Text: "again", StartMs: 2000, EndMs: 2300}, // gap 1500ms > 1.0s
	}
	subs := Split(words)
	if len(subs) != 2 {
		t.Fatalf("expected 2 subtitles, got %d: %+v", len(subs), subs)
	}
	if subs[0].Text != "hello world" {
		t.Fatalf("unexpected first segment text: %q", subs[0].Text)
	}
	if subs[1].Text != "again" {
		t.Fatalf("unexpected second segment text: %q", subs[1].Text)
	}
}

func TestSplitHardSplitsOnLength(t *testing.T) {
	var words []Word
	t0 := int64(0)
	for i := 0; i < 10; i++ {
		words = append(words, Word{Text: "1234567", StartMs: t0, EndMs: t0 + 100})
		t0 += 100
	}
	subs := Split(words)
	if len(subs) < 2 {
		t.Fatalf("expected a hard split once 50 chars exceeded, got %d segments", len(subs))
	}
	for _, s := range subs {
		if runeLen(s.Text) > maxChars {
			t.Fatalf("segment exceeds max length: %q (%d runes)", s.Text, runeLen(s.Text))
		}
	}
}

func TestSplitSoftSplitsOnSentenceFinalPunctuation(t *testing.T) {
	words := []Word{
		{Text: "你好。", StartMs: 0, EndMs: 200},
		{Text: "再见", StartMs: 250, EndMs: 400},
	}
	subs := Split(words)
	if len(subs) != 2 {
		t.Fatalf("expected sentence-final punctuation to force a split, got %d: %+v", len(subs), subs)
	}
	if subs[0].Text != "你好。" {
		t.Fatalf("unexpected first segment: %q", subs[0].Text)
	}
}

func TestSplitSoftSplitsOnPausePunctuationOnlyPastThreshold(t *testing.T) {
	words := []Word{
		{Text: "ab，", StartMs: 0, EndMs: 100},
		{Text: "cd", StartMs: 150, EndMs: 300},
	}
	subs := Split(words)
	if len(subs) != 1 {
		t.Fatalf("short segment should not split on pause punctuation below 33 chars, got %+v", subs)
	}

	var long []Word
	t0 := int64(0)
	for i := 0; i < 5; i++ {
		long = append(long, Word{Text: "一二三四五六七", StartMs: t0, EndMs: t0 + 100})
		t0 += 100
	}
	long = append(long, Word{Text: "，", StartMs: t0, EndMs: t0 + 50})
	long = append(long, Word{Text: "最后", StartMs: t0 + 100, EndMs: t0 + 300})
	subs = Split(long)
	if len(subs) != 2 {
		t.Fatalf("expected pause-punctuation split once length >= 33, got %d: %+v", len(subs), subs)
	}
}

func TestJoinCJKAwareSpacing(t *testing.T) {
	cases := []struct {
		words []Word
		want  string
	}{
		{[]Word{{Text: "你"}, {Text: "好"}}, "你好"},
		{[]Word{{Text: "你好"}, {Text: "，"}}, "你好，"},
		{[]Word{{Text: "hello"}, {Text: "world"}}, "hello world"},
		{[]Word{{Text: "hello"}, {Text: "你好"}}, "hello 你好"},
	}
	for _, c := range cases {
		got := Join(c.words)
		if got != c.want {
			t.Errorf("Join(%+v) = %q, want %q", c.words, got, c.want)
		}
	}
}

func TestSplitSkipsEmptyWords(t *testing.T) {
	words := []Word{
		{Text: "hello", StartMs: 0, EndMs: 100},
		{Text: "", StartMs: 100, EndMs: 100},
		{Text: "world", StartMs: 150, EndMs: 300},
	}
	subs := Split(words)
	if len(subs) != 1 || subs[0].Text != "hello world" {
		t.Fatalf("expected empty tokens to be skipped, got %+v", subs)
	}
}
