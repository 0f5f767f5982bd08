package subtitle

import "testing"

func TestSRTRoundTrip(t *testing.T) {
	items := []Item{
		{ID: 1, StartMs: 0, EndMs: 1500, Text: "Hello there"},
		{ID: 2, StartMs: 1500, EndMs: 4125, Text: "Second line\nwrapped"},
		{ID: 3, StartMs: 3_661_999, EndMs: 3_662_500, Text: "over an hour in"},
	}

	doc := EncodeSRT(items)
	decoded, err := DecodeSRT(doc)
	if err != nil {
		t.Fatalf("DecodeSRT: %v", err)
	}
	if len(decoded) != len(items) {
		t.Fatalf("expected %d items, got %d", len(items), len(decoded))
	}
	for i, want := range items {
		got := decoded[i]
		if got.ID != want.ID || got.StartMs != want.StartMs || got.EndMs != want.EndMs || got.Text != want.Text {
			t.Fatalf("item %d round-trip mismatch: want %+v, got %+v", i, want, got)
		}
	}
}

func TestSRTTimestampFormat(t *testing.T) {
	if got := srtTimestamp(3_661_999); got != "01:01:01,999" {
		t.Fatalf("unexpected timestamp: %q", got)
	}
	if got := srtTimestamp(0); got != "00:00:00,000" {
		t.Fatalf("unexpected zero timestamp: %q", got)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	items := []Item{{ID: 1, StartMs: 0, EndMs: 1000, Text: "hi"}}
	if err := Save(dir, items); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Text != "hi" {
		t.Fatalf("unexpected loaded items: %+v", loaded)
	}
}
