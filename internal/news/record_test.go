package news

import (
	"testing"
)

func TestRecord_TraceIsAppendOnly(t *testing.T) {
	t.Parallel()

	record := &Record{ID: "a", Title: "标题", URL: "https://example.com/1"}

	record.MarkKept(StageNormalize, "normalized")
	record.MarkKept(StageDedup, "unique")
	record.MarkDropped(StageKeyword, "no_keyword_match")

	if len(record.StageTrace) != 3 {
		t.Fatalf("trace length = %d, want 3", len(record.StageTrace))
	}
	if !record.Dropped() {
		t.Fatalf("record must report dropped")
	}
	if record.DropStage() != StageKeyword {
		t.Fatalf("drop stage = %q", record.DropStage())
	}
	if record.DropReason() != "no_keyword_match" {
		t.Fatalf("drop reason = %q", record.DropReason())
	}
	for _, entry := range record.StageTrace {
		if entry.At.IsZero() {
			t.Fatalf("trace entry missing timestamp: %+v", entry)
		}
	}
}

func TestRecord_EffectiveURL(t *testing.T) {
	t.Parallel()

	record := &Record{URL: "https://news.google.com/articles/abc"}
	if record.EffectiveURL() != record.URL {
		t.Fatalf("effective url must fall back to the original")
	}

	record.ResolvedURL = "https://example.com/news/1"
	if record.EffectiveURL() != record.ResolvedURL {
		t.Fatalf("effective url must prefer the resolved url")
	}
}
