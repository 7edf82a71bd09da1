package pipeline

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/news"
)

func makeRecords(titles ...string) []*news.Record {
	records := make([]*news.Record, 0, len(titles))
	for i, title := range titles {
		records = append(records, &news.Record{
			ID:    string(rune('a' + i)),
			Title: title,
			URL:   "https://example.com/" + string(rune('a'+i)),
		})
	}
	return records
}

func TestDeduplicator_NearDuplicateTitlesDropped(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(DefaultSimilarityThreshold, zerolog.Nop())

	records := makeRecords(
		"央行宣布降准0.5个百分点",
		"央行宣布降准0.5个百分点！",
		"上市公司发布年度财报",
	)
	d.Apply(records)

	if records[0].Dropped() {
		t.Fatalf("first occurrence must win, dropped: %s", records[0].DropReason())
	}
	if !records[1].Dropped() {
		t.Fatalf("expected near-duplicate to be dropped")
	}
	if got := records[1].DropReason(); !strings.HasPrefix(got, "duplicate_of:") {
		t.Fatalf("drop reason = %q, want duplicate_of: prefix", got)
	}
	if !strings.Contains(records[1].DropReason(), "央行宣布降准") {
		t.Fatalf("drop reason should carry the kept title prefix, got %q", records[1].DropReason())
	}
	if records[2].Dropped() {
		t.Fatalf("distinct title must be kept, dropped: %s", records[2].DropReason())
	}
}

func TestDeduplicator_FirstSeenWinsOverLongerVariant(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(DefaultSimilarityThreshold, zerolog.Nop())

	records := makeRecords(
		"科技公司发布新款芯片",
		"科技公司发布新款芯片，性能提升",
	)
	d.Apply(records)

	if records[0].Dropped() {
		t.Fatalf("shorter first occurrence must be kept")
	}
	if !records[1].Dropped() {
		t.Fatalf("later longer variant must be dropped")
	}
}

func TestDeduplicator_EmptyNormalizedTitle(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(DefaultSimilarityThreshold, zerolog.Nop())

	records := makeRecords("！！！…", "正常标题的新闻")
	d.Apply(records)

	if !records[0].Dropped() {
		t.Fatalf("punctuation-only title must be dropped")
	}
	if got := records[0].DropReason(); got != ReasonEmptyNormalizedTitle {
		t.Fatalf("drop reason = %q, want %q", got, ReasonEmptyNormalizedTitle)
	}
	if records[1].Dropped() {
		t.Fatalf("normal title must survive")
	}
}

func TestDeduplicator_SkipsAlreadyDroppedRecords(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(DefaultSimilarityThreshold, zerolog.Nop())

	records := makeRecords("同一条新闻标题", "同一条新闻标题")
	records[0].MarkDropped(news.StageNormalize, ReasonMissingRequiredField)

	d.Apply(records)

	// The dropped record does not seed comparison, so the second copy is
	// the first live occurrence and must be kept.
	if records[1].Dropped() {
		t.Fatalf("record compared against an already-dropped one, reason: %s", records[1].DropReason())
	}
}

func TestDeduplicator_Idempotent(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(DefaultSimilarityThreshold, zerolog.Nop())

	records := makeRecords("市场监管总局发布新规", "市场监管总局发布新规定")
	d.Apply(records)
	firstTraceLens := []int{len(records[0].StageTrace), len(records[1].StageTrace)}

	d.Apply(records)

	if len(records[0].StageTrace) != firstTraceLens[0]+1 {
		t.Fatalf("kept record should gain exactly one trace entry per pass")
	}
	if len(records[1].StageTrace) != firstTraceLens[1] {
		t.Fatalf("dropped record must not be re-evaluated")
	}
	if records[0].Dropped() {
		t.Fatalf("second pass changed the survivor set")
	}
}

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"  Hello,   World!  ", "hello world"},
		{"《重磅》：市场迎来新机遇！", "重磅市场迎来新机遇"},
		{"MiXeD Case", "mixed case"},
		{"！？。", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Fatalf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLCSRatio(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 1},
		{"abc", "xyz", 0},
		{"", "", 1},
		{"abc", "", 0},
		{"abcd", "abce", 0.75},
	}
	for _, tc := range cases {
		got := lcsRatio([]rune(tc.a), []rune(tc.b))
		if got != tc.want {
			t.Fatalf("lcsRatio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
