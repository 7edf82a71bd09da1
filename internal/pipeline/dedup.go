package pipeline

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/news"
)

// DefaultSimilarityThreshold is the title similarity above which two
// records are considered duplicates.
const DefaultSimilarityThreshold = 0.8

// ReasonEmptyNormalizedTitle marks records whose title is empty after
// normalization (punctuation-only or whitespace-only titles).
const ReasonEmptyNormalizedTitle = "empty_normalized_title"

// duplicateReasonTitleRunes bounds the kept title prefix embedded in a
// duplicate drop reason.
const duplicateReasonTitleRunes = 20

// titlePunctuation is stripped before comparison. Covers both Latin and
// CJK punctuation seen in source titles.
const titlePunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~" +
	"！？｡。＂＃＄％＆＇（）＊＋，－／：；＜＝＞＠［＼］＾＿｀｛｜｝～" +
	"｟｠｢｣､、〃《》「」『』【】〔〕〖〗〘〙〚〛〜〝〞〟〰〾〿–—‘’‛“”„‟…‧﹏"

// Deduplicator drops near-duplicate titles within a batch. The first
// occurrence wins regardless of length or publish time; comparison uses
// the longest-common-subsequence ratio over normalized title runes.
type Deduplicator struct {
	threshold float64
	logger    zerolog.Logger
}

func NewDeduplicator(threshold float64, logger zerolog.Logger) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Deduplicator{threshold: threshold, logger: logger}
}

// Apply marks duplicates within the batch. Records already dropped by an
// earlier stage are skipped and do not participate in comparison.
func (d *Deduplicator) Apply(records []*news.Record) {
	type kept struct {
		title      string
		normalized []rune
	}
	seen := make([]kept, 0, len(records))

	for _, record := range records {
		if record.Dropped() {
			continue
		}

		normalized := []rune(NormalizeTitle(record.Title))
		if len(normalized) == 0 {
			record.MarkDropped(news.StageDedup, ReasonEmptyNormalizedTitle)
			continue
		}

		duplicate := false
		for _, prior := range seen {
			if lcsRatio(normalized, prior.normalized) >= d.threshold {
				record.MarkDropped(news.StageDedup, duplicateReason(prior.title))
				d.logger.Debug().
					Str("record_id", record.ID).
					Str("title", record.Title).
					Str("kept_title", prior.title).
					Msg("duplicate title dropped")
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		record.MarkKept(news.StageDedup, "unique")
		seen = append(seen, kept{title: record.Title, normalized: normalized})
	}
}

func duplicateReason(keptTitle string) string {
	runes := []rune(keptTitle)
	if len(runes) > duplicateReasonTitleRunes {
		runes = runes[:duplicateReasonTitleRunes]
	}
	return "duplicate_of:" + string(runes)
}

// NormalizeTitle lowercases, strips punctuation, and collapses
// whitespace for title comparison.
func NormalizeTitle(title string) string {
	lowered := strings.ToLower(title)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if strings.ContainsRune(titlePunctuation, r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// lcsRatio computes 2*LCS(a,b)/(len(a)+len(b)) with a two-row dynamic
// program. Values are in [0,1]; identical sequences score 1.
func lcsRatio(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}
