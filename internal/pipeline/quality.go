package pipeline

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/config"
	"github.com/Guqie/news-workflow/internal/news"
)

// Quality stage drop reasons without a matched-term suffix.
const (
	ReasonTitleLength          = "title_length"
	ReasonContentTooShort      = "content_too_short"
	ReasonExcessiveExclamation = "excessive_exclamation"
)

// QualityFilter screens records against editorial heuristics in a fixed
// order: soft-ad terms, clickbait terms, title length, content length,
// exclamation marks. The first failing check decides the drop reason.
type QualityFilter struct {
	rules  *config.QualityRules
	logger zerolog.Logger

	lowerSoftAds    []string
	lowerClickbaits []string
}

func NewQualityFilter(rules *config.QualityRules, logger zerolog.Logger) *QualityFilter {
	f := &QualityFilter{rules: rules, logger: logger}
	for _, term := range rules.SoftAdTerms {
		f.lowerSoftAds = append(f.lowerSoftAds, strings.ToLower(term))
	}
	for _, term := range rules.ClickbaitTerms {
		f.lowerClickbaits = append(f.lowerClickbaits, strings.ToLower(term))
	}
	return f
}

// Apply evaluates every live record in the batch.
func (f *QualityFilter) Apply(records []*news.Record) {
	for _, record := range records {
		if record.Dropped() {
			continue
		}
		f.evaluate(record)
	}
}

func (f *QualityFilter) evaluate(record *news.Record) {
	title := strings.ToLower(record.Title)

	// Soft-ad and clickbait terms are matched in the title only, not
	// the extracted body.
	for i, term := range f.lowerSoftAds {
		if strings.Contains(title, term) {
			record.MarkDropped(news.StageQuality, "soft_ad_term:"+f.rules.SoftAdTerms[i])
			return
		}
	}

	for i, term := range f.lowerClickbaits {
		if strings.Contains(title, term) {
			record.MarkDropped(news.StageQuality, "clickbait_term:"+f.rules.ClickbaitTerms[i])
			return
		}
	}

	// Lengths are measured in runes so CJK titles are not penalized for
	// their UTF-8 byte width.
	titleLen := len([]rune(record.Title))
	if titleLen < f.rules.MinTitleLength || titleLen > f.rules.MaxTitleLength {
		record.MarkDropped(news.StageQuality, ReasonTitleLength)
		return
	}

	// Records without extracted content are exempt from the length
	// floor; extraction failure is not an editorial signal.
	if record.Content != "" && len([]rune(record.Content)) < f.rules.MinContentLength {
		record.MarkDropped(news.StageQuality, ReasonContentTooShort)
		return
	}

	if countExclamations(record.Title) > f.rules.MaxExclamationMarks {
		record.MarkDropped(news.StageQuality, ReasonExcessiveExclamation)
		return
	}

	record.MarkKept(news.StageQuality, "passed_quality")
}

// countExclamations counts both ASCII and fullwidth exclamation marks.
func countExclamations(s string) int {
	count := 0
	for _, r := range s {
		if r == '!' || r == '！' {
			count++
		}
	}
	return count
}
