package pipeline

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/config"
	"github.com/Guqie/news-workflow/internal/news"
)

// ReasonNoKeywordMatch marks records that matched neither an exclusion
// nor an inclusion rule.
const ReasonNoKeywordMatch = "no_keyword_match"

// KeywordFilter applies rule-based relevance filtering in a fixed order:
// exclusion keywords first, then domain exclusions, then inclusion
// keywords, and finally the no-match drop. A record surviving means an
// inclusion keyword matched; there is no default-keep.
type KeywordFilter struct {
	rules  *config.KeywordRules
	logger zerolog.Logger

	mu            sync.Mutex
	categoryHits  map[string]int
	lowerExcludes []string
	lowerIncludes []string
}

func NewKeywordFilter(rules *config.KeywordRules, logger zerolog.Logger) *KeywordFilter {
	f := &KeywordFilter{
		rules:        rules,
		logger:       logger,
		categoryHits: make(map[string]int),
	}
	for _, term := range rules.ExcludeKeywords {
		f.lowerExcludes = append(f.lowerExcludes, strings.ToLower(term))
	}
	for _, term := range rules.IncludeKeywords.Terms {
		f.lowerIncludes = append(f.lowerIncludes, strings.ToLower(term))
	}
	return f
}

// Apply evaluates every live record in the batch.
func (f *KeywordFilter) Apply(records []*news.Record) {
	for _, record := range records {
		if record.Dropped() {
			continue
		}
		f.evaluate(record)
	}
}

func (f *KeywordFilter) evaluate(record *news.Record) {
	title := strings.ToLower(record.Title)

	for i, term := range f.lowerExcludes {
		if strings.Contains(title, term) {
			record.MarkDropped(news.StageKeyword, "exclude_keyword:"+f.rules.ExcludeKeywords[i])
			return
		}
	}

	// Excluded domains are topic terms like 体育 or 娱乐, matched
	// case-sensitively in the title.
	for _, domain := range f.rules.ExcludeDomains {
		if strings.Contains(record.Title, domain) {
			record.MarkDropped(news.StageKeyword, "exclude_domain:"+domain)
			return
		}
	}

	for i, term := range f.lowerIncludes {
		if strings.Contains(title, term) {
			matched := f.rules.IncludeKeywords.Terms[i]
			record.MarkKept(news.StageKeyword, "matched_keyword:"+matched)
			if category := f.rules.IncludeKeywords.CategoryOf(matched); category != "" {
				f.mu.Lock()
				f.categoryHits[category]++
				f.mu.Unlock()
			}
			return
		}
	}

	record.MarkDropped(news.StageKeyword, ReasonNoKeywordMatch)
}

// CategoryHits returns a copy of the per-category match counters. Only
// populated when the inclusion list was configured as a category map.
func (f *KeywordFilter) CategoryHits() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]int, len(f.categoryHits))
	for category, count := range f.categoryHits {
		out[category] = count
	}
	return out
}
