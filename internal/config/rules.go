package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// KeywordRules drives the keyword filter stage. IncludeKeywords accepts
// either a flat JSON array or a mapping of category to array; the mapping
// is flattened before matching and only statistics retain the category.
type KeywordRules struct {
	ExcludeKeywords []string        `json:"exclude_keywords"`
	ExcludeDomains  []string        `json:"exclude_domains"`
	IncludeKeywords IncludeKeywords `json:"include_keywords"`
}

// IncludeKeywords holds the flattened include list in a deterministic
// order plus the category each term came from (empty for flat lists).
type IncludeKeywords struct {
	Terms      []string
	Categories map[string]string
}

func (k *IncludeKeywords) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var flat []string
		if err := json.Unmarshal(data, &flat); err != nil {
			return fmt.Errorf("include_keywords list: %w", err)
		}
		k.Terms = flat
		return nil
	}

	var byCategory map[string][]string
	if err := json.Unmarshal(data, &byCategory); err != nil {
		return fmt.Errorf("include_keywords must be a list or a category mapping: %w", err)
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	// Category maps have no inherent order; sort so that matching is
	// deterministic across runs with identical configuration.
	sort.Strings(categories)

	k.Categories = make(map[string]string)
	for _, category := range categories {
		for _, term := range byCategory[category] {
			k.Terms = append(k.Terms, term)
			k.Categories[term] = category
		}
	}
	return nil
}

func (k IncludeKeywords) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Terms)
}

// CategoryOf returns the configured category for a term, or "".
func (k IncludeKeywords) CategoryOf(term string) string {
	if k.Categories == nil {
		return ""
	}
	return k.Categories[term]
}

// QualityRules drives the quality filter stage.
type QualityRules struct {
	SoftAdTerms    []string `json:"soft_ad_terms"`
	ClickbaitTerms []string `json:"clickbait_terms"`

	MaxTitleLength      int `json:"max_title_length"`
	MinTitleLength      int `json:"min_title_length"`
	MinContentLength    int `json:"min_content_length"`
	MaxExclamationMarks int `json:"max_exclamation_marks"`
}

// qualityRuleFile is the on-disk shape. Threshold fields are pointers so
// an explicit zero (content check disabled, no exclamations allowed) is
// distinguishable from an omitted field.
type qualityRuleFile struct {
	SoftAdTerms    []string `json:"soft_ad_terms"`
	ClickbaitTerms []string `json:"clickbait_terms"`

	MaxTitleLength      *int `json:"max_title_length"`
	MinTitleLength      *int `json:"min_title_length"`
	MinContentLength    *int `json:"min_content_length"`
	MaxExclamationMarks *int `json:"max_exclamation_marks"`
}

func (f qualityRuleFile) toRules() *QualityRules {
	return &QualityRules{
		SoftAdTerms:         f.SoftAdTerms,
		ClickbaitTerms:      f.ClickbaitTerms,
		MaxTitleLength:      intOrDefault(f.MaxTitleLength, DefaultMaxTitleLength),
		MinTitleLength:      intOrDefault(f.MinTitleLength, DefaultMinTitleLength),
		MinContentLength:    intOrDefault(f.MinContentLength, DefaultMinContentLength),
		MaxExclamationMarks: intOrDefault(f.MaxExclamationMarks, DefaultMaxExclamationMarks),
	}
}

func intOrDefault(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

// Threshold defaults applied when a rule file omits a field.
const (
	DefaultMaxTitleLength      = 80
	DefaultMinTitleLength      = 10
	DefaultMinContentLength    = 100
	DefaultMaxExclamationMarks = 3
)

// LoadKeywordRules reads and validates a keyword rule file. A missing or
// malformed file is fatal for the run.
func LoadKeywordRules(path string) (*KeywordRules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword rules %s: %w", path, err)
	}

	var rules KeywordRules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse keyword rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("keyword rules %s: %w", path, err)
	}
	return &rules, nil
}

func (r *KeywordRules) Validate() error {
	if len(r.IncludeKeywords.Terms) == 0 {
		return fmt.Errorf("include_keywords must not be empty")
	}
	for i, term := range r.ExcludeKeywords {
		if strings.TrimSpace(term) == "" {
			return fmt.Errorf("exclude_keywords[%d] is empty", i)
		}
	}
	for i, term := range r.ExcludeDomains {
		if strings.TrimSpace(term) == "" {
			return fmt.Errorf("exclude_domains[%d] is empty", i)
		}
	}
	for i, term := range r.IncludeKeywords.Terms {
		if strings.TrimSpace(term) == "" {
			return fmt.Errorf("include_keywords[%d] is empty", i)
		}
	}
	return nil
}

// LoadQualityRules reads and validates a quality rule file, applying
// defaults for omitted thresholds.
func LoadQualityRules(path string) (*QualityRules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quality rules %s: %w", path, err)
	}

	var file qualityRuleFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse quality rules %s: %w", path, err)
	}
	rules := file.toRules()
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("quality rules %s: %w", path, err)
	}
	return rules, nil
}

func (r *QualityRules) Validate() error {
	if r.MinTitleLength < 1 {
		return fmt.Errorf("min_title_length must be >= 1")
	}
	if r.MaxTitleLength < r.MinTitleLength {
		return fmt.Errorf("max_title_length (%d) cannot be below min_title_length (%d)", r.MaxTitleLength, r.MinTitleLength)
	}
	if r.MinContentLength < 0 {
		return fmt.Errorf("min_content_length must be >= 0")
	}
	if r.MaxExclamationMarks < 0 {
		return fmt.Errorf("max_exclamation_marks must be >= 0")
	}
	for i, term := range r.SoftAdTerms {
		if strings.TrimSpace(term) == "" {
			return fmt.Errorf("soft_ad_terms[%d] is empty", i)
		}
	}
	for i, term := range r.ClickbaitTerms {
		if strings.TrimSpace(term) == "" {
			return fmt.Errorf("clickbait_terms[%d] is empty", i)
		}
	}
	return nil
}
